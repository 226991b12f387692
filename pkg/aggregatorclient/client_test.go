package aggregatorclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSyncTransactions_FollowsPagination(t *testing.T) {
	var cursorsSeen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transactions/sync" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-aggregator-key"); got != "test-key" {
			t.Fatalf("missing api key header, got %q", got)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		cursorsSeen = append(cursorsSeen, body["cursor"])

		var resp SyncResponse
		switch body["cursor"] {
		case "":
			resp = SyncResponse{
				Added:      []Transaction{{TransactionID: "tx-1", Date: "2026-08-02", Name: "Spotify"}},
				NextCursor: "page-2",
				HasMore:    true,
			}
		case "page-2":
			resp = SyncResponse{
				Added:      []Transaction{{TransactionID: "tx-2", Date: "2026-08-03", Name: "Coffee Shop"}},
				Removed:    []RemovedTransaction{{TransactionID: "tx-0"}},
				NextCursor: "final-cursor",
				HasMore:    false,
			}
		default:
			t.Fatalf("unexpected cursor %q", body["cursor"])
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	page, err := client.SyncTransactions(context.Background(), "access-token", nil)
	if err != nil {
		t.Fatalf("SyncTransactions returned error: %v", err)
	}

	if len(cursorsSeen) != 2 || cursorsSeen[0] != "" || cursorsSeen[1] != "page-2" {
		t.Fatalf("unexpected cursor sequence: %v", cursorsSeen)
	}
	if len(page.Added) != 2 {
		t.Fatalf("expected 2 added transactions across pages, got %d", len(page.Added))
	}
	if len(page.Removed) != 1 || page.Removed[0].TransactionID != "tx-0" {
		t.Fatalf("unexpected removed set: %+v", page.Removed)
	}
	if page.NextCursor != "final-cursor" {
		t.Fatalf("NextCursor = %q, want the final page's cursor", page.NextCursor)
	}
}

func TestSyncTransactions_ResumesFromGivenCursor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if body["cursor"] != "resume-here" {
			t.Fatalf("cursor = %q, want resume-here", body["cursor"])
		}
		json.NewEncoder(w).Encode(SyncResponse{NextCursor: "next", HasMore: false})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	cursor := "resume-here"
	if _, err := client.SyncTransactions(context.Background(), "access-token", &cursor); err != nil {
		t.Fatalf("SyncTransactions returned error: %v", err)
	}
}

func TestPost_DecodesTypedAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error_code":    CodeItemLoginRequired,
			"error_type":    "ITEM_ERROR",
			"error_message": "the login details of this item have changed",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	_, err := client.SyncTransactions(context.Background(), "stale-token", nil)
	if err == nil {
		t.Fatal("expected an error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if !apiErr.AuthRevoked() {
		t.Fatalf("ITEM_LOGIN_REQUIRED should report AuthRevoked, got %+v", apiErr)
	}
	if apiErr.InvalidToken() {
		t.Fatal("ITEM_LOGIN_REQUIRED must not report InvalidToken")
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("StatusCode = %d, want 400", apiErr.StatusCode)
	}
}

func TestPost_UnparsableErrorBodyStillTyped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	_, err := client.CreateLinkToken(context.Background(), "user-1")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError even for unparsable bodies, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("StatusCode = %d, want 502", apiErr.StatusCode)
	}
	if apiErr.AuthRevoked() || apiErr.InvalidToken() {
		t.Fatal("untyped provider failure must not look like a credential problem")
	}
}

func TestExchangePublicToken_DecodesPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/item/public_token/exchange" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(ExchangeResponse{AccessToken: "access-abc", ItemID: "item-xyz"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	resp, err := client.ExchangePublicToken(context.Background(), "public-token")
	if err != nil {
		t.Fatalf("ExchangePublicToken returned error: %v", err)
	}
	if resp.AccessToken != "access-abc" || resp.ItemID != "item-xyz" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}
