package classify

import "testing"

func intPtr(v int) *int { return &v }

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		merchantText string
		mcc          *int
		want         string
	}{
		{
			name:         "mcc rule wins over substring rule",
			merchantText: "Uber Eats order",
			mcc:          intPtr(4121),
			want:         CategoryTransport,
		},
		{
			name:         "taxi mcc with unknown merchant",
			merchantText: "random merchant",
			mcc:          intPtr(4121),
			want:         CategoryTransport,
		},
		{
			name:         "specific substring beats its prefix",
			merchantText: "Uber Eats order",
			mcc:          nil,
			want:         CategoryFoodAndDrink,
		},
		{
			name:         "prefix substring used when specific absent",
			merchantText: "UBER *TRIP HELP.UBER.COM",
			mcc:          nil,
			want:         CategoryTransport,
		},
		{
			name:         "matching is case-insensitive",
			merchantText: "SPOTIFY AB",
			mcc:          nil,
			want:         CategoryEntertainment,
		},
		{
			name:         "unmatched mcc falls through to substrings",
			merchantText: "Netflix.com",
			mcc:          intPtr(1234),
			want:         CategoryEntertainment,
		},
		{
			name:         "airline mcc range",
			merchantText: "LH0442 FRA-JFK",
			mcc:          intPtr(3027),
			want:         CategoryTravel,
		},
		{
			name:         "grocery mcc",
			merchantText: "anything",
			mcc:          intPtr(5411),
			want:         CategoryGroceries,
		},
		{
			name:         "no rule matches",
			merchantText: "zzq unknown vendor",
			mcc:          nil,
			want:         Uncategorized,
		},
		{
			name:         "empty input",
			merchantText: "",
			mcc:          nil,
			want:         Uncategorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.merchantText, tt.mcc)
			if got != tt.want {
				t.Fatalf("Classify(%q, %v) = %q, want %q", tt.merchantText, tt.mcc, got, tt.want)
			}
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	inputs := []struct {
		text string
		mcc  *int
	}{
		{"Uber Eats order", nil},
		{"random merchant", intPtr(4121)},
		{"Coffee Shop", nil},
		{"", nil},
	}
	for _, in := range inputs {
		first := Classify(in.text, in.mcc)
		for i := 0; i < 10; i++ {
			if got := Classify(in.text, in.mcc); got != first {
				t.Fatalf("Classify(%q, %v) not deterministic: %q then %q", in.text, in.mcc, first, got)
			}
		}
	}
}
