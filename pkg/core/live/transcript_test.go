package live

import (
	"strings"
	"testing"
)

func TestCommitTurn(t *testing.T) {
	tests := []struct {
		name    string
		partial Partial
		want    []Entry
	}{
		{
			name:    "user and model",
			partial: Partial{User: "नमस्कार", Model: "स्वागत आहे!"},
			want: []Entry{
				{Speaker: SpeakerUser, Text: "नमस्कार"},
				{Speaker: SpeakerModel, Text: "स्वागत आहे!"},
			},
		},
		{
			name:    "model only",
			partial: Partial{Model: "विचारा आपला प्रश्न!"},
			want:    []Entry{{Speaker: SpeakerModel, Text: "विचारा आपला प्रश्न!"}},
		},
		{
			name:    "blank user dropped, whitespace preserved in kept text",
			partial: Partial{User: "   ", Model: " उत्तर "},
			want:    []Entry{{Speaker: SpeakerModel, Text: " उत्तर "}},
		},
		{
			name:    "start trigger never committed",
			partial: Partial{User: "Start", Model: "स्वागत"},
			want:    []Entry{{Speaker: SpeakerModel, Text: "स्वागत"}},
		},
		{
			name:    "start trigger case and padding insensitive",
			partial: Partial{User: "  start "},
			want:    nil,
		},
		{
			name:    "text containing start is kept",
			partial: Partial{User: "Start the quiz"},
			want:    []Entry{{Speaker: SpeakerUser, Text: "Start the quiz"}},
		},
		{
			name:    "empty turn commits nothing",
			partial: Partial{},
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := commitTurn(tt.partial)
			if len(got) != len(tt.want) {
				t.Fatalf("committed %d entries, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("entry %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestCommitTurn_ExactConcatenation(t *testing.T) {
	// Committed text equals the exact concatenation of partials in arrival
	// order, untouched by trimming.
	parts := []string{"नम", "स्का", "र ", "मित्रा"}
	var p Partial
	for _, fragment := range parts {
		p.User += fragment
	}
	got := commitTurn(p)
	if len(got) != 1 {
		t.Fatalf("committed %d entries", len(got))
	}
	if want := strings.Join(parts, ""); got[0].Text != want {
		t.Errorf("text = %q, want %q", got[0].Text, want)
	}
}
