package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/josbro2/AI-Health-Book-AppBot/pkg/logging"
)

func TestEmergencyDetector(t *testing.T) {
	d := NewEmergencyDetector(logging.Default())

	tests := []struct {
		name    string
		message string
		want    bool
	}{
		{"chest pain", "I have chest pain since morning", true},
		{"uppercase", "SEVERE BLEEDING from my arm", true},
		{"embedded phrase", "my father is unconscious, what do I do", true},
		{"cannot breathe", "help, I cannot breathe properly", true},
		{"suicidal", "I am feeling suicidal", true},
		{"benign booking", "I want to book an appointment for a skin rash", false},
		{"mentions doctor", "can I see a cardiologist next week", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := d.Detect(context.Background(), tt.message)
			assert.Equal(t, tt.want, result.Detected)
			if tt.want {
				assert.NotEmpty(t, result.MatchedPhrase)
			}
		})
	}
}

func TestIntentDetector(t *testing.T) {
	d := NewKeywordIntentDetector(logging.Default())
	ctx := context.Background()

	tests := []struct {
		name      string
		message   string
		userTurns int
		want      bool
	}{
		{"book keyword", "I'd like to book something", 1, true},
		{"appointment keyword", "need an APPOINTMENT please", 3, true},
		{"schedule keyword", "can you schedule me in", 5, true},
		{"see a doctor", "I want to see a doctor", 2, true},
		{"no keyword", "what are your opening hours", 1, false},
		{"too late", "book me in", 6, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.HasBookingIntent(ctx, tt.message, tt.userTurns))
		})
	}
}
