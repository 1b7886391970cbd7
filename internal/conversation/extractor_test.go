package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josbro2/AI-Health-Book-AppBot/internal/clinic"
	"github.com/josbro2/AI-Health-Book-AppBot/pkg/logging"
)

// scriptedLLM answers every Complete call with a fixed reply.
type scriptedLLM struct {
	reply string
	err   error
	last  LLMRequest
}

func (s *scriptedLLM) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	s.last = req
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	return LLMResponse{Text: s.reply}, nil
}

func newTestExtractor(t *testing.T, llm LLMClient) *Extractor {
	t.Helper()
	cal, err := clinic.NewCalendar("Asia/Kolkata")
	require.NoError(t, err)
	e := NewExtractor(llm, cal, logging.Default())
	e.now = func() time.Time { return time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestExtractDate(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"future date", "2025-03-10", "2025-03-10"},
		{"today", "2025-03-08", "2025-03-08"},
		{"sentinel", "INVALID", ""},
		{"past date", "2025-03-01", ""},
		{"loose format", "10th of March", ""},
		{"date with prose", "The date is 2025-03-10", ""},
		{"impossible date", "2025-13-45", ""},
		{"whitespace tolerated", "  2025-03-10  ", "2025-03-10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestExtractor(t, &scriptedLLM{reply: tt.reply})
			assert.Equal(t, tt.want, e.ExtractDate(context.Background(), "whenever"))
		})
	}
}

func TestExtractDateUsesZeroTemperature(t *testing.T) {
	llm := &scriptedLLM{reply: "2025-03-10"}
	e := newTestExtractor(t, llm)
	e.ExtractDate(context.Background(), "day after tomorrow")

	assert.Zero(t, llm.last.Temperature)
	require.Len(t, llm.last.Messages, 1)
	assert.Contains(t, llm.last.Messages[0].Content, "2025-03-08", "prompt must anchor today's date")
}

func TestExtractDateLLMFailure(t *testing.T) {
	e := newTestExtractor(t, &scriptedLLM{err: errors.New("down")})
	assert.Equal(t, "", e.ExtractDate(context.Background(), "tomorrow"))
}

func TestExtractSpecialty(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  clinic.Specialty
	}{
		{"exact", "Cardiologist", clinic.Cardiologist},
		{"case insensitive", "dermatologist", clinic.Dermatologist},
		{"sentinel", "INVALID", ""},
		{"off roster", "Neurologist", ""},
		{"prose around value", "The specialty is Cardiologist.", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestExtractor(t, &scriptedLLM{reply: tt.reply})
			assert.Equal(t, tt.want, e.ExtractSpecialty(context.Background(), "my heart hurts"))
		})
	}
}

func TestExtractSpecialtyLLMFailure(t *testing.T) {
	e := newTestExtractor(t, &scriptedLLM{err: errors.New("down")})
	assert.Equal(t, clinic.Specialty(""), e.ExtractSpecialty(context.Background(), "skin rash"))
}
