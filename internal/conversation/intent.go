package conversation

import (
	"context"
	"strings"

	"github.com/josbro2/AI-Health-Book-AppBot/pkg/logging"
)

// IntentDetector decides whether a user turn expresses booking intent. The
// keyword implementation below is a placeholder-grade classifier; callers
// depend on the behavior (intent recognized, selection surface shown), not
// on the keyword list.
type IntentDetector interface {
	HasBookingIntent(ctx context.Context, message string, userTurns int) bool
}

// maxIntentTurns guards re-triggering: the selection surface is only offered
// early in a conversation, before the model has taken over detail collection.
const maxIntentTurns = 5

var bookingKeywords = []string{"book", "appointment", "schedule", "see a doctor"}

// KeywordIntentDetector matches a fixed keyword list.
type KeywordIntentDetector struct {
	logger   *logging.Logger
	keywords []string
}

// NewKeywordIntentDetector creates the default intent detector.
func NewKeywordIntentDetector(logger *logging.Logger) *KeywordIntentDetector {
	if logger == nil {
		logger = logging.Default()
	}
	return &KeywordIntentDetector{logger: logger, keywords: bookingKeywords}
}

// HasBookingIntent reports whether the message matches a booking keyword and
// the conversation is still early enough to offer the selection surface.
func (d *KeywordIntentDetector) HasBookingIntent(_ context.Context, message string, userTurns int) bool {
	if userTurns > maxIntentTurns {
		return false
	}
	lowered := strings.ToLower(message)
	for _, kw := range d.keywords {
		if strings.Contains(lowered, kw) {
			d.logger.Debug("booking intent detected", "keyword", kw)
			return true
		}
	}
	return false
}

var _ IntentDetector = (*KeywordIntentDetector)(nil)
