package conversation

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/josbro2/AI-Health-Book-AppBot/pkg/logging"
)

var emergencyTracer = otel.Tracer("healthbook/emergency-detector")

// emergencyPhrases is the fixed phrase list that short-circuits the state
// machine from any state. Checked first on every user turn.
var emergencyPhrases = []string{
	"chest pain", "not breathing", "suicidal", "unconscious", "stroke", "seizure",
	"heart attack", "severe bleeding", "cannot breathe", "choking", "poisoned",
}

// EmergencyResult contains the result of emergency phrase detection.
type EmergencyResult struct {
	Detected      bool
	MatchedPhrase string
}

// EmergencyDetector flags messages describing a medical emergency.
type EmergencyDetector struct {
	logger  *logging.Logger
	phrases []string
}

// NewEmergencyDetector creates a detector over the fixed phrase list.
func NewEmergencyDetector(logger *logging.Logger) *EmergencyDetector {
	if logger == nil {
		logger = logging.Default()
	}
	return &EmergencyDetector{logger: logger, phrases: emergencyPhrases}
}

// Detect scans a message for emergency phrases. Matching is substring based
// and case-insensitive: a transcript like "My father is having chest pain!"
// must trigger.
func (d *EmergencyDetector) Detect(ctx context.Context, message string) EmergencyResult {
	_, span := emergencyTracer.Start(ctx, "emergency.detect")
	defer span.End()

	lowered := strings.ToLower(message)
	for _, phrase := range d.phrases {
		if strings.Contains(lowered, phrase) {
			span.SetAttributes(
				attribute.Bool("emergency.detected", true),
				attribute.String("emergency.phrase", phrase),
			)
			d.logger.Warn("emergency phrase detected", "phrase", phrase)
			return EmergencyResult{Detected: true, MatchedPhrase: phrase}
		}
	}
	return EmergencyResult{}
}
