package conversation

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/josbro2/AI-Health-Book-AppBot/internal/clinic"
	"github.com/josbro2/AI-Health-Book-AppBot/pkg/logging"
)

var extractorTracer = otel.Tracer("healthbook.internal.conversation.extractor")

// invalidSentinel is the exact string the extraction prompts instruct the
// model to emit when no valid value can be produced.
const invalidSentinel = "INVALID"

var strictDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Extractor runs single-shot, deterministic extraction calls against the
// language model and validates the constrained output. Every failure mode
// (model unreachable, sentinel, malformed value) collapses to the empty
// result; the collaborator erroring is never surfaced as a fault.
type Extractor struct {
	llm    LLMClient
	cal    *clinic.Calendar
	logger *logging.Logger
	now    func() time.Time
}

// NewExtractor creates an extractor over the given LLM client.
func NewExtractor(llm LLMClient, cal *clinic.Calendar, logger *logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Extractor{llm: llm, cal: cal, logger: logger, now: time.Now}
}

// ExtractDate interprets a natural-language date expression and returns a
// strict YYYY-MM-DD string, or "" when the text does not name a valid
// present or future clinic-local date.
func (e *Extractor) ExtractDate(ctx context.Context, freeText string) string {
	ctx, span := extractorTracer.Start(ctx, "extractor.date")
	defer span.End()

	today := e.cal.Today(e.now())

	resp, err := e.llm.Complete(ctx, LLMRequest{
		System:      []string{dateExtractionSystem},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: dateExtractionPrompt(freeText, today.Format(clinic.DateFormat))}},
		Temperature: 0, // identical input must yield identical output
	})
	if err != nil {
		span.RecordError(err)
		e.logger.Error("date extraction call failed", "error", err)
		return ""
	}

	return e.validateDate(strings.TrimSpace(resp.Text), today, span)
}

// validateDate enforces the strict format and the not-before-today rule.
// The comparison is a local calendar-day comparison, not a timestamp one.
func (e *Extractor) validateDate(candidate string, today time.Time, span trace.Span) string {
	if candidate == invalidSentinel || !strictDateRe.MatchString(candidate) {
		return ""
	}
	parsed, err := e.cal.ParseDate(candidate)
	if err != nil {
		return ""
	}
	if parsed.Before(today) {
		e.logger.Debug("extracted date is in the past", "date", candidate)
		return ""
	}
	span.SetAttributes(attribute.String("extractor.date", candidate))
	return candidate
}

// ExtractSpecialty identifies which roster specialty a free-text mention
// refers to, or "" when there is no clear match.
func (e *Extractor) ExtractSpecialty(ctx context.Context, freeText string) clinic.Specialty {
	ctx, span := extractorTracer.Start(ctx, "extractor.specialty")
	defer span.End()

	resp, err := e.llm.Complete(ctx, LLMRequest{
		System:      []string{specialtyExtractionSystem},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: specialtyExtractionPrompt(freeText)}},
		Temperature: 0,
	})
	if err != nil {
		span.RecordError(err)
		e.logger.Error("specialty extraction call failed", "error", err)
		return ""
	}

	candidate := strings.TrimSpace(resp.Text)
	if candidate == invalidSentinel {
		return ""
	}
	specialty, ok := clinic.ParseSpecialty(candidate)
	if !ok {
		e.logger.Debug("extracted specialty not in roster", "candidate", candidate)
		return ""
	}
	span.SetAttributes(attribute.String("extractor.specialty", string(specialty)))
	return specialty
}
