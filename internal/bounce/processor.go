package bounce

import (
	"context"
	"io"
	"log/slog"
)

// Stage names the step a message has reached inside Process.
type Stage string

const (
	StageLoaded            Stage = "loaded"
	StageDiagnosticChecked Stage = "diagnostic_checked"
	StageClassified        Stage = "classified"
	StageRecipientResolved Stage = "recipient_resolved"
	StageRecorded          Stage = "recorded"
)

// Processor turns one RawMessage into one Record. It holds no per-message state and
// is safe for concurrent use.
type Processor struct {
	classifier *Classifier
	resolver   *Resolver
	logger     *slog.Logger
}

func NewProcessor(classifier *Classifier, resolver *Resolver, logger *slog.Logger) *Processor {
	if classifier == nil {
		classifier = DefaultClassifier()
	}
	if resolver == nil {
		resolver = NewResolver(nil)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Processor{classifier: classifier, resolver: resolver, logger: logger}
}

func (p *Processor) Classifier() *Classifier {
	return p.classifier
}

// Result is a record together with how it was derived.
type Result struct {
	Record     Record
	Diagnostic bool
	Matched    bool
	Resolved   bool
}

// Classify finds the bounce classification of a message's lines. The first boolean
// is false when the auto responder fallback was used, the second when no rule
// recognised the diagnostic code.
func (p *Processor) Classify(lines []string) (Classification, bool, bool) {
	code, ok := LookupDiagnosticCode(lines)
	if !ok {
		return Classification{Code: "", Reason: ReasonAutoResponder}, false, false
	}
	if class, matched := p.classifier.Match(code); matched {
		return class, true, true
	}
	return Unknown(code), true, false
}

// Process always yields a record; unresolved fields are left empty.
func (p *Processor) Process(msg RawMessage) Record {
	return p.Analyze(msg).Record
}

func (p *Processor) Analyze(msg RawMessage) Result {
	log := p.logger.With("message", msg.Name)
	p.stage(log, StageLoaded, "lines", len(msg.Lines))

	class, found, matched := p.Classify(msg.Lines)
	p.stage(log, StageDiagnosticChecked, "diagnostic_code", found)
	p.stage(log, StageClassified, "code", class.Code, "reason", class.Reason, "matched", matched)

	recipient, resolved := p.resolver.Resolve(msg.Lines)
	p.stage(log, StageRecipientResolved, "recipient", recipient, "resolved", resolved)

	record := Record{
		Source:    msg.Name,
		Recipient: recipient,
		Code:      class.Code,
		Reason:    class.Reason,
	}
	p.stage(log, StageRecorded)
	return Result{Record: record, Diagnostic: found, Matched: matched, Resolved: resolved}
}

func (p *Processor) stage(log *slog.Logger, stage Stage, args ...any) {
	log.Log(context.Background(), slog.LevelDebug, "bounce stage", append([]any{"stage", string(stage)}, args...)...)
}
