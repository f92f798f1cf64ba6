package compiler

import (
	"context"
	"invoice_router/internal/domain"
	"invoice_router/pkg/tracing"
	"log/slog"
	"strings"
)

const (
	ConfidenceMatched   = 0.85
	ConfidenceUnmatched = 0.30
)

type CompileRecorder interface {
	RecordCompile(confidence float64, needsReview bool)
}

// Compiler turns rule prose into a ParsedRule. The parse itself is pure;
// the Compiler only adds metrics and logging around it.
type Compiler struct {
	recorder CompileRecorder
	logger   *slog.Logger
}

func NewCompiler(recorder CompileRecorder, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{recorder: recorder, logger: logger}
}

func (c *Compiler) Compile(ctx context.Context, text string) *domain.ParsedRule {
	_, span := tracing.StartSpan(ctx, "compiler.compile")
	defer span.End()

	rule := Parse(text)
	span.SetInt("entities", len(rule.Entities))

	if c.recorder != nil {
		c.recorder.RecordCompile(rule.Confidence, rule.NeedsReview())
	}

	level := slog.LevelInfo
	if rule.NeedsReview() {
		level = slog.LevelWarn
	}
	c.logger.Log(ctx, level, "Rule compiled",
		slog.Int("entities", len(rule.Entities)),
		slog.Int("conditions", len(rule.Conditions)),
		slog.Int("actions", len(rule.Actions)),
		slog.Float64("confidence", rule.Confidence),
		slog.Bool("needs_review", rule.NeedsReview()))

	return rule
}

// PassNames lists the extractor passes in the order they run.
func PassNames() []string {
	names := make([]string, 0, len(passes))
	for _, p := range passes {
		names = append(names, p.Name)
	}
	return names
}

// Parse runs every extractor pass over text in order. The same text always
// yields the same rule.
func Parse(text string) *domain.ParsedRule {
	d := &draft{
		text:  text,
		lower: asciiLower(text),
		rule: &domain.ParsedRule{
			Trigger:    domain.Trigger{EventType: domain.EventInvoiceReceived, Description: "Invoice Received"},
			Conditions: []domain.Condition{},
			Actions:    []domain.Action{},
			Entities:   []domain.Entity{},
		},
	}

	for _, p := range passes {
		p.Extract(d, p.Weight)
	}

	d.rule.Confidence = ConfidenceUnmatched
	if len(d.rule.Entities) > 0 {
		d.rule.Confidence = ConfidenceMatched
	}
	return d.rule
}

type span struct {
	start, end int
}

// draft is the rule under construction. Passes claim the byte ranges they
// consume so that later passes do not read the same words twice.
type draft struct {
	text    string
	lower   string
	rule    *domain.ParsedRule
	claimed []span
}

func (d *draft) claim(start, end int) {
	d.claimed = append(d.claimed, span{start, end})
}

func (d *draft) isClaimed(start, end int) bool {
	for _, s := range d.claimed {
		if start < s.end && s.start < end {
			return true
		}
	}
	return false
}

func (d *draft) entity(t domain.EntityType, value string, confidence float64, start, end int) {
	d.rule.Entities = append(d.rule.Entities, domain.Entity{
		Type:       t,
		Value:      value,
		Confidence: confidence,
		Start:      start,
		End:        end,
	})
}

// condition appends c unless an equivalent condition is already present.
func (d *draft) condition(c domain.Condition) {
	for _, existing := range d.rule.Conditions {
		if existing.Field == c.Field && existing.Operator == c.Operator &&
			strings.EqualFold(existing.Value, c.Value) && existing.ValueMax == c.ValueMax {
			return
		}
	}
	d.rule.Conditions = append(d.rule.Conditions, c)
}

func (d *draft) action(a domain.Action) {
	for _, existing := range d.rule.Actions {
		if existing.Kind == a.Kind && strings.EqualFold(existing.Target, a.Target) &&
			existing.Strategy == a.Strategy && sameParams(existing.StrategyParams, a.StrategyParams) {
			return
		}
	}
	d.rule.Actions = append(d.rule.Actions, a)
}

func sameParams(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
