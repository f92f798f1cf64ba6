package processor

import (
	"context"
	"fmt"
	"invoice_router/internal/domain"
	"invoice_router/internal/graph"
	"invoice_router/pkg/tracing"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const defaultApproveReason = "Rule conditions met"

type Assigner interface {
	Assign(ctx context.Context, strategy domain.Strategy, params map[string]string, req domain.ApprovalRequest) (*domain.AssignmentResult, error)
	Route(ctx context.Context, target string, req domain.ApprovalRequest) (*domain.AssignmentResult, error)
	ResolveUser(ctx context.Context, target string) (*domain.User, error)
}

type Notifier interface {
	NotifyApprover(ctx context.Context, user *domain.User, message, priority string, req domain.ApprovalRequest) error
	NotifyChannel(ctx context.Context, channel, message string) error
}

type SimulationRecorder interface {
	RecordSimulation(status string, steps int, duration time.Duration)
}

// StepObserver receives every step twice: once while it is processing and
// once with its final status. It is advisory; the returned trace is the
// authoritative result.
type StepObserver func(domain.ExecutionStep)

type Option func(*Simulator)

func WithRunIDFunc(fn func() string) Option {
	return func(s *Simulator) { s.newRunID = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// Simulator walks a rule graph for one invoice. Runs share no state with
// each other except what the assigner mutates (round-robin cursors).
type Simulator struct {
	assigner Assigner
	notifier Notifier
	recorder SimulationRecorder
	newRunID func() string
	now      func() time.Time
	printer  *message.Printer
	logger   *slog.Logger
}

func NewSimulator(
	assigner Assigner,
	notifier Notifier,
	recorder SimulationRecorder,
	logger *slog.Logger,
	opts ...Option,
) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Simulator{
		assigner: assigner,
		notifier: notifier,
		recorder: recorder,
		newRunID: uuid.NewString,
		now:      time.Now,
		printer:  message.NewPrinter(language.English),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts at the trigger and follows the first outgoing edge of each
// node. A failed condition ends the run; a failed action is recorded and
// the walk continues. A graph without exactly one trigger is rejected
// before any step is produced.
func (s *Simulator) Run(
	ctx context.Context,
	g *graph.Graph,
	req domain.ApprovalRequest,
	observe StepObserver,
) (*domain.ExecutionTrace, error) {
	trigger, err := g.Trigger()
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "simulator.run")
	span.WithAttributes(map[string]string{"graph_id": g.ID})
	defer span.End()

	start := s.now()
	trace := domain.NewExecutionTrace(s.newRunID(), g.ID, start)
	exec := &stepExecutor{sim: s, ctx: ctx, req: req, facts: req.Facts()}
	visited := make(map[string]bool)

	for node := trigger; node != nil && !visited[node.ID]; {
		visited[node.ID] = true

		step := s.runStep(exec, node, observe)
		trace.Steps = append(trace.Steps, step)

		if step.NodeKind == domain.KindAction && step.Result != nil {
			trace.FinalAction = step.Result.Summary
		}
		if step.NodeKind == domain.KindCondition && step.Status == domain.StepFailed {
			break
		}

		next, ok := g.Next(node.ID)
		if !ok {
			break
		}
		node = next
	}

	elapsed := s.now().Sub(start)
	trace.Finish(elapsed)
	span.SetInt("steps", len(trace.Steps))

	if s.recorder != nil {
		s.recorder.RecordSimulation(string(trace.Status), len(trace.Steps), elapsed)
	}
	s.logger.InfoContext(ctx, "Simulation completed",
		slog.String("run_id", trace.RunID),
		slog.String("graph_id", g.ID),
		slog.String("status", string(trace.Status)),
		slog.Int("steps", len(trace.Steps)),
		slog.Duration("duration", elapsed))

	return trace, nil
}

func (s *Simulator) runStep(exec *stepExecutor, node *domain.Node, observe StepObserver) domain.ExecutionStep {
	step := domain.ExecutionStep{
		NodeID:    node.ID,
		NodeKind:  node.Kind(),
		NodeLabel: node.Label,
		Status:    domain.StepProcessing,
	}
	if observe != nil {
		observe(step)
	}

	started := s.now()
	exec.step = &step
	if !node.Accept(exec) {
		step.Status = domain.StepFailed
		step.Message = fmt.Sprintf("Node %s has no valid body", node.ID)
	}
	step.ElapsedMS = s.now().Sub(started).Milliseconds()

	if observe != nil {
		observe(step)
	}
	return step
}

// formatAmount renders an amount with thousands separators, dropping the
// fraction for whole numbers.
func (s *Simulator) formatAmount(amount float64) string {
	if amount == math.Trunc(amount) && math.Abs(amount) < 1e15 {
		return s.printer.Sprintf("%d", int64(amount))
	}
	return s.printer.Sprintf("%.2f", amount)
}

// stepExecutor runs a single node. It is the only place that dispatches
// on node kind.
type stepExecutor struct {
	sim   *Simulator
	ctx   context.Context
	req   domain.ApprovalRequest
	facts domain.FactSheet
	step  *domain.ExecutionStep
}

func (x *stepExecutor) VisitTrigger(_ *domain.Node, _ *domain.Trigger) {
	vendor := x.req.Vendor
	if vendor == "" {
		vendor = "unknown vendor"
	}
	x.pass(fmt.Sprintf("Processing invoice for $%s from %s", x.sim.formatAmount(x.req.InvoiceAmount), vendor),
		&domain.StepResult{Summary: "Invoice received and rule triggered"})
}

func (x *stepExecutor) VisitCondition(_ *domain.Node, c *domain.Condition) {
	met, explanation := Evaluate(*c, x.facts)
	result := &domain.StepResult{ConditionMet: &met, Summary: "Condition met"}
	if !met {
		result.Summary = "Condition not met"
		x.fail(explanation, result)
		return
	}
	x.pass(explanation, result)
}

func (x *stepExecutor) VisitAction(_ *domain.Node, a *domain.Action) {
	switch a.Kind {
	case domain.ActionRouteToUser:
		x.route(a)
	case domain.ActionDynamicAssignment:
		x.assign(a)
	case domain.ActionSendNotification:
		x.notify(a)
	case domain.ActionApprove:
		reason := a.Reason
		if reason == "" {
			reason = defaultApproveReason
		}
		x.pass("Invoice auto-approved. Reason: "+reason,
			&domain.StepResult{Approved: true, Summary: "Auto-approved"})
	default:
		x.fail(fmt.Sprintf("Unknown action kind: %s", a.Kind), nil)
	}
}

func (x *stepExecutor) route(a *domain.Action) {
	result, err := x.sim.assigner.Route(x.ctx, a.Target, x.req)
	if err != nil {
		x.fail(fmt.Sprintf("Routing failed: %v", err), nil)
		return
	}

	user := result.AssignedUser
	priority := a.Priority
	if priority == "" {
		priority = "medium"
	}
	x.pass(fmt.Sprintf("Invoice routed to %s (%s) - Workload: %d/%d (Priority: %s)",
		user.Name, user.Title, user.CurrentWorkload, user.MaxWorkload, priority),
		&domain.StepResult{Assignment: result, Recipient: user.ID, Summary: "Routed to " + user.Name})
}

func (x *stepExecutor) assign(a *domain.Action) {
	result, err := x.sim.assigner.Assign(x.ctx, a.Strategy, a.StrategyParams, x.req)
	if err != nil {
		x.fail(fmt.Sprintf("Dynamic assignment failed: %v", err), nil)
		return
	}

	user := result.AssignedUser
	x.pass(fmt.Sprintf("%s - Est. processing time: %.1fh (%d backup approvers available)",
		result.Reason, result.EstimatedProcessingTimeHours, len(result.BackupUserIDs)),
		&domain.StepResult{Assignment: result, Recipient: user.ID, Summary: "Dynamically assigned to " + user.Name})
}

// notify sends to a chat channel when the target starts with '#', and
// otherwise emails the resolved user.
func (x *stepExecutor) notify(a *domain.Action) {
	msg := a.Message
	if msg == "" {
		msg = "Invoice requires your attention"
	}

	if channel := strings.TrimSpace(a.Target); strings.HasPrefix(channel, "#") {
		if x.sim.notifier != nil {
			if err := x.sim.notifier.NotifyChannel(x.ctx, channel, msg); err != nil {
				x.fail(fmt.Sprintf("Notification failed: %v", err), nil)
				return
			}
		}
		x.pass(fmt.Sprintf("Notification sent to %s (slack): %q", channel, msg),
			&domain.StepResult{Recipient: channel, Summary: "Notified " + channel})
		return
	}

	user, err := x.sim.assigner.ResolveUser(x.ctx, a.Target)
	if err != nil {
		x.fail(fmt.Sprintf("Notification recipient not found: %s", a.Target), nil)
		return
	}

	if x.sim.notifier != nil {
		if err := x.sim.notifier.NotifyApprover(x.ctx, user, msg, a.Priority, x.req); err != nil {
			x.fail(fmt.Sprintf("Notification failed: %v", err), nil)
			return
		}
	}

	x.pass(fmt.Sprintf("Notification sent to %s (email): %q", user.Name, msg),
		&domain.StepResult{Recipient: user.ID, Summary: "Notified " + user.Name})
}

func (x *stepExecutor) pass(msg string, result *domain.StepResult) {
	x.step.Status = domain.StepPassed
	x.step.Message = msg
	x.step.Result = result
}

func (x *stepExecutor) fail(msg string, result *domain.StepResult) {
	x.step.Status = domain.StepFailed
	x.step.Message = msg
	x.step.Result = result
}
