package assignment

import (
	"context"
	"errors"
	"fmt"
	"invoice_router/internal/domain"
	"invoice_router/internal/repository"
	"invoice_router/pkg/tracing"
	"log/slog"
	"math"
	"time"
)

var (
	ErrNoEligibleApprover = errors.New("no eligible approver")
	ErrUnknownStrategy    = errors.New("unknown assignment strategy")
	ErrMissingParam       = errors.New("missing strategy parameter")
)

type Config struct {
	MaxBackups          int     `yaml:"max_backups"`
	BaseProcessingHours float64 `yaml:"base_processing_hours"`
	HoursPerWorkItem    float64 `yaml:"hours_per_work_item"`
}

func DefaultConfig() Config {
	return Config{
		MaxBackups:          2,
		BaseProcessingHours: 2,
		HoursPerWorkItem:    0.5,
	}
}

type Recorder interface {
	RecordAssignment(strategy string, success bool, duration time.Duration)
}

// Engine picks a concrete approver for a strategy. Every strategy is a pure
// read of the directory except round-robin, which advances the team cursor
// on each call: repeating a round-robin request is not idempotent.
type Engine struct {
	directory repository.OrgDirectory
	cursors   repository.CursorStore
	cfg       Config
	recorder  Recorder
	logger    *slog.Logger
}

func NewEngine(
	directory repository.OrgDirectory,
	cursors repository.CursorStore,
	cfg Config,
	recorder Recorder,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		directory: directory,
		cursors:   cursors,
		cfg:       cfg,
		recorder:  recorder,
		logger:    logger,
	}
}

// selection is a strategy's pick plus the rest of its pool in the order the
// strategy ranks them.
type selection struct {
	user    *domain.User
	reason  string
	backups []*domain.User
}

func (e *Engine) Assign(
	ctx context.Context,
	strategy domain.Strategy,
	params map[string]string,
	req domain.ApprovalRequest,
) (*domain.AssignmentResult, error) {
	ctx, span := tracing.StartSpan(ctx, "assignment.assign")
	span.WithAttributes(map[string]string{"strategy": string(strategy)})
	defer span.End()

	start := time.Now()
	sel, err := e.selectApprover(ctx, strategy, params, req)
	span.SetStatus(err)
	if e.recorder != nil {
		e.recorder.RecordAssignment(string(strategy), err == nil, time.Since(start))
	}
	if err != nil {
		e.logger.WarnContext(ctx, "Approver assignment failed",
			slog.String("strategy", string(strategy)),
			slog.String("department", req.Department),
			slog.Float64("amount", req.InvoiceAmount),
			slog.String("error", err.Error()))
		return nil, err
	}

	result := e.buildResult(strategy, sel, req)
	e.logger.InfoContext(ctx, "Approver assigned",
		slog.String("strategy", string(strategy)),
		slog.String("user_id", sel.user.ID),
		slog.Int("backups", len(result.BackupUserIDs)))

	return result, nil
}

func (e *Engine) selectApprover(
	ctx context.Context,
	strategy domain.Strategy,
	params map[string]string,
	req domain.ApprovalRequest,
) (*selection, error) {
	switch strategy {
	case domain.StrategyManagerLookup:
		return e.managerLookup(ctx, req)
	case domain.StrategyRoundRobin:
		return e.roundRobin(ctx, params[domain.ParamTeam])
	case domain.StrategyLoadBalance:
		return e.loadBalance(ctx, params[domain.ParamTeam])
	case domain.StrategyHierarchical:
		return e.hierarchical(ctx, req)
	case domain.StrategyDepartmentHead:
		department := params[domain.ParamTargetDepartment]
		if department == "" {
			department = req.Department
		}
		return e.departmentHead(ctx, department)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

func (e *Engine) buildResult(strategy domain.Strategy, sel *selection, req domain.ApprovalRequest) *domain.AssignmentResult {
	backups := sel.backups
	if len(backups) > e.cfg.MaxBackups {
		backups = backups[:max(e.cfg.MaxBackups, 0)]
	}

	ids := make([]string, 0, len(backups))
	for _, u := range backups {
		ids = append(ids, u.ID)
	}

	return &domain.AssignmentResult{
		AssignedUser:                 sel.user,
		Strategy:                     strategy,
		Reason:                       sel.reason,
		EstimatedProcessingTimeHours: e.EstimateHours(sel.user, req.Urgency),
		BackupUserIDs:                ids,
	}
}

// EstimateHours grows linearly with the approver's open items; high urgency
// halves it.
func (e *Engine) EstimateHours(u *domain.User, urgency domain.Urgency) float64 {
	hours := e.cfg.BaseProcessingHours + e.cfg.HoursPerWorkItem*float64(u.CurrentWorkload)
	if urgency == domain.UrgencyHigh {
		hours /= 2
	}
	return math.Round(hours*10) / 10
}

// managerChain walks up from u, stopping at limit links or at a loop in
// the directory data.
func (e *Engine) managerChain(ctx context.Context, u *domain.User, limit int) []*domain.User {
	var chain []*domain.User
	seen := map[string]bool{u.ID: true}
	current := u
	for len(chain) < limit && current.HasManager() && !seen[current.ManagerID] {
		manager, err := e.directory.GetUser(ctx, current.ManagerID)
		if err != nil {
			break
		}
		seen[manager.ID] = true
		chain = append(chain, manager)
		current = manager
	}
	return chain
}
