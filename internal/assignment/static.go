package assignment

import (
	"context"
	"errors"
	"fmt"
	"invoice_router/internal/domain"
	"invoice_router/internal/repository"
	"log/slog"
	"strings"
)

// ResolveUser finds a route-to-user target. Editor-built actions carry a
// user id; compiled ones carry whatever name or title the author wrote, so
// those fall back to a case-insensitive match in directory order.
func (e *Engine) ResolveUser(ctx context.Context, target string) (*domain.User, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("%w: empty route target", ErrNoEligibleApprover)
	}

	user, err := e.directory.GetUser(ctx, target)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	users, err := e.directory.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for _, u := range users {
		if strings.EqualFold(u.Name, target) || strings.EqualFold(u.Title, target) {
			return u, nil
		}
	}
	return nil, fmt.Errorf("%w: user not found: %s", ErrNoEligibleApprover, target)
}

// Route assigns a fixed approver. It touches no dispatch state.
func (e *Engine) Route(ctx context.Context, target string, req domain.ApprovalRequest) (*domain.AssignmentResult, error) {
	user, err := e.ResolveUser(ctx, target)
	if err != nil {
		return nil, err
	}

	return &domain.AssignmentResult{
		AssignedUser:                 user,
		Reason:                       fmt.Sprintf("Routed to %s (%s)", user.Name, user.Title),
		EstimatedProcessingTimeHours: e.EstimateHours(user, req.Urgency),
	}, nil
}

func (e *Engine) ResetCursor(ctx context.Context, teamID string) error {
	if _, err := e.directory.GetTeam(ctx, teamID); err != nil {
		return err
	}
	if err := e.cursors.Reset(ctx, teamID); err != nil {
		return fmt.Errorf("reset cursor for team %s: %w", teamID, err)
	}
	e.logger.InfoContext(ctx, "Round-robin cursor reset", slog.String("team_id", teamID))
	return nil
}
