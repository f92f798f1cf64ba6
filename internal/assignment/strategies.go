package assignment

import (
	"context"
	"fmt"
	"invoice_router/internal/domain"
	"sort"
)

func (e *Engine) managerLookup(ctx context.Context, req domain.ApprovalRequest) (*selection, error) {
	if req.RequesterID == "" {
		return nil, fmt.Errorf("%w: request has no requester", ErrNoEligibleApprover)
	}

	requester, err := e.directory.GetUser(ctx, req.RequesterID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoEligibleApprover, err)
	}
	if !requester.HasManager() {
		return nil, fmt.Errorf("%w: %s has no manager on file", ErrNoEligibleApprover, requester.Name)
	}

	manager, err := e.directory.GetUser(ctx, requester.ManagerID)
	if err != nil {
		return nil, fmt.Errorf("%w: manager of %s: %w", ErrNoEligibleApprover, requester.Name, err)
	}

	return &selection{
		user:    manager,
		reason:  fmt.Sprintf("Direct manager of %s (%s)", requester.Name, requester.Title),
		backups: e.managerChain(ctx, manager, e.cfg.MaxBackups),
	}, nil
}

func (e *Engine) roundRobin(ctx context.Context, teamID string) (*selection, error) {
	team, members, err := e.teamMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}

	cursor, err := e.cursors.Advance(ctx, team.ID)
	if err != nil {
		return nil, fmt.Errorf("advance cursor for team %s: %w", team.ID, err)
	}
	idx := int(cursor % uint64(len(members)))

	backups := make([]*domain.User, 0, len(members)-1)
	for i := 1; i < len(members); i++ {
		backups = append(backups, members[(idx+i)%len(members)])
	}

	return &selection{
		user:    members[idx],
		reason:  fmt.Sprintf("Round-robin assignment in %s (position %d of %d)", team.Name, idx+1, len(members)),
		backups: backups,
	}, nil
}

// loadBalance reads workload as the directory reports it right now. A
// concurrent workload change may land between the read and the pick; the
// choice is best-effort and not transactional.
func (e *Engine) loadBalance(ctx context.Context, teamID string) (*selection, error) {
	team, members, err := e.teamMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}

	available := make([]*domain.User, 0, len(members))
	for _, m := range members {
		if m.IsAvailable {
			available = append(available, m)
		}
	}
	if len(available) == 0 {
		return nil, fmt.Errorf("%w: no available member in team %s", ErrNoEligibleApprover, team.Name)
	}

	sort.SliceStable(available, func(i, j int) bool {
		ri, rj := available[i].LoadRatio(), available[j].LoadRatio()
		if ri != rj {
			return ri < rj
		}
		return available[i].CurrentWorkload < available[j].CurrentWorkload
	})

	chosen := available[0]
	return &selection{
		user: chosen,
		reason: fmt.Sprintf("Lowest workload in %s (%d/%d items)",
			team.Name, chosen.CurrentWorkload, chosen.MaxWorkload),
		backups: available[1:],
	}, nil
}

// hierarchical scans every user but only picks among available ones: an
// absent approver cannot act on the invoice, so the next tightest limit wins.
func (e *Engine) hierarchical(ctx context.Context, req domain.ApprovalRequest) (*selection, error) {
	users, err := e.directory.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	eligible := make([]*domain.User, 0, len(users))
	for _, u := range users {
		if u.IsAvailable && u.ApprovalLimit >= req.InvoiceAmount {
			eligible = append(eligible, u)
		}
	}
	if len(eligible) == 0 {
		return nil, fmt.Errorf("%w: no approval limit covers %.2f", ErrNoEligibleApprover, req.InvoiceAmount)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].ApprovalLimit < eligible[j].ApprovalLimit
	})

	chosen := eligible[0]
	return &selection{
		user: chosen,
		reason: fmt.Sprintf("%s (%s) has the lowest approval limit covering the amount (%.2f)",
			chosen.Name, chosen.Title, chosen.ApprovalLimit),
		backups: eligible[1:],
	}, nil
}

func (e *Engine) departmentHead(ctx context.Context, department string) (*selection, error) {
	if department == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingParam, domain.ParamTargetDepartment)
	}

	head, err := e.directory.GetDepartmentHead(ctx, department)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoEligibleApprover, err)
	}

	return &selection{
		user:    head,
		reason:  fmt.Sprintf("Head of %s", department),
		backups: e.managerChain(ctx, head, e.cfg.MaxBackups),
	}, nil
}

func (e *Engine) teamMembers(ctx context.Context, teamID string) (*domain.Team, []*domain.User, error) {
	if teamID == "" {
		return nil, nil, fmt.Errorf("%w: %s", ErrMissingParam, domain.ParamTeam)
	}

	team, err := e.directory.GetTeam(ctx, teamID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrNoEligibleApprover, err)
	}
	if len(team.MemberIDs) == 0 {
		return nil, nil, fmt.Errorf("%w: team %s has no members", ErrNoEligibleApprover, team.Name)
	}

	members := make([]*domain.User, 0, len(team.MemberIDs))
	for _, id := range team.MemberIDs {
		u, err := e.directory.GetUser(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("team %s member: %w", team.ID, err)
		}
		members = append(members, u)
	}
	return team, members, nil
}
