package repository

import (
	"context"
	"errors"
	"invoice_router/internal/domain"
)

// OrgDirectory is the read side of the organisation. Workload mutation
// belongs to the wider invoice system, not to routing.
type OrgDirectory interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetTeam(ctx context.Context, id string) (*domain.Team, error)
	GetDepartmentHead(ctx context.Context, department string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
}

// CursorStore holds the per-team round-robin cursor. Advance returns the
// cursor value before the increment; read and advance are one atomic step
// per team. Cursors are created on first use and only reset explicitly.
type CursorStore interface {
	Advance(ctx context.Context, teamID string) (uint64, error)
	Reset(ctx context.Context, teamID string) error
}

type GraphRepository interface {
	Save(ctx context.Context, id string, doc []byte) error
	Get(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
	// Update runs fn on the stored document and saves its output as one
	// step with respect to other writers of the same id.
	Update(ctx context.Context, id string, fn func(doc []byte) ([]byte, error)) error
}

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("duplicate entry")
	ErrUnknownDepartment = errors.New("unknown department")
)
