package memory

import (
	"context"
	"errors"
	"fmt"
	"invoice_router/internal/domain"
	"invoice_router/internal/repository"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DirectoryFixture is the on-disk shape of an organisation.
type DirectoryFixture struct {
	Users           []*domain.User    `yaml:"users"`
	Teams           []*domain.Team    `yaml:"teams"`
	DepartmentHeads map[string]string `yaml:"department_heads"`
}

// Directory is an in-memory OrgDirectory. Users keep their fixture order,
// which ListUsers preserves.
type Directory struct {
	mu    sync.RWMutex
	order []string
	users map[string]*domain.User
	teams map[string]*domain.Team
	heads map[string]string
}

func NewDirectory(fixture DirectoryFixture) (*Directory, error) {
	d := &Directory{
		users: make(map[string]*domain.User, len(fixture.Users)),
		teams: make(map[string]*domain.Team, len(fixture.Teams)),
		heads: make(map[string]string, len(fixture.DepartmentHeads)),
	}

	for _, u := range fixture.Users {
		if u == nil || u.ID == "" {
			return nil, errors.New("user without id")
		}
		if _, exists := d.users[u.ID]; exists {
			return nil, fmt.Errorf("%w: user %s", repository.ErrDuplicate, u.ID)
		}
		if u.ApprovalLimit < 0 {
			return nil, fmt.Errorf("user %s: negative approval limit", u.ID)
		}
		if u.CurrentWorkload < 0 || u.MaxWorkload < 0 {
			return nil, fmt.Errorf("user %s: negative workload", u.ID)
		}
		user := *u
		d.users[u.ID] = &user
		d.order = append(d.order, u.ID)
	}

	for _, t := range fixture.Teams {
		if t == nil || t.ID == "" {
			return nil, errors.New("team without id")
		}
		if _, exists := d.teams[t.ID]; exists {
			return nil, fmt.Errorf("%w: team %s", repository.ErrDuplicate, t.ID)
		}
		for _, memberID := range t.MemberIDs {
			if _, ok := d.users[memberID]; !ok {
				return nil, fmt.Errorf("team %s: %w: user %s", t.ID, repository.ErrNotFound, memberID)
			}
		}
		team := *t
		team.MemberIDs = append([]string(nil), t.MemberIDs...)
		d.teams[t.ID] = &team
	}

	for dept, headID := range fixture.DepartmentHeads {
		if _, ok := d.users[headID]; !ok {
			return nil, fmt.Errorf("department %s: %w: user %s", dept, repository.ErrNotFound, headID)
		}
		d.heads[strings.ToLower(dept)] = headID
	}

	return d, nil
}

func ParseDirectory(data []byte) (*Directory, error) {
	var fixture DirectoryFixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("failed to parse directory: %w", err)
	}
	return NewDirectory(fixture)
}

func LoadDirectory(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", path, err)
	}
	return ParseDirectory(data)
}

func (d *Directory) GetUser(ctx context.Context, id string) (*domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, exists := d.users[id]
	if !exists {
		return nil, fmt.Errorf("%w: user %s", repository.ErrNotFound, id)
	}
	u := *user
	return &u, nil
}

func (d *Directory) GetTeam(ctx context.Context, id string) (*domain.Team, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	team, exists := d.teams[id]
	if !exists {
		return nil, fmt.Errorf("%w: team %s", repository.ErrNotFound, id)
	}
	t := *team
	t.MemberIDs = append([]string(nil), team.MemberIDs...)
	return &t, nil
}

func (d *Directory) GetDepartmentHead(ctx context.Context, department string) (*domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	headID, exists := d.heads[strings.ToLower(department)]
	if !exists {
		return nil, fmt.Errorf("%w: %s", repository.ErrUnknownDepartment, department)
	}
	u := *d.users[headID]
	return &u, nil
}

func (d *Directory) ListUsers(ctx context.Context) ([]*domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]*domain.User, 0, len(d.order))
	for _, id := range d.order {
		u := *d.users[id]
		result = append(result, &u)
	}
	return result, nil
}

// AdjustWorkload applies delta to a user's current workload, clamping at
// zero. Routing never calls it; it stands in for the invoice system that
// owns workload.
func (d *Directory) AdjustWorkload(ctx context.Context, id string, delta int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	user, exists := d.users[id]
	if !exists {
		return fmt.Errorf("%w: user %s", repository.ErrNotFound, id)
	}

	user.CurrentWorkload += delta
	if user.CurrentWorkload < 0 {
		user.CurrentWorkload = 0
	}
	return nil
}

func (d *Directory) SetAvailability(ctx context.Context, id string, available bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	user, exists := d.users[id]
	if !exists {
		return fmt.Errorf("%w: user %s", repository.ErrNotFound, id)
	}
	user.IsAvailable = available
	return nil
}
