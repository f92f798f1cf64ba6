package domain

type User struct {
	ID              string   `json:"id" yaml:"id"`
	Name            string   `json:"name" yaml:"name"`
	Title           string   `json:"title" yaml:"title"`
	Email           string   `json:"email,omitempty" yaml:"email,omitempty"`
	Department      string   `json:"department" yaml:"department"`
	ManagerID       string   `json:"manager_id,omitempty" yaml:"manager_id,omitempty"`
	ApprovalLimit   float64  `json:"approval_limit" yaml:"approval_limit"`
	CurrentWorkload int      `json:"current_workload" yaml:"current_workload"`
	MaxWorkload     int      `json:"max_workload" yaml:"max_workload"`
	IsAvailable     bool     `json:"is_available" yaml:"is_available"`
	TeamIDs         []string `json:"team_ids,omitempty" yaml:"team_ids,omitempty"`
}

// LoadRatio is current/max workload. A user without capacity is treated as
// fully loaded so it never wins a load-balanced selection on ratio alone.
func (u *User) LoadRatio() float64 {
	if u.MaxWorkload <= 0 {
		return 1
	}
	return float64(u.CurrentWorkload) / float64(u.MaxWorkload)
}

func (u *User) HasManager() bool {
	return u.ManagerID != ""
}

type Team struct {
	ID        string   `json:"id" yaml:"id"`
	Name      string   `json:"name" yaml:"name"`
	MemberIDs []string `json:"member_ids" yaml:"member_ids"`
}
