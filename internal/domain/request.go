package domain

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

type ApprovalRequest struct {
	InvoiceAmount float64 `json:"invoice_amount"`
	Department    string  `json:"department"`
	RequesterID   string  `json:"requester_id,omitempty"`
	Category      string  `json:"category,omitempty"`
	Urgency       Urgency `json:"urgency,omitempty"`
	Vendor        string  `json:"vendor,omitempty"`
	Project       string  `json:"project,omitempty"`
	InvoiceType   string  `json:"invoice_type,omitempty"`
	Description   string  `json:"description,omitempty"`
}

// FactSheet maps condition field names onto invoice facts.
type FactSheet map[string]any

func (r ApprovalRequest) Facts() FactSheet {
	return FactSheet{
		FieldAmount:     r.InvoiceAmount,
		FieldDepartment: r.Department,
		FieldVendor:     r.Vendor,
		FieldCategory:   r.Category,
		FieldProject:    r.Project,
		"urgency":       string(r.Urgency),
		"invoice_type":  r.InvoiceType,
		"requester_id":  r.RequesterID,
	}
}

type AssignmentResult struct {
	AssignedUser                 *User    `json:"assigned_user"`
	Strategy                     Strategy `json:"strategy,omitempty"`
	Reason                       string   `json:"reason"`
	EstimatedProcessingTimeHours float64  `json:"estimated_processing_time_hours"`
	BackupUserIDs                []string `json:"backup_user_ids,omitempty"`
}

type Preset struct {
	Name    string          `json:"name"`
	Request ApprovalRequest `json:"request"`
}

// Presets are the sample invoices offered to rule authors for simulation.
func Presets() []Preset {
	return []Preset{
		{
			Name: "High Value Marketing",
			Request: ApprovalRequest{
				InvoiceAmount: 15000,
				Department:    "Marketing",
				Vendor:        "Acme Corp",
				Project:       "Phoenix",
				Category:      "Software",
				InvoiceType:   "non-po",
				Description:   "Annual marketing software subscription",
				RequesterID:   "marketing-coord-001",
				Urgency:       UrgencyMedium,
			},
		},
		{
			Name: "Low Value IT Purchase",
			Request: ApprovalRequest{
				InvoiceAmount: 500,
				Department:    "Engineering",
				Vendor:        "Tech Solutions",
				Project:       "Infrastructure",
				Category:      "Hardware",
				InvoiceType:   "po-backed",
				Description:   "Office equipment purchase",
				RequesterID:   "it-engineer-001",
				Urgency:       UrgencyLow,
			},
		},
		{
			Name: "Legal Services",
			Request: ApprovalRequest{
				InvoiceAmount: 8500,
				Department:    "Legal",
				Vendor:        "Law Firm LLC",
				Project:       "Compliance",
				Category:      "Services",
				InvoiceType:   "non-po",
				Description:   "Legal consultation services",
				RequesterID:   "legal-counsel-001",
				Urgency:       UrgencyHigh,
			},
		},
		{
			Name: "Finance Emergency",
			Request: ApprovalRequest{
				InvoiceAmount: 75000,
				Department:    "Finance",
				Vendor:        "Emergency Vendor",
				Project:       "Crisis Response",
				Category:      "Services",
				InvoiceType:   "non-po",
				Description:   "Emergency financial consulting",
				RequesterID:   "accountant-001",
				Urgency:       UrgencyHigh,
			},
		},
	}
}
