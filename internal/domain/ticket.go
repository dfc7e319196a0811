package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen         TicketStatus = "Open"
	TicketStatusInProgress   TicketStatus = "In Progress"
	TicketStatusAwaitingInfo TicketStatus = "Awaiting Info"
	TicketStatusResolved     TicketStatus = "Resolved"
	TicketStatusClosed       TicketStatus = "Closed"
)

// ValidStatus reports whether s is a known ticket status.
func ValidStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusAwaitingInfo, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "Low"
	TicketPriorityMedium   TicketPriority = "Medium"
	TicketPriorityHigh     TicketPriority = "High"
	TicketPriorityCritical TicketPriority = "Critical"
)

// ValidPriority reports whether p is a known priority.
func ValidPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// TicketCategory is the closed set of SAP module codes.
type TicketCategory string

const (
	CategoryMM    TicketCategory = "MM"
	CategorySD    TicketCategory = "SD"
	CategoryFICO  TicketCategory = "FICO"
	CategoryPP    TicketCategory = "PP"
	CategoryHCM   TicketCategory = "HCM"
	CategoryPM    TicketCategory = "PM"
	CategoryQM    TicketCategory = "QM"
	CategoryWM    TicketCategory = "WM"
	CategoryPS    TicketCategory = "PS"
	CategoryBW    TicketCategory = "BW"
	CategoryABAP  TicketCategory = "ABAP"
	CategoryBASIS TicketCategory = "BASIS"
	CategoryOther TicketCategory = "OTHER"
)

// AllCategories lists every SAP module code including OTHER.
var AllCategories = []TicketCategory{
	CategoryMM, CategorySD, CategoryFICO, CategoryPP, CategoryHCM, CategoryPM,
	CategoryQM, CategoryWM, CategoryPS, CategoryBW, CategoryABAP, CategoryBASIS,
	CategoryOther,
}

// ValidCategory reports whether c is a known SAP category.
func ValidCategory(c TicketCategory) bool {
	for _, candidate := range AllCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// CategoryDescription returns the human-readable name of an SAP module code.
func CategoryDescription(c TicketCategory) string {
	switch c {
	case CategoryMM:
		return "Material Management"
	case CategorySD:
		return "Sales & Distribution"
	case CategoryFICO:
		return "Finance & Controlling"
	case CategoryPP:
		return "Production Planning"
	case CategoryHCM:
		return "Human Capital Management"
	case CategoryPM:
		return "Plant Maintenance"
	case CategoryQM:
		return "Quality Management"
	case CategoryWM:
		return "Warehouse Management"
	case CategoryPS:
		return "Project System"
	case CategoryBW:
		return "Business Warehouse"
	case CategoryABAP:
		return "ABAP Development"
	case CategoryBASIS:
		return "Basis/Admin"
	default:
		return "Other/Unknown"
	}
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID          int64
	Number      string // T-001 format, immutable
	Title       string
	Description string
	Status      TicketStatus
	Priority    TicketPriority
	Category    TicketCategory
	CreatedBy   int64
	AssignedTo  *int64

	// Email provenance, set only for auto-created tickets.
	SourceEmailID      *string
	SourceEmailFrom    *string
	SourceEmailSubject *string
	LLMConfidence      *float64
	LLMRawResponse     map[string]any

	SLADueDate        *time.Time
	ResolutionMinutes *int
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ResolvedAt        *time.Time
}
