// internal/domain/contact/entity.go
package contact

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

type DistributionStatus string

const (
	StatusPending     DistributionStatus = "pending"
	StatusAssigned    DistributionStatus = "assigned"
	StatusDistributed DistributionStatus = "distributed"
	StatusWithdrawn   DistributionStatus = "withdrawn"
	// StatusExpired has no producing transition yet.
	StatusExpired  DistributionStatus = "expired"
	StatusArchived DistributionStatus = "archived"
)

type AssignedType string

const (
	AssignedDirectUser   AssignedType = "direct_user"
	AssignedTL           AssignedType = "tl"
	AssignedAllActive    AssignedType = "all_active"
	AssignedPresentToday AssignedType = "present_today"
	AssignedWithoutData  AssignedType = "without_data"
)

type DistributionMethod string

const (
	MethodManual          DistributionMethod = "manual"
	MethodAuto            DistributionMethod = "auto"
	MethodEqual           DistributionMethod = "equal"
	MethodPerformanceBase DistributionMethod = "performance_based"
)

// Valid reports whether m is one of the known distribution methods.
func (m DistributionMethod) Valid() bool {
	switch m {
	case MethodManual, MethodAuto, MethodEqual, MethodPerformanceBase:
		return true
	}
	return false
}

// AssignmentStatus is the member-facing outcome of a work-queue entry.
type AssignmentStatus string

const (
	AssignmentPending      AssignmentStatus = "pending"
	AssignmentAssigned     AssignmentStatus = "assigned"
	AssignmentContacted    AssignmentStatus = "contacted"
	AssignmentConverted    AssignmentStatus = "converted"
	AssignmentRejected     AssignmentStatus = "rejected"
	AssignmentNotReachable AssignmentStatus = "not_reachable"
)

// Reportable reports whether a member may set this status via UpdateStatus.
func (s AssignmentStatus) Reportable() bool {
	switch s {
	case AssignmentPending, AssignmentContacted, AssignmentConverted,
		AssignmentRejected, AssignmentNotReachable:
		return true
	}
	return false
}

// IsOutreach reports whether reaching this status counts as a call attempt.
func (s AssignmentStatus) IsOutreach() bool {
	switch s {
	case AssignmentContacted, AssignmentConverted, AssignmentRejected, AssignmentNotReachable:
		return true
	}
	return false
}

type Source string

const (
	SourceManualEntry Source = "manual_entry"
	SourceCSVImport   Source = "csv_import"
	SourceExcelImport Source = "excel_import"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// TLDistribution records how a TL pushed a record into a member's queue.
type TLDistribution struct {
	DistributedBy      sql.NullInt64      `json:"distributed_by" db:"tl_distributed_by"`
	DistributedAt      sql.NullTime       `json:"distributed_at" db:"tl_distributed_at"`
	DistributionMethod DistributionMethod `json:"distribution_method,omitempty" db:"tl_distribution_method"`
}

// TeamAssignment is one work-queue entry. At most one entry per record has
// Withdrawn == false.
type TeamAssignment struct {
	ID         int64     `json:"id" db:"id"`
	RecordID   string    `json:"record_id" db:"record_id"`
	TeamMember int64     `json:"team_member" db:"team_member"`
	AssignedBy int64     `json:"assigned_by" db:"assigned_by"`
	AssignedAt time.Time `json:"assigned_at" db:"assigned_at"`

	Status          AssignmentStatus `json:"status" db:"status"`
	StatusUpdatedAt sql.NullTime     `json:"status_updated_at" db:"status_updated_at"`
	Notes           sql.NullString   `json:"notes" db:"notes"`
	ContactedAt     sql.NullTime     `json:"contacted_at" db:"contacted_at"`
	ConvertedAt     sql.NullTime     `json:"converted_at" db:"converted_at"`

	Withdrawn        bool           `json:"withdrawn" db:"withdrawn"`
	WithdrawnAt      sql.NullTime   `json:"withdrawn_at" db:"withdrawn_at"`
	WithdrawnBy      sql.NullInt64  `json:"withdrawn_by" db:"withdrawn_by"`
	WithdrawalReason sql.NullString `json:"withdrawal_reason" db:"withdrawal_reason"`

	CallAttempts int          `json:"call_attempts" db:"call_attempts"`
	LastCallAt   sql.NullTime `json:"last_call_at" db:"last_call_at"`
	FollowUpDate sql.NullTime `json:"follow_up_date" db:"follow_up_date"`
}

// WithdrawalEntry is an append-only audit row.
type WithdrawalEntry struct {
	ID          int64          `json:"id" db:"id"`
	RecordID    string         `json:"record_id" db:"record_id"`
	TeamMember  int64          `json:"team_member" db:"team_member"`
	WithdrawnAt time.Time      `json:"withdrawn_at" db:"withdrawn_at"`
	WithdrawnBy int64          `json:"withdrawn_by" db:"withdrawn_by"`
	Reason      sql.NullString `json:"reason" db:"reason"`
	Notes       sql.NullString `json:"notes" db:"notes"`
}

type ContactRecord struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Contact     string `json:"contact" db:"contact"`
	BatchNumber string `json:"batch_number" db:"batch_number"`

	DistributionStatus DistributionStatus `json:"distribution_status" db:"distribution_status"`

	// Admin-granted assignment
	AssignedType AssignedType  `json:"assigned_type,omitempty" db:"assigned_type"`
	AssignedTo   sql.NullInt64 `json:"assigned_to" db:"assigned_to"`
	AssignedAt   sql.NullTime  `json:"assigned_at" db:"assigned_at"`
	AssignedBy   int64         `json:"assigned_by" db:"assigned_by"`
	CreatedBy    int64         `json:"created_by" db:"created_by"`

	TLDistribution TLDistribution `json:"tl_distribution"`

	TeamAssignments   []TeamAssignment  `json:"team_assignments"`
	WithdrawalHistory []WithdrawalEntry `json:"withdrawal_history"`

	IsActive bool           `json:"is_active" db:"is_active"`
	Source   Source         `json:"source" db:"source"`
	Priority Priority       `json:"priority" db:"priority"`
	Tags     pq.StringArray `json:"tags,omitempty" db:"tags"`

	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at" db:"updated_at"`
	ArchivedAt sql.NullTime `json:"archived_at" db:"archived_at"`
}

// ActiveAssignment returns the entry currently holding the record, if any.
func (r *ContactRecord) ActiveAssignment() *TeamAssignment {
	for i := range r.TeamAssignments {
		if !r.TeamAssignments[i].Withdrawn {
			return &r.TeamAssignments[i]
		}
	}
	return nil
}

// HeldByTL reports whether the record sits in tlID's pool.
func (r *ContactRecord) HeldByTL(tlID int64) bool {
	return r.IsActive && r.AssignedType == AssignedTL &&
		r.AssignedTo.Valid && r.AssignedTo.Int64 == tlID
}

// Claim describes an admin grant of records to a TL or user.
type Claim struct {
	TargetID   int64
	TargetType AssignedType
	AssignedBy int64
	At         time.Time
	// CreateEntry adds a work-queue entry for the target in the same write.
	CreateEntry bool
}

// Withdrawal describes who pulls a record back and why.
type Withdrawal struct {
	By     int64
	Reason string
	Notes  string
	At     time.Time
}

// StatusUpdate is a member-reported outcome on their active entry.
type StatusUpdate struct {
	RecordID     string
	UserID       int64
	Status       AssignmentStatus
	Notes        *string
	FollowUpDate *time.Time
	At           time.Time
}

// DuplicateContact identifies an active record that blocks an import row.
type DuplicateContact struct {
	Row         int    `json:"row,omitempty"`
	RecordID    string `json:"record_id,omitempty"`
	Name        string `json:"name"`
	Contact     string `json:"contact"`
	BatchNumber string `json:"batch_number,omitempty"`
}

// WithdrawOutcome names who lost a record on withdrawal. MemberID is zero when
// the record had no active entry.
type WithdrawOutcome struct {
	RecordID string
	MemberID int64
	HolderID int64
}
