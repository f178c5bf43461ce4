// internal/domain/identity/entity.go
package identity

import (
	"database/sql"
	"time"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleTL    Role = "tl"
	RoleUser  Role = "user"
)

// User is what the distribution engines need to know about an actor.
type User struct {
	ID          int64         `json:"id" db:"id"`
	Name        string        `json:"name" db:"name"`
	Email       string        `json:"email" db:"email"`
	Role        Role          `json:"role" db:"role"`
	IsActive    bool          `json:"is_active" db:"is_active"`
	ReportingTo sql.NullInt64 `json:"reporting_to" db:"reporting_to"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}

// Is reports whether the user holds role and is active.
func (u *User) Is(role Role) bool {
	return u != nil && u.IsActive && u.Role == role
}

// ReportsTo reports whether the user is a member of tlID's team.
func (u *User) ReportsTo(tlID int64) bool {
	return u != nil && u.ReportingTo.Valid && u.ReportingTo.Int64 == tlID
}

// LeadCounters is the materialized per-user lead tally.
type LeadCounters struct {
	UserID       int64     `json:"user_id" db:"user_id"`
	TotalLeads   int64     `json:"total_leads" db:"total_leads"`
	PendingLeads int64     `json:"pending_leads" db:"pending_leads"`
	TodaysLeads  int64     `json:"todays_leads" db:"todays_leads"`
	TodaysDate   time.Time `json:"todays_date" db:"todays_date"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
