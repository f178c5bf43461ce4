// internal/domain/stats/entity.go
package stats

import "time"

// GlobalCounts groups active records by distribution status.
type GlobalCounts struct {
	Total       int64 `json:"total"`
	Pending     int64 `json:"pending"`
	Assigned    int64 `json:"assigned"`
	Distributed int64 `json:"distributed"`
	Withdrawn   int64 `json:"withdrawn"`
	// Completed counts records whose active entry ended converted or rejected.
	Completed int64 `json:"completed"`
}

type BatchSummary struct {
	BatchNumber string    `json:"batch_number"`
	Total       int64     `json:"total"`
	Pending     int64     `json:"pending"`
	Assigned    int64     `json:"assigned"`
	Distributed int64     `json:"distributed"`
	Withdrawn   int64     `json:"withdrawn"`
	CreatedBy   int64     `json:"created_by"`
	CreatorName string    `json:"creator_name"`
	CreatedAt   time.Time `json:"created_at"`
}

type BatchFilters struct {
	Page      int    `form:"page"`
	Limit     int    `form:"limit"`
	SortBy    string `form:"sort_by" binding:"omitempty,oneof=created_at batch_number total"`
	SortOrder string `form:"sort_order" binding:"omitempty,oneof=asc desc"`
}

// Normalize applies defaults and bounds.
func (f *BatchFilters) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.SortBy == "" {
		f.SortBy = "created_at"
	}
	if f.SortOrder == "" {
		f.SortOrder = "desc"
	}
}

type BatchListResponse struct {
	Batches    []BatchSummary `json:"batches"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
}

// TLStats describes a TL's pool.
type TLStats struct {
	TLID int64 `json:"tl_id"`
	// Held counts records with assignedTo=tl, assignedType=tl.
	Held        int64 `json:"held"`
	Assigned    int64 `json:"assigned"`
	Distributed int64 `json:"distributed"`
	Withdrawn   int64 `json:"withdrawn"`
	// ByMemberStatus breaks active entries of held records down by status.
	ByMemberStatus map[string]int64 `json:"by_member_status"`
	// DistributionsMade counts active records this TL pushed to a member.
	DistributionsMade int64 `json:"distributions_made"`
	// WithdrawalsMade counts history rows written by this TL.
	WithdrawalsMade int64 `json:"withdrawals_made"`
}

// UserStats counts a user's active entries by status within a window.
type UserStats struct {
	UserID   int64            `json:"user_id"`
	From     time.Time        `json:"from"`
	To       time.Time        `json:"to"`
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
}

type UserStatsFilters struct {
	From *time.Time `form:"from" time_format:"2006-01-02" time_utc:"1"`
	To   *time.Time `form:"to" time_format:"2006-01-02" time_utc:"1"`
}

// Overview is the admin dashboard payload.
type Overview struct {
	Counts        GlobalCounts   `json:"counts"`
	RecentBatches []BatchSummary `json:"recent_batches"`
}
