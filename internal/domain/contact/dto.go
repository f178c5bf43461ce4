// internal/domain/contact/dto.go
package contact

import "time"

// RawRow is one unvalidated {name, contact} pair from manual entry or a file.
type RawRow struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

type ImportRequest struct {
	Rows      []RawRow `json:"rows" binding:"required,min=1"`
	BatchName string   `json:"batch_name" binding:"max=64"`
}

// RowError explains why one submitted row was not inserted.
type RowError struct {
	Row     int    `json:"row"`
	Name    string `json:"name,omitempty"`
	Contact string `json:"contact,omitempty"`
	Reason  string `json:"reason"`
}

const (
	ReasonMissingName         = "missing name"
	ReasonMissingContact      = "missing contact"
	ReasonInvalidPhone        = "invalid phone"
	ReasonDuplicateInBatch    = "duplicate in batch"
	ReasonDuplicateInDatabase = "duplicate in database"
)

type ImportResult struct {
	Count       int                `json:"count"`
	BatchNumber string             `json:"batch_number"`
	Errors      []RowError         `json:"errors"`
	TotalErrors int                `json:"total_errors"`
	Duplicates  []DuplicateContact `json:"duplicates"`

	InvalidCount             int `json:"invalid_count"`
	DuplicateInBatchCount    int `json:"duplicate_in_batch_count"`
	DuplicateInDatabaseCount int `json:"duplicate_in_database_count"`
}

type AssignToTLRequest struct {
	Count int   `json:"count" binding:"required,min=1,max=10000"`
	TLID  int64 `json:"tl_id" binding:"required"`
}

type AssignToUserRequest struct {
	Count  int   `json:"count" binding:"required,min=1,max=10000"`
	UserID int64 `json:"user_id" binding:"required"`
}

type AssignToTLResult struct {
	Count  int    `json:"count"`
	TLID   int64  `json:"tl_id"`
	TLName string `json:"tl_name"`
}

type AssignToUserResult struct {
	Count    int    `json:"count"`
	UserID   int64  `json:"user_id"`
	UserName string `json:"user_name"`
}

type ReassignRequest struct {
	DataIDs  []string `json:"data_ids" binding:"required,min=1,dive,required"`
	TargetID int64    `json:"target_id" binding:"required"`
}

// OpError is a per-record (or per record/member pair) failure inside a bulk loop.
type OpError struct {
	DataID     string `json:"data_id"`
	TeamMember int64  `json:"team_member,omitempty"`
	Error      string `json:"error"`
}

// BulkResult is the partial-failure envelope shared by bulk operations.
type BulkResult struct {
	Count       int       `json:"count"`
	Errors      []OpError `json:"errors"`
	TotalErrors int       `json:"total_errors"`
}

type DistributeRequest struct {
	DataIDs       []string           `json:"data_ids" binding:"required,min=1,dive,required"`
	TeamMemberIDs []int64            `json:"team_member_ids" binding:"required,min=1"`
	Method        DistributionMethod `json:"method"`
}

type WithdrawRequest struct {
	DataIDs []string `json:"data_ids" binding:"required,min=1,dive,required"`
	Reason  string   `json:"reason" binding:"max=500"`
}

type TLWithdrawRequest struct {
	DataIDs       []string `json:"data_ids" binding:"required,min=1,dive,required"`
	TeamMemberIDs []int64  `json:"team_member_ids" binding:"required,min=1"`
	Reason        string   `json:"reason" binding:"max=500"`
}

type UpdateStatusRequest struct {
	Status       AssignmentStatus `json:"status" binding:"required,reportable_status"`
	Notes        *string          `json:"notes" binding:"omitempty,max=2000"`
	FollowUpDate *time.Time       `json:"follow_up_date"`
}

type ListFilters struct {
	BatchNumber string `form:"batch_number"`
	Status      string `form:"status"`
	Page        int    `form:"page"`
	Limit       int    `form:"limit"`
}

// Normalize applies pagination defaults and bounds.
func (f *ListFilters) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
}

// Offset is the row offset for the current page.
func (f *ListFilters) Offset() int {
	return (f.Page - 1) * f.Limit
}

type RecordListResponse struct {
	Records    []ContactRecord `json:"records"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
}

// QueueItem is a record as seen from one member's work queue.
type QueueItem struct {
	RecordID    string         `json:"record_id"`
	Name        string         `json:"name"`
	Contact     string         `json:"contact"`
	BatchNumber string         `json:"batch_number"`
	Priority    Priority       `json:"priority"`
	Assignment  TeamAssignment `json:"assignment"`
}

type QueueResponse struct {
	Items      []QueueItem `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// TotalPages computes the page count for total rows at limit per page.
func TotalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	pages := int(total) / limit
	if int(total)%limit > 0 {
		pages++
	}
	return pages
}
