// internal/repository/postgres/contact_queries.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadflow-service/internal/domain/contact"
	"leadflow-service/internal/domain/stats"
	xerrors "leadflow-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

const recordColumns = `
	c.id, c.name, c.contact, c.batch_number, c.distribution_status,
	COALESCE(c.assigned_type, ''), c.assigned_to, c.assigned_at, c.assigned_by, c.created_by,
	c.tl_distributed_by, c.tl_distributed_at, COALESCE(c.tl_distribution_method, ''),
	c.is_active, c.source, c.priority, c.tags, c.created_at, c.updated_at, c.archived_at
`

const assignmentColumns = `
	ta.id, ta.record_id, ta.team_member, ta.assigned_by, ta.assigned_at,
	ta.status, ta.status_updated_at, ta.notes, ta.contacted_at, ta.converted_at,
	ta.withdrawn, ta.withdrawn_at, ta.withdrawn_by, ta.withdrawal_reason,
	ta.call_attempts, ta.last_call_at, ta.follow_up_date
`

func scanRecord(row scanner) (*contact.ContactRecord, error) {
	var rec contact.ContactRecord
	var tags []string
	err := row.Scan(
		&rec.ID, &rec.Name, &rec.Contact, &rec.BatchNumber, &rec.DistributionStatus,
		&rec.AssignedType, &rec.AssignedTo, &rec.AssignedAt, &rec.AssignedBy, &rec.CreatedBy,
		&rec.TLDistribution.DistributedBy, &rec.TLDistribution.DistributedAt, &rec.TLDistribution.DistributionMethod,
		&rec.IsActive, &rec.Source, &rec.Priority, &tags, &rec.CreatedAt, &rec.UpdatedAt, &rec.ArchivedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Tags = pq.StringArray(tags)
	return &rec, nil
}

func scanAssignment(row scanner) (*contact.TeamAssignment, error) {
	var a contact.TeamAssignment
	err := row.Scan(
		&a.ID, &a.RecordID, &a.TeamMember, &a.AssignedBy, &a.AssignedAt,
		&a.Status, &a.StatusUpdatedAt, &a.Notes, &a.ContactedAt, &a.ConvertedAt,
		&a.Withdrawn, &a.WithdrawnAt, &a.WithdrawnBy, &a.WithdrawalReason,
		&a.CallAttempts, &a.LastCallAt, &a.FollowUpDate,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindByID loads an active record with its entries and withdrawal history.
func (r *ContactRepository) FindByID(ctx context.Context, id string) (*contact.ContactRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM contact_records c WHERE c.id = $1 AND c.is_active = TRUE`

	rec, err := scanRecord(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.NotFound("record not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find record: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+assignmentColumns+`
		FROM team_assignments ta
		WHERE ta.record_id = $1
		ORDER BY ta.id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load team assignments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team assignment: %w", err)
		}
		rec.TeamAssignments = append(rec.TeamAssignments, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hrows, err := r.db.Query(ctx, `
		SELECT id, record_id, team_member, withdrawn_at, withdrawn_by, reason, notes
		FROM withdrawal_history
		WHERE record_id = $1
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load withdrawal history: %w", err)
	}
	defer hrows.Close()

	for hrows.Next() {
		var h contact.WithdrawalEntry
		if err := hrows.Scan(&h.ID, &h.RecordID, &h.TeamMember, &h.WithdrawnAt, &h.WithdrawnBy, &h.Reason, &h.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal history: %w", err)
		}
		rec.WithdrawalHistory = append(rec.WithdrawalHistory, h)
	}

	return rec, hrows.Err()
}

// FindByIDs loads active records without their entries. Missing ids are
// absent from the map.
func (r *ContactRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*contact.ContactRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM contact_records c WHERE c.id = ANY($1) AND c.is_active = TRUE`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to find records: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*contact.ContactRecord, len(ids))
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out[rec.ID] = rec
	}

	return out, rows.Err()
}

func (r *ContactRepository) listRecords(ctx context.Context, where []string, args []interface{}, f contact.ListFilters) ([]contact.ContactRecord, int64, error) {
	whereClause := "WHERE " + strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM contact_records c `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count records: %w", err)
	}

	argPos := len(args) + 1
	query := fmt.Sprintf(`
		SELECT %s FROM contact_records c
		%s
		ORDER BY c.created_at ASC, c.id ASC
		LIMIT $%d OFFSET $%d
	`, recordColumns, whereClause, argPos, argPos+1)
	args = append(args, f.Limit, f.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := []contact.ContactRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *rec)
	}

	return records, total, rows.Err()
}

// ListPending pages through pending records in claim order.
func (r *ContactRepository) ListPending(ctx context.Context, f contact.ListFilters) ([]contact.ContactRecord, int64, error) {
	where := []string{"c.is_active = TRUE", "c.distribution_status = 'pending'"}
	args := []interface{}{}

	if f.BatchNumber != "" {
		args = append(args, f.BatchNumber)
		where = append(where, fmt.Sprintf("c.batch_number = $%d", len(args)))
	}

	return r.listRecords(ctx, where, args, f)
}

// ListTLPool pages through records the TL holds.
func (r *ContactRepository) ListTLPool(ctx context.Context, tlID int64, f contact.ListFilters) ([]contact.ContactRecord, int64, error) {
	where := []string{"c.is_active = TRUE", "c.assigned_to = $1", "c.assigned_type = 'tl'"}
	args := []interface{}{tlID}

	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("c.distribution_status = $%d", len(args)))
	}
	if f.BatchNumber != "" {
		args = append(args, f.BatchNumber)
		where = append(where, fmt.Sprintf("c.batch_number = $%d", len(args)))
	}

	return r.listRecords(ctx, where, args, f)
}

// ListMemberQueue pages through a member's active entries, newest first.
func (r *ContactRepository) ListMemberQueue(ctx context.Context, memberID int64, f contact.ListFilters) ([]contact.QueueItem, int64, error) {
	where := []string{"c.is_active = TRUE", "NOT ta.withdrawn", "ta.team_member = $1"}
	args := []interface{}{memberID}

	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("ta.status = $%d", len(args)))
	}
	if f.BatchNumber != "" {
		args = append(args, f.BatchNumber)
		where = append(where, fmt.Sprintf("c.batch_number = $%d", len(args)))
	}
	whereClause := "WHERE " + strings.Join(where, " AND ")
	from := `FROM team_assignments ta JOIN contact_records c ON c.id = ta.record_id `

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) `+from+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count queue: %w", err)
	}

	argPos := len(args) + 1
	query := fmt.Sprintf(`
		SELECT c.id, c.name, c.contact, c.batch_number, c.priority, %s
		%s %s
		ORDER BY ta.assigned_at DESC, ta.id DESC
		LIMIT $%d OFFSET $%d
	`, assignmentColumns, from, whereClause, argPos, argPos+1)
	args = append(args, f.Limit, f.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list queue: %w", err)
	}
	defer rows.Close()

	items := []contact.QueueItem{}
	for rows.Next() {
		var it contact.QueueItem
		a := &it.Assignment
		err := rows.Scan(
			&it.RecordID, &it.Name, &it.Contact, &it.BatchNumber, &it.Priority,
			&a.ID, &a.RecordID, &a.TeamMember, &a.AssignedBy, &a.AssignedAt,
			&a.Status, &a.StatusUpdatedAt, &a.Notes, &a.ContactedAt, &a.ConvertedAt,
			&a.Withdrawn, &a.WithdrawnAt, &a.WithdrawnBy, &a.WithdrawalReason,
			&a.CallAttempts, &a.LastCallAt, &a.FollowUpDate,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan queue item: %w", err)
		}
		items = append(items, it)
	}

	return items, total, rows.Err()
}

// CountByStatus groups active records on distribution status.
func (r *ContactRepository) CountByStatus(ctx context.Context) (*stats.GlobalCounts, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE c.distribution_status = 'pending'),
			COUNT(*) FILTER (WHERE c.distribution_status = 'assigned'),
			COUNT(*) FILTER (WHERE c.distribution_status = 'distributed'),
			COUNT(*) FILTER (WHERE c.distribution_status = 'withdrawn'),
			COUNT(*) FILTER (WHERE EXISTS (
				SELECT 1 FROM team_assignments ta
				WHERE ta.record_id = c.id AND NOT ta.withdrawn AND ta.status IN ('converted', 'rejected')
			))
		FROM contact_records c
		WHERE c.is_active = TRUE
	`

	var g stats.GlobalCounts
	err := r.db.QueryRow(ctx, query).Scan(&g.Total, &g.Pending, &g.Assigned, &g.Distributed, &g.Withdrawn, &g.Completed)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}

	return &g, nil
}

const batchSummarySelect = `
	SELECT
		c.batch_number,
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE c.distribution_status = 'pending'),
		COUNT(*) FILTER (WHERE c.distribution_status = 'assigned'),
		COUNT(*) FILTER (WHERE c.distribution_status = 'distributed'),
		COUNT(*) FILTER (WHERE c.distribution_status = 'withdrawn'),
		MIN(c.created_by),
		COALESCE(MAX(u.name), ''),
		MIN(c.created_at) AS created_at
	FROM contact_records c
	LEFT JOIN users u ON u.id = c.created_by
	WHERE c.is_active = TRUE
`

func scanBatchSummary(row scanner) (*stats.BatchSummary, error) {
	var b stats.BatchSummary
	err := row.Scan(&b.BatchNumber, &b.Total, &b.Pending, &b.Assigned, &b.Distributed, &b.Withdrawn,
		&b.CreatedBy, &b.CreatorName, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// BatchStats summarizes one batch.
func (r *ContactRepository) BatchStats(ctx context.Context, batchNumber string) (*stats.BatchSummary, error) {
	query := batchSummarySelect + ` AND c.batch_number = $1 GROUP BY c.batch_number`

	b, err := scanBatchSummary(r.db.QueryRow(ctx, query, batchNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.NotFound("batch not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load batch stats: %w", err)
	}

	return b, nil
}

var batchSortColumns = map[string]string{
	"created_at":   "created_at",
	"batch_number": "c.batch_number",
	"total":        "total",
}

// ListBatches pages through batch summaries.
func (r *ContactRepository) ListBatches(ctx context.Context, f stats.BatchFilters) ([]stats.BatchSummary, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(DISTINCT batch_number) FROM contact_records WHERE is_active = TRUE`,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count batches: %w", err)
	}

	sortCol, ok := batchSortColumns[f.SortBy]
	if !ok {
		sortCol = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		dir = "ASC"
	}

	query := fmt.Sprintf(`%s GROUP BY c.batch_number ORDER BY %s %s, c.batch_number ASC LIMIT $1 OFFSET $2`,
		batchSummarySelect, sortCol, dir)

	rows, err := r.db.Query(ctx, query, f.Limit, (f.Page-1)*f.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	batches := []stats.BatchSummary{}
	for rows.Next() {
		b, err := scanBatchSummary(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, *b)
	}

	return batches, total, rows.Err()
}

// TLStats summarizes the pool a TL holds and the TL's own actions.
func (r *ContactRepository) TLStats(ctx context.Context, tlID int64) (*stats.TLStats, error) {
	s := &stats.TLStats{TLID: tlID, ByMemberStatus: map[string]int64{}}

	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE distribution_status = 'assigned'),
			COUNT(*) FILTER (WHERE distribution_status = 'distributed'),
			COUNT(*) FILTER (WHERE distribution_status = 'withdrawn')
		FROM contact_records
		WHERE is_active = TRUE AND assigned_to = $1 AND assigned_type = 'tl'
	`, tlID).Scan(&s.Held, &s.Assigned, &s.Distributed, &s.Withdrawn)
	if err != nil {
		return nil, fmt.Errorf("failed to count TL pool: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT ta.status, COUNT(*)
		FROM team_assignments ta
		JOIN contact_records c ON c.id = ta.record_id
		WHERE c.is_active = TRUE AND c.assigned_to = $1 AND c.assigned_type = 'tl' AND NOT ta.withdrawn
		GROUP BY ta.status
	`, tlID)
	if err != nil {
		return nil, fmt.Errorf("failed to group TL entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan TL entry group: %w", err)
		}
		s.ByMemberStatus[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = r.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM contact_records WHERE is_active = TRUE AND tl_distributed_by = $1),
			(SELECT COUNT(*) FROM withdrawal_history WHERE withdrawn_by = $1)
	`, tlID).Scan(&s.DistributionsMade, &s.WithdrawalsMade)
	if err != nil {
		return nil, fmt.Errorf("failed to count TL actions: %w", err)
	}

	return s, nil
}

// UserStats groups a member's active entries assigned within [from, to).
func (r *ContactRepository) UserStats(ctx context.Context, userID int64, from, to time.Time) (*stats.UserStats, error) {
	rows, err := r.db.Query(ctx, `
		SELECT ta.status, COUNT(*)
		FROM team_assignments ta
		JOIN contact_records c ON c.id = ta.record_id
		WHERE c.is_active = TRUE AND ta.team_member = $1 AND NOT ta.withdrawn
		  AND ta.assigned_at >= $2 AND ta.assigned_at < $3
		GROUP BY ta.status
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to group user entries: %w", err)
	}
	defer rows.Close()

	s := &stats.UserStats{UserID: userID, From: from, To: to, ByStatus: map[string]int64{}}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan user entry group: %w", err)
		}
		s.ByStatus[status] = n
		s.Total += n
	}

	return s, rows.Err()
}
