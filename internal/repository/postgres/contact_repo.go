// internal/repository/postgres/contact_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadflow-service/internal/domain/contact"
	xerrors "leadflow-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ContactRepository struct {
	db *pgxpool.Pool
}

func NewContactRepository(db *pgxpool.Pool) *ContactRepository {
	return &ContactRepository{db: db}
}

const insertRecordQuery = `
	INSERT INTO contact_records (
		id, name, contact, batch_number, distribution_status, assigned_by, created_by,
		is_active, source, priority, tags, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, $9, $10, $11, $11)
	ON CONFLICT (contact) WHERE is_active DO NOTHING
	RETURNING id
`

// InsertBatch inserts records in one transaction. Records whose contact was
// taken by a concurrent import are skipped and their indexes returned.
func (r *ContactRepository) InsertBatch(ctx context.Context, records []contact.ContactRecord) ([]int, error) {
	var skipped []int

	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for i := range records {
			rec := &records[i]
			batch.Queue(insertRecordQuery,
				rec.ID, rec.Name, rec.Contact, rec.BatchNumber, rec.DistributionStatus,
				rec.AssignedBy, rec.CreatedBy, rec.Source, rec.Priority, []string(rec.Tags), rec.CreatedAt,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for i := range records {
			var id string
			err := br.QueryRow().Scan(&id)
			if errors.Is(err, pgx.ErrNoRows) {
				skipped = append(skipped, i)
				continue
			}
			if err != nil {
				br.Close()
				return fmt.Errorf("failed to insert contact record: %w", err)
			}
		}
		return br.Close()
	})
	if err != nil {
		return nil, err
	}

	return skipped, nil
}

// FindActiveByContacts returns active records holding any of the contacts.
func (r *ContactRepository) FindActiveByContacts(ctx context.Context, contacts []string) ([]contact.DuplicateContact, error) {
	if len(contacts) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, name, contact, batch_number
		FROM contact_records
		WHERE is_active = TRUE AND contact = ANY($1)
	`

	rows, err := r.db.Query(ctx, query, contacts)
	if err != nil {
		return nil, fmt.Errorf("failed to find existing contacts: %w", err)
	}
	defer rows.Close()

	var dups []contact.DuplicateContact
	for rows.Next() {
		var d contact.DuplicateContact
		if err := rows.Scan(&d.RecordID, &d.Name, &d.Contact, &d.BatchNumber); err != nil {
			return nil, fmt.Errorf("failed to scan existing contact: %w", err)
		}
		dups = append(dups, d)
	}

	return dups, rows.Err()
}

// ClaimPending atomically moves up to n of the oldest pending records to the
// claim target. Concurrent callers never receive the same record.
func (r *ContactRepository) ClaimPending(ctx context.Context, n int, claim contact.Claim) ([]string, error) {
	query := `
		WITH picked AS (
			SELECT id FROM contact_records
			WHERE distribution_status = 'pending' AND is_active = TRUE
			ORDER BY created_at ASC, id ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE contact_records c
		SET distribution_status = 'assigned',
		    assigned_to = $2, assigned_type = $3, assigned_by = $4,
		    assigned_at = $5, updated_at = $5
		FROM picked
		WHERE c.id = picked.id
		RETURNING c.id
	`

	var ids []string
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, n, claim.TargetID, claim.TargetType, claim.AssignedBy, claim.At)
		if err != nil {
			return fmt.Errorf("failed to claim pending records: %w", err)
		}
		ids, err = pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("failed to read claimed records: %w", err)
		}

		if claim.CreateEntry && len(ids) > 0 {
			if err := insertEntries(ctx, tx, ids, claim.TargetID, claim.AssignedBy, claim.At); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}

func insertEntries(ctx context.Context, tx pgx.Tx, recordIDs []string, member, by int64, at time.Time) error {
	query := `
		INSERT INTO team_assignments (record_id, team_member, assigned_by, assigned_at, status)
		SELECT unnest($1::text[]), $2, $3, $4, 'pending'
	`
	if _, err := tx.Exec(ctx, query, recordIDs, member, by, at); err != nil {
		if isUniqueViolation(err) {
			return xerrors.Conflict("record already has an active holder")
		}
		return fmt.Errorf("failed to create team assignments: %w", err)
	}
	return nil
}

// Reassign hands a withdrawn record with no active holder to a new target.
func (r *ContactRepository) Reassign(ctx context.Context, recordID string, claim contact.Claim) error {
	query := `
		UPDATE contact_records c
		SET distribution_status = 'assigned',
		    assigned_to = $2, assigned_type = $3, assigned_by = $4,
		    assigned_at = $5, updated_at = $5,
		    tl_distributed_by = NULL, tl_distributed_at = NULL, tl_distribution_method = NULL
		WHERE c.id = $1 AND c.is_active = TRUE AND c.distribution_status = 'withdrawn'
		  AND NOT EXISTS (
			SELECT 1 FROM team_assignments ta WHERE ta.record_id = c.id AND NOT ta.withdrawn
		  )
	`

	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, query, recordID, claim.TargetID, claim.TargetType, claim.AssignedBy, claim.At)
		if err != nil {
			return fmt.Errorf("failed to reassign record: %w", err)
		}
		if result.RowsAffected() == 0 {
			return xerrors.Conflict("record is not withdrawn or still has an active holder")
		}
		if claim.CreateEntry {
			return insertEntries(ctx, tx, []string{recordID}, claim.TargetID, claim.AssignedBy, claim.At)
		}
		return nil
	})
}

// DistributeToMember moves one TL-held record into a member's queue.
func (r *ContactRepository) DistributeToMember(ctx context.Context, recordID string, tlID, memberID int64, method contact.DistributionMethod, at time.Time) error {
	query := `
		UPDATE contact_records c
		SET distribution_status = 'distributed',
		    tl_distributed_by = $2, tl_distributed_at = $4, tl_distribution_method = $3,
		    updated_at = $4
		WHERE c.id = $1 AND c.is_active = TRUE
		  AND c.assigned_to = $2 AND c.assigned_type = 'tl'
		  AND (
			c.distribution_status = 'assigned'
			OR (c.distribution_status = 'withdrawn' AND NOT EXISTS (
				SELECT 1 FROM team_assignments ta WHERE ta.record_id = c.id AND NOT ta.withdrawn
			))
		  )
	`

	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, query, recordID, tlID, method, at)
		if err != nil {
			return fmt.Errorf("failed to distribute record: %w", err)
		}
		if result.RowsAffected() == 0 {
			return xerrors.Conflict("record is no longer available for distribution")
		}
		return insertEntries(ctx, tx, []string{recordID}, memberID, tlID, at)
	})
}

const withdrawActiveEntryQuery = `
	UPDATE team_assignments
	SET withdrawn = TRUE, withdrawn_at = $2, withdrawn_by = $3, withdrawal_reason = NULLIF($4, '')
	WHERE record_id = $1 AND NOT withdrawn
	RETURNING team_member
`

const appendHistoryQuery = `
	INSERT INTO withdrawal_history (record_id, team_member, withdrawn_at, withdrawn_by, reason, notes)
	VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
`

// WithdrawByAdmin pulls an assigned or distributed record back to the admin
// pool, withdrawing its active entry if one exists.
func (r *ContactRepository) WithdrawByAdmin(ctx context.Context, recordID string, w contact.Withdrawal) (contact.WithdrawOutcome, error) {
	out := contact.WithdrawOutcome{RecordID: recordID}

	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		var status contact.DistributionStatus
		var holder *int64
		err := tx.QueryRow(ctx, `
			SELECT distribution_status, assigned_to
			FROM contact_records
			WHERE id = $1 AND is_active = TRUE
			FOR UPDATE
		`, recordID).Scan(&status, &holder)
		if errors.Is(err, pgx.ErrNoRows) {
			return xerrors.NotFound("record not found")
		}
		if err != nil {
			return fmt.Errorf("failed to lock record: %w", err)
		}
		if status != contact.StatusAssigned && status != contact.StatusDistributed {
			return xerrors.Conflict(fmt.Sprintf("record is %s, not assigned", status))
		}
		if holder != nil {
			out.HolderID = *holder
		}

		member, err := withdrawActiveEntry(ctx, tx, recordID, w)
		if err != nil {
			return err
		}
		out.MemberID = member

		historyMember := member
		if historyMember == 0 {
			historyMember = out.HolderID
		}
		if _, err := tx.Exec(ctx, appendHistoryQuery, recordID, historyMember, w.At, w.By, w.Reason, w.Notes); err != nil {
			return fmt.Errorf("failed to append withdrawal history: %w", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE contact_records
			SET distribution_status = 'withdrawn', assigned_to = NULL, assigned_type = NULL, updated_at = $2
			WHERE id = $1
		`, recordID, w.At)
		if err != nil {
			return fmt.Errorf("failed to mark record withdrawn: %w", err)
		}
		return nil
	})
	if err != nil {
		return out, err
	}

	return out, nil
}

func withdrawActiveEntry(ctx context.Context, tx pgx.Tx, recordID string, w contact.Withdrawal) (int64, error) {
	var member int64
	err := tx.QueryRow(ctx, withdrawActiveEntryQuery, recordID, w.At, w.By, w.Reason).Scan(&member)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to withdraw team assignment: %w", err)
	}
	return member, nil
}

// WithdrawMember withdraws memberID's active entry on a record the TL holds.
// The TL stays the holder.
func (r *ContactRepository) WithdrawMember(ctx context.Context, recordID string, tlID, memberID int64, w contact.Withdrawal) error {
	query := `
		UPDATE team_assignments ta
		SET withdrawn = TRUE, withdrawn_at = $4, withdrawn_by = $5, withdrawal_reason = NULLIF($6, '')
		FROM contact_records c
		WHERE ta.record_id = $1 AND ta.team_member = $3 AND NOT ta.withdrawn
		  AND c.id = ta.record_id AND c.is_active = TRUE
		  AND c.assigned_to = $2 AND c.assigned_type = 'tl'
	`

	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, query, recordID, tlID, memberID, w.At, w.By, w.Reason)
		if err != nil {
			return fmt.Errorf("failed to withdraw team assignment: %w", err)
		}
		if result.RowsAffected() == 0 {
			return xerrors.NotFound("not assigned to this member")
		}

		if _, err := tx.Exec(ctx, appendHistoryQuery, recordID, memberID, w.At, w.By, w.Reason, w.Notes); err != nil {
			return fmt.Errorf("failed to append withdrawal history: %w", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE contact_records SET distribution_status = 'withdrawn', updated_at = $2 WHERE id = $1
		`, recordID, w.At)
		if err != nil {
			return fmt.Errorf("failed to mark record withdrawn: %w", err)
		}
		return nil
	})
}

// Archive soft-deletes a record. Any active entry is withdrawn first.
func (r *ContactRepository) Archive(ctx context.Context, recordID string, w contact.Withdrawal) (contact.WithdrawOutcome, error) {
	out := contact.WithdrawOutcome{RecordID: recordID}

	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		var holder *int64
		err := tx.QueryRow(ctx, `
			UPDATE contact_records
			SET is_active = FALSE, distribution_status = 'archived', archived_at = $2, updated_at = $2
			WHERE id = $1 AND is_active = TRUE
			RETURNING assigned_to
		`, recordID, w.At).Scan(&holder)
		if errors.Is(err, pgx.ErrNoRows) {
			return xerrors.NotFound("record not found")
		}
		if err != nil {
			return fmt.Errorf("failed to archive record: %w", err)
		}
		if holder != nil {
			out.HolderID = *holder
		}

		member, err := withdrawActiveEntry(ctx, tx, recordID, w)
		if err != nil {
			return err
		}
		out.MemberID = member
		if member == 0 {
			return nil
		}

		if _, err := tx.Exec(ctx, appendHistoryQuery, recordID, member, w.At, w.By, w.Reason, w.Notes); err != nil {
			return fmt.Errorf("failed to append withdrawal history: %w", err)
		}
		return nil
	})
	if err != nil {
		return out, err
	}

	return out, nil
}

// UpdateAssignmentStatus applies a member outcome to their active entry.
func (r *ContactRepository) UpdateAssignmentStatus(ctx context.Context, u contact.StatusUpdate) (*contact.TeamAssignment, error) {
	query := `
		UPDATE team_assignments ta
		SET status = $3,
		    status_updated_at = $4,
		    notes = COALESCE($5, ta.notes),
		    contacted_at = CASE WHEN $3 = 'contacted' AND ta.contacted_at IS NULL THEN $4 ELSE ta.contacted_at END,
		    converted_at = CASE WHEN $3 = 'converted' THEN $4 ELSE ta.converted_at END,
		    call_attempts = ta.call_attempts + CASE WHEN $6 THEN 1 ELSE 0 END,
		    last_call_at = CASE WHEN $6 THEN $4 ELSE ta.last_call_at END,
		    follow_up_date = COALESCE($7, ta.follow_up_date)
		FROM contact_records c
		WHERE ta.record_id = $1 AND ta.team_member = $2 AND NOT ta.withdrawn
		  AND c.id = ta.record_id AND c.is_active = TRUE
		RETURNING ` + assignmentColumns

	row := r.db.QueryRow(ctx, query,
		u.RecordID, u.UserID, string(u.Status), u.At, u.Notes, u.Status.IsOutreach(), u.FollowUpDate,
	)

	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.NotFound("no active assignment for this user on the record")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update assignment status: %w", err)
	}

	return a, nil
}
