// internal/service/distribution/import.go
package distribution

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"leadflow-service/internal/domain/contact"
	"leadflow-service/internal/events"
	xerrors "leadflow-service/internal/pkg/errors"
	"leadflow-service/internal/pkg/fileparse"
	"leadflow-service/internal/pkg/phone"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const defaultBatchLabel = "BATCH"

var batchLabelStrip = regexp.MustCompile(`[^A-Za-z0-9_]`)

// newBatchNumber builds LABEL_<ulid> from the caller's label.
func newBatchNumber(label string) string {
	clean := strings.ToUpper(batchLabelStrip.ReplaceAllString(strings.TrimSpace(label), ""))
	if clean == "" {
		clean = defaultBatchLabel
	}
	return clean + "_" + ulid.Make().String()
}

// ImportBulk inserts manually entered rows under a new batch.
func (s *Service) ImportBulk(ctx context.Context, rows []contact.RawRow, batchName string, adminID int64) (*contact.ImportResult, error) {
	return s.importRows(ctx, rows, batchName, adminID, contact.SourceManualEntry)
}

// ImportFile stores the upload in a temp file, parses it and imports the rows.
// The temp file is removed on every path.
func (s *Service) ImportFile(ctx context.Context, src io.Reader, filename, batchName string, adminID int64) (*contact.ImportResult, error) {
	format, err := fileparse.DetectFormat(filename)
	if err != nil {
		return nil, xerrors.Validation(err.Error())
	}

	tmp, err := os.CreateTemp(s.cfg.UploadDir, "import-*-"+sanitizeFilename(filename))
	if err != nil {
		return nil, xerrors.Internal("failed to create temp file", err)
	}
	defer func() {
		tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove upload", zap.String("path", tmp.Name()), zap.Error(err))
		}
	}()

	if _, err := io.Copy(tmp, src); err != nil {
		return nil, xerrors.Internal("failed to store upload", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, xerrors.Internal("failed to store upload", err)
	}

	parsed, err := s.files.ParseFile(tmp.Name())
	if err != nil {
		return nil, xerrors.Validation(fmt.Sprintf("failed to parse file: %v", err))
	}

	rows := make([]contact.RawRow, len(parsed))
	for i, r := range parsed {
		rows[i] = contact.RawRow{Name: r.Name, Contact: r.Contact}
	}

	source := contact.SourceCSVImport
	if format == fileparse.FormatExcel {
		source = contact.SourceExcelImport
	}

	return s.importRows(ctx, rows, batchName, adminID, source)
}

func sanitizeFilename(name string) string {
	base := name
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	return strings.ReplaceAll(base, "*", "")
}

func (s *Service) importRows(ctx context.Context, rows []contact.RawRow, batchName string, adminID int64, source contact.Source) (*contact.ImportResult, error) {
	if len(rows) == 0 {
		return nil, xerrors.Validation("no rows to import")
	}
	if len(rows) > s.cfg.MaxImportRows {
		return nil, xerrors.Validation(fmt.Sprintf("import exceeds %d rows", s.cfg.MaxImportRows))
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res := &contact.ImportResult{
		BatchNumber: newBatchNumber(batchName),
		Errors:      []contact.RowError{},
		Duplicates:  []contact.DuplicateContact{},
	}
	reject := func(row int, name, contactValue, reason string) {
		res.TotalErrors++
		if len(res.Errors) < maxDisplayErrors {
			res.Errors = append(res.Errors, contact.RowError{Row: row, Name: name, Contact: contactValue, Reason: reason})
		}
	}

	type candidate struct {
		row     int
		name    string
		contact string
	}

	seen := make(map[string]struct{}, len(rows))
	survivors := make([]candidate, 0, len(rows))
	for i, raw := range rows {
		rowNum := i + 1
		name := strings.TrimSpace(raw.Name)

		switch {
		case name == "":
			res.InvalidCount++
			reject(rowNum, raw.Name, raw.Contact, contact.ReasonMissingName)
			continue
		case phone.IsBlank(raw.Contact):
			res.InvalidCount++
			reject(rowNum, name, raw.Contact, contact.ReasonMissingContact)
			continue
		}

		normalized, ok := phone.NormalizeAndValidate(raw.Contact)
		if !ok {
			res.InvalidCount++
			reject(rowNum, name, raw.Contact, contact.ReasonInvalidPhone)
			continue
		}

		if _, dup := seen[normalized]; dup {
			res.DuplicateInBatchCount++
			reject(rowNum, name, normalized, contact.ReasonDuplicateInBatch)
			continue
		}
		seen[normalized] = struct{}{}
		survivors = append(survivors, candidate{row: rowNum, name: name, contact: normalized})
	}

	if len(survivors) > 0 {
		contacts := make([]string, len(survivors))
		for i, c := range survivors {
			contacts[i] = c.contact
		}
		existing, err := s.store.FindActiveByContacts(ctx, contacts)
		if err != nil {
			return nil, xerrors.Internal("failed to check existing contacts", err)
		}

		if len(existing) > 0 {
			byContact := make(map[string]contact.DuplicateContact, len(existing))
			for _, d := range existing {
				byContact[d.Contact] = d
			}

			kept := survivors[:0]
			for _, c := range survivors {
				d, dup := byContact[c.contact]
				if !dup {
					kept = append(kept, c)
					continue
				}
				res.DuplicateInDatabaseCount++
				reject(c.row, c.name, c.contact, contact.ReasonDuplicateInDatabase)
				d.Row = c.row
				res.Duplicates = append(res.Duplicates, d)
			}
			survivors = kept
		}
	}

	if len(survivors) == 0 {
		s.recordRejections(res)
		return nil, xerrors.Validation("no valid rows to import").WithDetails(res)
	}

	now := s.now()
	records := make([]contact.ContactRecord, len(survivors))
	for i, c := range survivors {
		records[i] = contact.ContactRecord{
			ID:                 ulid.Make().String(),
			Name:               c.name,
			Contact:            c.contact,
			BatchNumber:        res.BatchNumber,
			DistributionStatus: contact.StatusPending,
			AssignedBy:         adminID,
			CreatedBy:          adminID,
			IsActive:           true,
			Source:             source,
			Priority:           contact.PriorityMedium,
			Tags:               []string{},
			CreatedAt:          now,
			UpdatedAt:          now,
		}
	}

	skipped, err := s.store.InsertBatch(ctx, records)
	if err != nil {
		return nil, xerrors.Internal("failed to insert records", err)
	}
	for _, idx := range skipped {
		c := survivors[idx]
		res.DuplicateInDatabaseCount++
		reject(c.row, c.name, c.contact, contact.ReasonDuplicateInDatabase)
		res.Duplicates = append(res.Duplicates, contact.DuplicateContact{Row: c.row, Name: c.name, Contact: c.contact})
	}

	res.Count = len(records) - len(skipped)
	s.recordRejections(res)
	if res.Count == 0 {
		return nil, xerrors.Validation("no valid rows to import").WithDetails(res)
	}

	s.metrics.Imported(res.Count)
	s.publish(ctx, events.RecordsImported{
		BaseEvent:   events.NewBaseEvent(now),
		BatchNumber: res.BatchNumber,
		Count:       res.Count,
		ImportedBy:  adminID,
	})

	s.logger.Info("records imported",
		zap.String("batch_number", res.BatchNumber),
		zap.Int("count", res.Count),
		zap.Int("total_errors", res.TotalErrors),
		zap.String("source", string(source)),
		zap.Int64("admin_id", adminID))

	return res, nil
}

func (s *Service) recordRejections(res *contact.ImportResult) {
	s.metrics.Rejected("invalid", res.InvalidCount)
	s.metrics.Rejected("duplicate_in_batch", res.DuplicateInBatchCount)
	s.metrics.Rejected("duplicate_in_database", res.DuplicateInDatabaseCount)
}
