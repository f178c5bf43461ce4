package distribution

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"leadflow-service/internal/domain/contact"
	"leadflow-service/internal/events"
	xerrors "leadflow-service/internal/pkg/errors"
	"leadflow-service/internal/pkg/fileparse"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportDuplicateInBatch(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.ImportBulk(context.Background(), []contact.RawRow{
		{Name: "Amit", Contact: "9876543210"},
		{Name: "Amit", Contact: "987-654-3210"},
	}, "Dec", adminID)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Count)
	assert.True(t, strings.HasPrefix(res.BatchNumber, "DEC_"), res.BatchNumber)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].Row)
	assert.Equal(t, contact.ReasonDuplicateInBatch, res.Errors[0].Reason)
	assert.Equal(t, 1, res.DuplicateInBatchCount)
	assert.Equal(t, 1, res.TotalErrors)

	ids := f.pendingIDs(t)
	require.Len(t, ids, 1)
	rec := f.store.raw(ids[0])
	assert.Equal(t, "9876543210", rec.Contact)
	assert.Equal(t, contact.SourceManualEntry, rec.Source)
	assert.Equal(t, contact.PriorityMedium, rec.Priority)
	assert.Equal(t, adminID, rec.CreatedBy)
	assert.Equal(t, adminID, rec.AssignedBy)
	assert.True(t, rec.IsActive)
	assert.False(t, rec.AssignedTo.Valid)

	imported := f.bus.named(events.RecordsImportedName)
	require.Len(t, imported, 1)
	assert.Equal(t, res.BatchNumber, imported[0].(events.RecordsImported).BatchNumber)
}

func TestImportSecondCallIsDatabaseDuplicate(t *testing.T) {
	f := newFixture(t)
	rows := []contact.RawRow{{Name: "Amit", Contact: "9876543210"}}

	_, err := f.svc.ImportBulk(context.Background(), rows, "first", adminID)
	require.NoError(t, err)

	_, err = f.svc.ImportBulk(context.Background(), rows, "second", adminID)
	requireKind(t, err, xerrors.KindValidation)

	res, ok := xerrors.DetailsOf(err).(*contact.ImportResult)
	require.True(t, ok)
	assert.Equal(t, 0, res.Count)
	assert.Equal(t, 1, res.DuplicateInDatabaseCount)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, contact.ReasonDuplicateInDatabase, res.Errors[0].Reason)
	require.Len(t, res.Duplicates, 1)
	assert.Equal(t, "9876543210", res.Duplicates[0].Contact)
	assert.True(t, strings.HasPrefix(res.Duplicates[0].BatchNumber, "FIRST_"))

	assert.Len(t, f.pendingIDs(t), 1)
}

func TestImportRowValidation(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.ImportBulk(context.Background(), []contact.RawRow{
		{Name: "  ", Contact: "9876543210"},
		{Name: "Bina", Contact: "   "},
		{Name: "Chetan", Contact: "12345"},
		{Name: " Devi ", Contact: "987.654.3211"},
	}, "", adminID)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Count)
	assert.True(t, strings.HasPrefix(res.BatchNumber, "BATCH_"))
	assert.Equal(t, 3, res.InvalidCount)
	require.Len(t, res.Errors, 3)
	assert.Equal(t, contact.RowError{Row: 1, Name: "  ", Contact: "9876543210", Reason: contact.ReasonMissingName}, res.Errors[0])
	assert.Equal(t, contact.ReasonMissingContact, res.Errors[1].Reason)
	assert.Equal(t, 3, res.Errors[2].Row)
	assert.Equal(t, contact.ReasonInvalidPhone, res.Errors[2].Reason)

	rec := f.store.raw(f.pendingIDs(t)[0])
	assert.Equal(t, "Devi", rec.Name)
	assert.Equal(t, "9876543211", rec.Contact)
}

func TestImportEmptyInputFails(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ImportBulk(context.Background(), nil, "x", adminID)
	requireKind(t, err, xerrors.KindValidation)
	assert.Empty(t, f.pendingIDs(t))
	assert.Empty(t, f.bus.named(events.RecordsImportedName))
}

func TestImportAllInvalidFailsWithoutInsert(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ImportBulk(context.Background(), []contact.RawRow{{Name: "A", Contact: "1"}}, "x", adminID)
	requireKind(t, err, xerrors.KindValidation)
	res := xerrors.DetailsOf(err).(*contact.ImportResult)
	assert.Equal(t, 1, res.InvalidCount)
	assert.Empty(t, f.pendingIDs(t))
}

func TestImportCapsDisplayedErrors(t *testing.T) {
	f := newFixture(t)

	rows := []contact.RawRow{{Name: "Valid", Contact: "9000000001"}}
	for i := 0; i < 60; i++ {
		rows = append(rows, contact.RawRow{Name: fmt.Sprintf("bad %d", i), Contact: "123"})
	}

	res, err := f.svc.ImportBulk(context.Background(), rows, "big", adminID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.Len(t, res.Errors, maxDisplayErrors)
	assert.Equal(t, 60, res.TotalErrors)
	assert.Equal(t, 60, res.InvalidCount)
}

func TestImportRowLimit(t *testing.T) {
	f := newFixture(t)
	f.svc.cfg.MaxImportRows = 2

	rows := make([]contact.RawRow, 3)
	_, err := f.svc.ImportBulk(context.Background(), rows, "x", adminID)
	requireKind(t, err, xerrors.KindValidation)
}

func TestNewBatchNumber(t *testing.T) {
	tests := []struct {
		label  string
		prefix string
	}{
		{"Dec", "DEC_"},
		{"q1 leads!", "Q1LEADS_"},
		{"north_zone-2", "NORTH_ZONE2_"},
		{"", "BATCH_"},
		{"***", "BATCH_"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got := newBatchNumber(tt.label)
			assert.True(t, strings.HasPrefix(got, tt.prefix), got)
			assert.Len(t, got, len(tt.prefix)+26)
		})
	}
	assert.NotEqual(t, newBatchNumber("a"), newBatchNumber("a"))
}

func TestImportFileRemovesTempFile(t *testing.T) {
	f := newFixture(t)
	f.parser.rows = []fileparse.Row{{Name: "Amit", Contact: "9876543210"}}

	res, err := f.svc.ImportFile(context.Background(), strings.NewReader("raw bytes"), "leads.xlsx", "dec", adminID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)

	require.NotEmpty(t, f.parser.seenPath)
	_, statErr := os.Stat(f.parser.seenPath)
	assert.True(t, os.IsNotExist(statErr))

	rec := f.store.raw(f.pendingIDs(t)[0])
	assert.Equal(t, contact.SourceExcelImport, rec.Source)
}

func TestImportFileRemovesTempFileOnFailure(t *testing.T) {
	f := newFixture(t)
	f.parser.err = errors.New("corrupt workbook")

	_, err := f.svc.ImportFile(context.Background(), strings.NewReader("x"), "leads.csv", "", adminID)
	requireKind(t, err, xerrors.KindValidation)

	require.NotEmpty(t, f.parser.seenPath)
	_, statErr := os.Stat(f.parser.seenPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestImportFileCSVSource(t *testing.T) {
	f := newFixture(t)
	f.parser.rows = []fileparse.Row{{Name: "Amit", Contact: "9876543210"}}

	_, err := f.svc.ImportFile(context.Background(), strings.NewReader("x"), "leads.csv", "", adminID)
	require.NoError(t, err)
	assert.Equal(t, contact.SourceCSVImport, f.store.raw(f.pendingIDs(t)[0]).Source)
}

func TestImportFileRejectsUnknownFormat(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ImportFile(context.Background(), strings.NewReader("x"), "leads.pdf", "", adminID)
	requireKind(t, err, xerrors.KindValidation)
	assert.Empty(t, f.parser.seenPath)
}
