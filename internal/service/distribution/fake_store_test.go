package distribution

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"leadflow-service/internal/domain/contact"
	"leadflow-service/internal/domain/identity"
	"leadflow-service/internal/domain/stats"
	"leadflow-service/internal/events"
	xerrors "leadflow-service/internal/pkg/errors"
	"leadflow-service/internal/pkg/fileparse"
)

// memStore mirrors the conditional writes of the postgres repository under a
// single mutex.
type memStore struct {
	mu      sync.Mutex
	records map[string]*contact.ContactRecord
	entries []*contact.TeamAssignment
	history []contact.WithdrawalEntry
	nextID  int64

	// distributeErr fails DistributeToMember for the given record id.
	distributeErr map[string]error
}

func newMemStore() *memStore {
	return &memStore{records: map[string]*contact.ContactRecord{}, distributeErr: map[string]error{}}
}

func (m *memStore) activeEntry(recordID string) *contact.TeamAssignment {
	for _, e := range m.entries {
		if e.RecordID == recordID && !e.Withdrawn {
			return e
		}
	}
	return nil
}

func (m *memStore) addEntry(recordID string, member, by int64, at time.Time) error {
	if m.activeEntry(recordID) != nil {
		return xerrors.Conflict("record already has an active holder")
	}
	m.nextID++
	m.entries = append(m.entries, &contact.TeamAssignment{
		ID: m.nextID, RecordID: recordID, TeamMember: member, AssignedBy: by,
		AssignedAt: at, Status: contact.AssignmentPending,
	})
	return nil
}

func (m *memStore) appendHistory(recordID string, member int64, w contact.Withdrawal) {
	m.nextID++
	m.history = append(m.history, contact.WithdrawalEntry{
		ID: m.nextID, RecordID: recordID, TeamMember: member, WithdrawnAt: w.At, WithdrawnBy: w.By,
		Reason: sql.NullString{String: w.Reason, Valid: w.Reason != ""},
		Notes:  sql.NullString{String: w.Notes, Valid: w.Notes != ""},
	})
}

func (m *memStore) withdrawEntry(e *contact.TeamAssignment, w contact.Withdrawal) {
	e.Withdrawn = true
	e.WithdrawnAt = sql.NullTime{Time: w.At, Valid: true}
	e.WithdrawnBy = sql.NullInt64{Int64: w.By, Valid: true}
	e.WithdrawalReason = sql.NullString{String: w.Reason, Valid: w.Reason != ""}
}

func (m *memStore) activeRecord(id string) *contact.ContactRecord {
	r, ok := m.records[id]
	if !ok || !r.IsActive {
		return nil
	}
	return r
}

func (m *memStore) InsertBatch(ctx context.Context, records []contact.ContactRecord) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var skipped []int
	for i, rec := range records {
		taken := false
		for _, r := range m.records {
			if r.IsActive && r.Contact == rec.Contact {
				taken = true
				break
			}
		}
		if taken {
			skipped = append(skipped, i)
			continue
		}
		cp := rec
		m.records[rec.ID] = &cp
	}
	return skipped, nil
}

func (m *memStore) FindActiveByContacts(ctx context.Context, contacts []string) ([]contact.DuplicateContact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	want := map[string]bool{}
	for _, c := range contacts {
		want[c] = true
	}
	var out []contact.DuplicateContact
	for _, r := range m.records {
		if r.IsActive && want[r.Contact] {
			out = append(out, contact.DuplicateContact{RecordID: r.ID, Name: r.Name, Contact: r.Contact, BatchNumber: r.BatchNumber})
		}
	}
	return out, nil
}

func (m *memStore) ClaimPending(ctx context.Context, n int, c contact.Claim) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []*contact.ContactRecord
	for _, r := range m.records {
		if r.IsActive && r.DistributionStatus == contact.StatusPending {
			pending = append(pending, r)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].CreatedAt.Before(pending[j].CreatedAt)
		}
		return pending[i].ID < pending[j].ID
	})
	if len(pending) > n {
		pending = pending[:n]
	}

	ids := make([]string, 0, len(pending))
	for _, r := range pending {
		m.assign(r, c)
		if c.CreateEntry {
			if err := m.addEntry(r.ID, c.TargetID, c.AssignedBy, c.At); err != nil {
				return nil, err
			}
		}
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (m *memStore) assign(r *contact.ContactRecord, c contact.Claim) {
	r.DistributionStatus = contact.StatusAssigned
	r.AssignedTo = sql.NullInt64{Int64: c.TargetID, Valid: true}
	r.AssignedType = c.TargetType
	r.AssignedBy = c.AssignedBy
	r.AssignedAt = sql.NullTime{Time: c.At, Valid: true}
	r.UpdatedAt = c.At
}

func (m *memStore) Reassign(ctx context.Context, recordID string, c contact.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.activeRecord(recordID)
	if r == nil || r.DistributionStatus != contact.StatusWithdrawn || m.activeEntry(recordID) != nil {
		return xerrors.Conflict("record is not withdrawn or still has an active holder")
	}
	m.assign(r, c)
	r.TLDistribution = contact.TLDistribution{}
	if c.CreateEntry {
		return m.addEntry(recordID, c.TargetID, c.AssignedBy, c.At)
	}
	return nil
}

func (m *memStore) DistributeToMember(ctx context.Context, recordID string, tlID, memberID int64, method contact.DistributionMethod, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.distributeErr[recordID]; err != nil {
		return err
	}
	r := m.activeRecord(recordID)
	ok := r != nil && r.HeldByTL(tlID) &&
		(r.DistributionStatus == contact.StatusAssigned ||
			(r.DistributionStatus == contact.StatusWithdrawn && m.activeEntry(recordID) == nil))
	if !ok {
		return xerrors.Conflict("record is no longer available for distribution")
	}
	if err := m.addEntry(recordID, memberID, tlID, at); err != nil {
		return err
	}
	r.DistributionStatus = contact.StatusDistributed
	r.TLDistribution = contact.TLDistribution{
		DistributedBy:      sql.NullInt64{Int64: tlID, Valid: true},
		DistributedAt:      sql.NullTime{Time: at, Valid: true},
		DistributionMethod: method,
	}
	return nil
}

func (m *memStore) WithdrawByAdmin(ctx context.Context, recordID string, w contact.Withdrawal) (contact.WithdrawOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := contact.WithdrawOutcome{RecordID: recordID}
	r := m.activeRecord(recordID)
	if r == nil {
		return out, xerrors.NotFound("record not found")
	}
	if r.DistributionStatus != contact.StatusAssigned && r.DistributionStatus != contact.StatusDistributed {
		return out, xerrors.Conflict("record is " + string(r.DistributionStatus) + ", not assigned")
	}
	if r.AssignedTo.Valid {
		out.HolderID = r.AssignedTo.Int64
	}
	historyMember := out.HolderID
	if e := m.activeEntry(recordID); e != nil {
		m.withdrawEntry(e, w)
		out.MemberID = e.TeamMember
		historyMember = e.TeamMember
	}
	m.appendHistory(recordID, historyMember, w)
	r.DistributionStatus = contact.StatusWithdrawn
	r.AssignedTo = sql.NullInt64{}
	r.AssignedType = ""
	return out, nil
}

func (m *memStore) WithdrawMember(ctx context.Context, recordID string, tlID, memberID int64, w contact.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.activeRecord(recordID)
	e := m.activeEntry(recordID)
	if r == nil || !r.HeldByTL(tlID) || e == nil || e.TeamMember != memberID {
		return xerrors.NotFound("not assigned to this member")
	}
	m.withdrawEntry(e, w)
	m.appendHistory(recordID, memberID, w)
	r.DistributionStatus = contact.StatusWithdrawn
	return nil
}

func (m *memStore) Archive(ctx context.Context, recordID string, w contact.Withdrawal) (contact.WithdrawOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := contact.WithdrawOutcome{RecordID: recordID}
	r := m.activeRecord(recordID)
	if r == nil {
		return out, xerrors.NotFound("record not found")
	}
	r.IsActive = false
	r.DistributionStatus = contact.StatusArchived
	r.ArchivedAt = sql.NullTime{Time: w.At, Valid: true}
	if r.AssignedTo.Valid {
		out.HolderID = r.AssignedTo.Int64
	}
	if e := m.activeEntry(recordID); e != nil {
		m.withdrawEntry(e, w)
		m.appendHistory(recordID, e.TeamMember, w)
		out.MemberID = e.TeamMember
	}
	return out, nil
}

func (m *memStore) UpdateAssignmentStatus(ctx context.Context, u contact.StatusUpdate) (*contact.TeamAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.activeEntry(u.RecordID)
	if m.activeRecord(u.RecordID) == nil || e == nil || e.TeamMember != u.UserID {
		return nil, xerrors.NotFound("no active assignment for this user on the record")
	}
	e.Status = u.Status
	e.StatusUpdatedAt = sql.NullTime{Time: u.At, Valid: true}
	if u.Notes != nil {
		e.Notes = sql.NullString{String: *u.Notes, Valid: true}
	}
	if u.Status == contact.AssignmentContacted && !e.ContactedAt.Valid {
		e.ContactedAt = sql.NullTime{Time: u.At, Valid: true}
	}
	if u.Status == contact.AssignmentConverted {
		e.ConvertedAt = sql.NullTime{Time: u.At, Valid: true}
	}
	if u.Status.IsOutreach() {
		e.CallAttempts++
		e.LastCallAt = sql.NullTime{Time: u.At, Valid: true}
	}
	if u.FollowUpDate != nil {
		e.FollowUpDate = sql.NullTime{Time: *u.FollowUpDate, Valid: true}
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) snapshot(r *contact.ContactRecord) *contact.ContactRecord {
	cp := *r
	cp.TeamAssignments = nil
	cp.WithdrawalHistory = nil
	for _, e := range m.entries {
		if e.RecordID == r.ID {
			cp.TeamAssignments = append(cp.TeamAssignments, *e)
		}
	}
	for _, h := range m.history {
		if h.RecordID == r.ID {
			cp.WithdrawalHistory = append(cp.WithdrawalHistory, h)
		}
	}
	return &cp
}

func (m *memStore) FindByID(ctx context.Context, id string) (*contact.ContactRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.activeRecord(id)
	if r == nil {
		return nil, xerrors.NotFound("record not found")
	}
	return m.snapshot(r), nil
}

// raw returns a record regardless of its active flag.
func (m *memStore) raw(id string) *contact.ContactRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil
	}
	return m.snapshot(r)
}

func (m *memStore) FindByIDs(ctx context.Context, ids []string) (map[string]*contact.ContactRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := map[string]*contact.ContactRecord{}
	for _, id := range ids {
		if r := m.activeRecord(id); r != nil {
			cp := *r
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *memStore) sorted(keep func(*contact.ContactRecord) bool) []contact.ContactRecord {
	var out []contact.ContactRecord
	for _, r := range m.records {
		if r.IsActive && keep(r) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func page[T any](all []T, f contact.ListFilters) []T {
	start := f.Offset()
	if start >= len(all) {
		return []T{}
	}
	end := start + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

func (m *memStore) ListPending(ctx context.Context, f contact.ListFilters) ([]contact.ContactRecord, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.sorted(func(r *contact.ContactRecord) bool {
		return r.DistributionStatus == contact.StatusPending && (f.BatchNumber == "" || r.BatchNumber == f.BatchNumber)
	})
	return page(all, f), int64(len(all)), nil
}

func (m *memStore) ListTLPool(ctx context.Context, tlID int64, f contact.ListFilters) ([]contact.ContactRecord, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.sorted(func(r *contact.ContactRecord) bool {
		return r.HeldByTL(tlID) && (f.Status == "" || string(r.DistributionStatus) == f.Status)
	})
	return page(all, f), int64(len(all)), nil
}

func (m *memStore) ListMemberQueue(ctx context.Context, memberID int64, f contact.ListFilters) ([]contact.QueueItem, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []contact.QueueItem
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		r := m.activeRecord(e.RecordID)
		if e.Withdrawn || e.TeamMember != memberID || r == nil {
			continue
		}
		if f.Status != "" && string(e.Status) != f.Status {
			continue
		}
		all = append(all, contact.QueueItem{
			RecordID: r.ID, Name: r.Name, Contact: r.Contact, BatchNumber: r.BatchNumber,
			Priority: r.Priority, Assignment: *e,
		})
	}
	return page(all, f), int64(len(all)), nil
}

func (m *memStore) CountByStatus(ctx context.Context) (*stats.GlobalCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := &stats.GlobalCounts{}
	for _, r := range m.records {
		if !r.IsActive {
			continue
		}
		g.Total++
		switch r.DistributionStatus {
		case contact.StatusPending:
			g.Pending++
		case contact.StatusAssigned:
			g.Assigned++
		case contact.StatusDistributed:
			g.Distributed++
		case contact.StatusWithdrawn:
			g.Withdrawn++
		}
		if e := m.activeEntry(r.ID); e != nil &&
			(e.Status == contact.AssignmentConverted || e.Status == contact.AssignmentRejected) {
			g.Completed++
		}
	}
	return g, nil
}

func (m *memStore) batchSummaries() map[string]*stats.BatchSummary {
	out := map[string]*stats.BatchSummary{}
	for _, r := range m.records {
		if !r.IsActive {
			continue
		}
		b, ok := out[r.BatchNumber]
		if !ok {
			b = &stats.BatchSummary{BatchNumber: r.BatchNumber, CreatedBy: r.CreatedBy, CreatedAt: r.CreatedAt}
			out[r.BatchNumber] = b
		}
		b.Total++
		switch r.DistributionStatus {
		case contact.StatusPending:
			b.Pending++
		case contact.StatusAssigned:
			b.Assigned++
		case contact.StatusDistributed:
			b.Distributed++
		case contact.StatusWithdrawn:
			b.Withdrawn++
		}
	}
	return out
}

func (m *memStore) BatchStats(ctx context.Context, batchNumber string) (*stats.BatchSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.batchSummaries()[batchNumber]
	if !ok {
		return nil, xerrors.NotFound("batch not found")
	}
	return b, nil
}

func (m *memStore) ListBatches(ctx context.Context, f stats.BatchFilters) ([]stats.BatchSummary, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []stats.BatchSummary
	for _, b := range m.batchSummaries() {
		all = append(all, *b)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, contact.ListFilters{Page: f.Page, Limit: f.Limit}), int64(len(all)), nil
}

func (m *memStore) TLStats(ctx context.Context, tlID int64) (*stats.TLStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &stats.TLStats{TLID: tlID, ByMemberStatus: map[string]int64{}}
	for _, r := range m.records {
		if r.IsActive && r.TLDistribution.DistributedBy.Valid && r.TLDistribution.DistributedBy.Int64 == tlID {
			s.DistributionsMade++
		}
		if !r.HeldByTL(tlID) {
			continue
		}
		s.Held++
		switch r.DistributionStatus {
		case contact.StatusAssigned:
			s.Assigned++
		case contact.StatusDistributed:
			s.Distributed++
		case contact.StatusWithdrawn:
			s.Withdrawn++
		}
		if e := m.activeEntry(r.ID); e != nil {
			s.ByMemberStatus[string(e.Status)]++
		}
	}
	for _, h := range m.history {
		if h.WithdrawnBy == tlID {
			s.WithdrawalsMade++
		}
	}
	return s, nil
}

func (m *memStore) UserStats(ctx context.Context, userID int64, from, to time.Time) (*stats.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &stats.UserStats{UserID: userID, From: from, To: to, ByStatus: map[string]int64{}}
	for _, e := range m.entries {
		if e.Withdrawn || e.TeamMember != userID || m.activeRecord(e.RecordID) == nil {
			continue
		}
		if e.AssignedAt.Before(from) || !e.AssignedAt.Before(to) {
			continue
		}
		s.ByStatus[string(e.Status)]++
		s.Total++
	}
	return s, nil
}

type memUsers struct {
	users map[int64]*identity.User
}

func (u *memUsers) ResolveUser(ctx context.Context, id int64) (*identity.User, error) {
	usr, ok := u.users[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *usr
	return &cp, nil
}

func (u *memUsers) add(id int64, name string, role identity.Role, active bool, reportsTo int64) {
	usr := &identity.User{ID: id, Name: name, Role: role, IsActive: active}
	if reportsTo != 0 {
		usr.ReportingTo = sql.NullInt64{Int64: reportsTo, Valid: true}
	}
	u.users[id] = usr
}

// recordingBus captures published events synchronously.
type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(ctx context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) named(name string) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.Event
	for _, e := range b.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

type stubParser struct {
	rows     []fileparse.Row
	err      error
	seenPath string
}

func (p *stubParser) ParseFile(path string) ([]fileparse.Row, error) {
	p.seenPath = path
	return p.rows, p.err
}
