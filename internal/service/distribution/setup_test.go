package distribution

import (
	"context"
	"fmt"
	"testing"
	"time"

	"leadflow-service/internal/domain/contact"
	"leadflow-service/internal/domain/identity"
	xerrors "leadflow-service/internal/pkg/errors"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	adminID    int64 = 1
	tlA        int64 = 10
	tlB        int64 = 11
	tlInactive int64 = 12
	u1         int64 = 20
	u2         int64 = 21
	u3         int64 = 22
	outsider   int64 = 30
	uInactive  int64 = 40
)

type fixture struct {
	svc    *Service
	store  *memStore
	users  *memUsers
	bus    *recordingBus
	parser *stubParser
	clock  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	users := &memUsers{users: map[int64]*identity.User{}}
	users.add(adminID, "Asha", identity.RoleAdmin, true, 0)
	users.add(tlA, "Tina", identity.RoleTL, true, 0)
	users.add(tlB, "Tom", identity.RoleTL, true, 0)
	users.add(tlInactive, "Tara", identity.RoleTL, false, 0)
	users.add(u1, "Uma", identity.RoleUser, true, tlA)
	users.add(u2, "Uday", identity.RoleUser, true, tlA)
	users.add(u3, "Usha", identity.RoleUser, true, tlA)
	users.add(outsider, "Omar", identity.RoleUser, true, tlB)
	users.add(uInactive, "Ivan", identity.RoleUser, false, tlA)

	f := &fixture{
		store:  newMemStore(),
		users:  users,
		bus:    &recordingBus{},
		parser: &stubParser{},
		clock:  time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.store, f.users, f.parser, f.bus, nil, zap.NewNop(), Config{
		OpTimeout: 5 * time.Second,
		UploadDir: t.TempDir(),
	})
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) tick() {
	f.clock = f.clock.Add(time.Minute)
}

// seed imports n distinct contacts in one batch and returns their ids in
// claim order.
func (f *fixture) seed(t *testing.T, n int) []string {
	t.Helper()
	rows := make([]contact.RawRow, n)
	for i := range rows {
		rows[i] = contact.RawRow{Name: fmt.Sprintf("Lead %d", i), Contact: fmt.Sprintf("9%09d", f.store.nextSeed())}
	}
	res, err := f.svc.ImportBulk(context.Background(), rows, "seed", adminID)
	require.NoError(t, err)
	require.Equal(t, n, res.Count)
	f.tick()
	return f.pendingIDs(t)[len(f.pendingIDs(t))-n:]
}

func (f *fixture) pendingIDs(t *testing.T) []string {
	t.Helper()
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	recs := f.store.sorted(func(r *contact.ContactRecord) bool { return r.DistributionStatus == contact.StatusPending })
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids
}

// heldBy assigns n fresh records to tl and returns their ids. The pending pool
// must be empty so the claim picks exactly the seeded records.
func (f *fixture) heldBy(t *testing.T, tl int64, n int) []string {
	t.Helper()
	require.Empty(t, f.pendingIDs(t), "pending pool must be empty")
	ids := f.seed(t, n)
	res, err := f.svc.AssignToTL(context.Background(), n, tl, adminID)
	require.NoError(t, err)
	require.Equal(t, n, res.Count)
	return ids
}

func requireKind(t *testing.T, err error, kind xerrors.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, xerrors.KindOf(err), "unexpected error: %v", err)
}

func (m *memStore) nextSeed() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return m.nextID
}
