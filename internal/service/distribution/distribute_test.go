package distribution

import (
	"context"
	"errors"
	"testing"

	"leadflow-service/internal/domain/contact"
	"leadflow-service/internal/events"
	xerrors "leadflow-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memberCounts(plan []pairing) map[int64]int {
	out := map[int64]int{}
	for _, p := range plan {
		out[p.memberID]++
	}
	return out
}

func recordIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}
	return ids
}

func TestPlanDistribution(t *testing.T) {
	members := []int64{1, 2, 3}

	t.Run("equal spreads the remainder over the first members", func(t *testing.T) {
		plan := planDistribution(recordIDs(10), members, contact.MethodEqual)
		assert.Len(t, plan, 10)
		assert.Equal(t, map[int64]int{1: 4, 2: 3, 3: 3}, memberCounts(plan))
	})

	t.Run("equal with fewer records than members", func(t *testing.T) {
		plan := planDistribution(recordIDs(2), members, contact.MethodEqual)
		assert.Equal(t, map[int64]int{1: 1, 2: 1}, memberCounts(plan))
	})

	t.Run("manual uses contiguous ceil chunks", func(t *testing.T) {
		plan := planDistribution(recordIDs(5), []int64{1, 2}, contact.MethodManual)
		got := make([]int64, len(plan))
		for i, p := range plan {
			got[i] = p.memberID
		}
		assert.Equal(t, []int64{1, 1, 1, 2, 2}, got)
	})

	t.Run("manual can leave trailing members empty", func(t *testing.T) {
		plan := planDistribution(recordIDs(10), []int64{1, 2, 3, 4}, contact.MethodManual)
		assert.Equal(t, map[int64]int{1: 3, 2: 3, 3: 3, 4: 1}, memberCounts(plan))
	})

	t.Run("other methods round robin", func(t *testing.T) {
		for _, m := range []contact.DistributionMethod{contact.MethodAuto, contact.MethodPerformanceBase} {
			plan := planDistribution(recordIDs(5), []int64{1, 2}, m)
			got := make([]int64, len(plan))
			for i, p := range plan {
				got[i] = p.memberID
			}
			assert.Equal(t, []int64{1, 2, 1, 2, 1}, got)
		}
	})

	t.Run("keeps record order", func(t *testing.T) {
		plan := planDistribution(recordIDs(4), members, contact.MethodEqual)
		for i, p := range plan {
			assert.Equal(t, recordIDs(4)[i], p.recordID)
		}
	})

	assert.Nil(t, planDistribution(nil, members, contact.MethodEqual))
	assert.Nil(t, planDistribution(recordIDs(2), nil, contact.MethodEqual))
}

func TestTLDistributeEqual(t *testing.T) {
	f := newFixture(t)
	ids := f.heldBy(t, tlA, 10)

	res, err := f.svc.TLDistribute(context.Background(), tlA, ids, []int64{u1, u2, u3}, contact.MethodEqual)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Count)
	assert.Zero(t, res.TotalErrors)

	perMember := map[int64]int{}
	for _, id := range ids {
		rec := f.store.raw(id)
		assert.Equal(t, contact.StatusDistributed, rec.DistributionStatus)
		assert.Equal(t, contact.MethodEqual, rec.TLDistribution.DistributionMethod)
		assert.Equal(t, tlA, rec.TLDistribution.DistributedBy.Int64)
		a := rec.ActiveAssignment()
		require.NotNil(t, a)
		assert.Equal(t, tlA, a.AssignedBy)
		perMember[a.TeamMember]++
	}
	assert.Equal(t, map[int64]int{u1: 4, u2: 3, u3: 3}, perMember)

	assert.Len(t, f.bus.named(events.RecordsDistributedName), 3)
}

func TestTLDistributeDefaultsToManual(t *testing.T) {
	f := newFixture(t)
	ids := f.heldBy(t, tlA, 3)

	res, err := f.svc.TLDistribute(context.Background(), tlA, ids, []int64{u1, u2}, "")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, u1, f.store.raw(ids[0]).ActiveAssignment().TeamMember)
	assert.Equal(t, u1, f.store.raw(ids[1]).ActiveAssignment().TeamMember)
	assert.Equal(t, u2, f.store.raw(ids[2]).ActiveAssignment().TeamMember)
	assert.Equal(t, contact.MethodManual, f.store.raw(ids[2]).TLDistribution.DistributionMethod)
}

func TestTLDistributeSkipsRecordsNotHeld(t *testing.T) {
	f := newFixture(t)
	mine := f.heldBy(t, tlA, 2)
	theirs := f.heldBy(t, tlB, 1)

	res, err := f.svc.TLDistribute(context.Background(), tlA, append(append([]string{}, mine...), theirs[0], "missing"), []int64{u1}, contact.MethodManual)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 2, res.TotalErrors)
	assert.Equal(t, theirs[0], res.Errors[0].DataID)
	assert.Equal(t, "missing", res.Errors[1].DataID)

	assert.Equal(t, contact.StatusAssigned, f.store.raw(theirs[0]).DistributionStatus)
}

func TestTLDistributeRejectsAlreadyDistributed(t *testing.T) {
	f := newFixture(t)
	ids := f.heldBy(t, tlA, 1)

	_, err := f.svc.TLDistribute(context.Background(), tlA, ids, []int64{u1}, contact.MethodManual)
	require.NoError(t, err)

	res, err := f.svc.TLDistribute(context.Background(), tlA, ids, []int64{u2}, contact.MethodManual)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
	assert.Equal(t, 1, res.TotalErrors)
	assert.Equal(t, u1, f.store.raw(ids[0]).ActiveAssignment().TeamMember)
}

func TestTLDistributeValidatesMembersBeforeMutating(t *testing.T) {
	f := newFixture(t)
	ids := f.heldBy(t, tlA, 2)

	for name, member := range map[string]int64{
		"other team": outsider,
		"inactive":   uInactive,
		"unknown":    999,
		"a TL":       tlB,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.TLDistribute(context.Background(), tlA, ids, []int64{u1, member}, contact.MethodEqual)
			requireKind(t, err, xerrors.KindNotFound)
		})
	}

	for _, id := range ids {
		assert.Equal(t, contact.StatusAssigned, f.store.raw(id).DistributionStatus)
	}
}

func TestTLDistributeCallerMustBeActiveTL(t *testing.T) {
	f := newFixture(t)
	ids := f.heldBy(t, tlA, 1)

	_, err := f.svc.TLDistribute(context.Background(), u1, ids, []int64{u2}, contact.MethodManual)
	requireKind(t, err, xerrors.KindForbidden)

	_, err = f.svc.TLDistribute(context.Background(), tlInactive, ids, []int64{u2}, contact.MethodManual)
	requireKind(t, err, xerrors.KindForbidden)
}

func TestTLDistributeRejectsUnknownMethod(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.TLDistribute(context.Background(), tlA, []string{"a"}, []int64{u1}, "lottery")
	requireKind(t, err, xerrors.KindValidation)
}

func TestTLDistributeCollectsStoreFailures(t *testing.T) {
	f := newFixture(t)
	ids := f.heldBy(t, tlA, 3)
	f.store.distributeErr[ids[1]] = errors.New("serialization failure")

	res, err := f.svc.TLDistribute(context.Background(), tlA, ids, []int64{u1, u2, u3}, contact.MethodAuto)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, ids[1], res.Errors[0].DataID)
	assert.Equal(t, u2, res.Errors[0].TeamMember)
}
