package identity

import (
	"context"
	"fmt"
	"time"

	"leadflow-service/internal/domain/identity"
	"leadflow-service/internal/events"

	"go.uber.org/zap"
)

// CounterStore persists the per-user lead tallies.
type CounterStore interface {
	AddLeads(ctx context.Context, userID int64, n int, day time.Time) error
	ReleaseLeads(ctx context.Context, userID int64, n int) error
	LeadCounters(ctx context.Context, userID int64) (*identity.LeadCounters, error)
}

// CounterConsumer keeps lead counters in step with work-queue entries. A lead
// counts as pending from the moment an entry opens until it is withdrawn.
type CounterConsumer struct {
	store  CounterStore
	logger *zap.Logger
}

func NewCounterConsumer(store CounterStore, logger *zap.Logger) *CounterConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CounterConsumer{store: store, logger: logger}
}

// Register subscribes the consumer to the events that open or close entries.
func (c *CounterConsumer) Register(bus events.Bus) {
	bus.Subscribe(events.RecordsAssignedName, events.HandlerFunc(c.onAssigned))
	bus.Subscribe(events.RecordsDistributedName, events.HandlerFunc(c.onDistributed))
	bus.Subscribe(events.RecordsWithdrawnName, events.HandlerFunc(c.onWithdrawn))
}

// Counters returns the stored tallies for a user.
func (c *CounterConsumer) Counters(ctx context.Context, userID int64) (*identity.LeadCounters, error) {
	return c.store.LeadCounters(ctx, userID)
}

func (c *CounterConsumer) onAssigned(ctx context.Context, e events.Event) error {
	ev, ok := e.(events.RecordsAssigned)
	if !ok || !ev.NewEntries || len(ev.RecordIDs) == 0 {
		return nil
	}
	return c.add(ctx, ev.TargetID, len(ev.RecordIDs), ev.OccurredAt())
}

func (c *CounterConsumer) onDistributed(ctx context.Context, e events.Event) error {
	ev, ok := e.(events.RecordsDistributed)
	if !ok || len(ev.RecordIDs) == 0 {
		return nil
	}
	return c.add(ctx, ev.MemberID, len(ev.RecordIDs), ev.OccurredAt())
}

func (c *CounterConsumer) onWithdrawn(ctx context.Context, e events.Event) error {
	ev, ok := e.(events.RecordsWithdrawn)
	// withdrawals from a TL pool close no entry
	if !ok || ev.MemberID == 0 || len(ev.RecordIDs) == 0 {
		return nil
	}
	if err := c.store.ReleaseLeads(ctx, ev.MemberID, len(ev.RecordIDs)); err != nil {
		return fmt.Errorf("release leads for user %d: %w", ev.MemberID, err)
	}
	c.logger.Debug("lead counters released", zap.Int64("user_id", ev.MemberID), zap.Int("count", len(ev.RecordIDs)))
	return nil
}

func (c *CounterConsumer) add(ctx context.Context, userID int64, n int, at time.Time) error {
	at = at.UTC()
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
	if err := c.store.AddLeads(ctx, userID, n, day); err != nil {
		return fmt.Errorf("add leads for user %d: %w", userID, err)
	}
	c.logger.Debug("lead counters added", zap.Int64("user_id", userID), zap.Int("count", n))
	return nil
}
