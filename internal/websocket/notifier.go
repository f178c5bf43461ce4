package websocket

import (
	"context"

	wstypes "leadflow-service/internal/domain/websocket"
	"leadflow-service/internal/events"
)

// Sender delivers a message to every connected session of the given users.
type Sender interface {
	SendToIdentities(identityIDs []int64, channel wstypes.ChannelType, msg *wstypes.WSMessage)
}

// Notifier turns distribution events into realtime pushes. Delivery is best
// effort; users who are offline simply miss the push.
type Notifier struct {
	sender Sender
}

func NewNotifier(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

func (n *Notifier) Register(bus events.Bus) {
	bus.Subscribe(events.RecordsAssignedName, events.HandlerFunc(n.onAssigned))
	bus.Subscribe(events.RecordsDistributedName, events.HandlerFunc(n.onDistributed))
	bus.Subscribe(events.RecordsWithdrawnName, events.HandlerFunc(n.onWithdrawn))
	bus.Subscribe(events.StatusUpdatedName, events.HandlerFunc(n.onStatusUpdated))
}

func (n *Notifier) onAssigned(ctx context.Context, e events.Event) error {
	ev, ok := e.(events.RecordsAssigned)
	if !ok {
		return nil
	}
	n.push([]int64{ev.TargetID}, wstypes.EventTypeDataAssigned, wstypes.DataEventData{
		RecordIDs: ev.RecordIDs,
		Count:     len(ev.RecordIDs),
		By:        ev.AssignedBy,
	})
	return nil
}

func (n *Notifier) onDistributed(ctx context.Context, e events.Event) error {
	ev, ok := e.(events.RecordsDistributed)
	if !ok {
		return nil
	}
	n.push([]int64{ev.MemberID}, wstypes.EventTypeDataDistributed, wstypes.DataEventData{
		RecordIDs: ev.RecordIDs,
		Count:     len(ev.RecordIDs),
		By:        ev.TLID,
		TLID:      ev.TLID,
		Method:    ev.Method,
	})
	return nil
}

func (n *Notifier) onWithdrawn(ctx context.Context, e events.Event) error {
	ev, ok := e.(events.RecordsWithdrawn)
	if !ok {
		return nil
	}

	var to []int64
	if ev.MemberID != 0 {
		to = append(to, ev.MemberID)
	}
	// the holding TL hears about withdrawals it did not make itself
	if ev.HolderID != 0 && ev.HolderID != ev.MemberID && ev.HolderID != ev.WithdrawnBy {
		to = append(to, ev.HolderID)
	}
	if len(to) == 0 {
		return nil
	}

	n.push(to, wstypes.EventTypeDataWithdrawn, wstypes.DataEventData{
		RecordIDs: ev.RecordIDs,
		Count:     len(ev.RecordIDs),
		By:        ev.WithdrawnBy,
		MemberID:  ev.MemberID,
		Reason:    ev.Reason,
	})
	return nil
}

func (n *Notifier) onStatusUpdated(ctx context.Context, e events.Event) error {
	ev, ok := e.(events.StatusUpdated)
	if !ok || ev.AssignedBy == 0 || ev.AssignedBy == ev.UserID {
		return nil
	}
	n.push([]int64{ev.AssignedBy}, wstypes.EventTypeDataStatus, wstypes.DataEventData{
		RecordIDs: []string{ev.RecordID},
		Count:     1,
		MemberID:  ev.UserID,
		Status:    ev.Status,
	})
	return nil
}

func (n *Notifier) push(to []int64, t wstypes.EventType, data wstypes.DataEventData) {
	n.sender.SendToIdentities(to, wstypes.ChannelData, wstypes.NewMessage(t, data))
}
