package websocket

import (
	"context"
	"sync"
	"testing"

	wstypes "leadflow-service/internal/domain/websocket"
	"leadflow-service/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type push struct {
	to      []int64
	msg     *wstypes.WSMessage
	channel wstypes.ChannelType
}

type recordingSender struct {
	mu     sync.Mutex
	pushes []push
}

func (s *recordingSender) SendToIdentities(ids []int64, channel wstypes.ChannelType, msg *wstypes.WSMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushes = append(s.pushes, push{to: ids, msg: msg, channel: channel})
}

func newNotifierBus(t *testing.T) (*events.InMemoryBus, *recordingSender) {
	t.Helper()
	bus := events.NewInMemoryBus(zap.NewNop())
	sender := &recordingSender{}
	NewNotifier(sender).Register(bus)
	return bus, sender
}

func TestNotifierAssignedAndDistributed(t *testing.T) {
	bus, sender := newNotifierBus(t)
	ctx := context.Background()

	require.NoError(t, bus.PublishSync(ctx, events.RecordsAssigned{RecordIDs: []string{"a", "b"}, TargetID: 10, AssignedBy: 1}))
	require.NoError(t, bus.PublishSync(ctx, events.RecordsDistributed{TLID: 10, MemberID: 20, RecordIDs: []string{"a"}, Method: "equal"}))

	require.Len(t, sender.pushes, 2)

	assigned := sender.pushes[0]
	assert.Equal(t, []int64{10}, assigned.to)
	assert.Equal(t, wstypes.ChannelData, assigned.channel)
	assert.Equal(t, wstypes.EventTypeDataAssigned, assigned.msg.Type)
	assert.Equal(t, 2, assigned.msg.Data.(wstypes.DataEventData).Count)

	dist := sender.pushes[1]
	assert.Equal(t, []int64{20}, dist.to)
	data := dist.msg.Data.(wstypes.DataEventData)
	assert.Equal(t, int64(10), data.TLID)
	assert.Equal(t, "equal", data.Method)
}

func TestNotifierWithdrawRecipients(t *testing.T) {
	cases := []struct {
		name string
		ev   events.RecordsWithdrawn
		want []int64
	}{
		{"admin pulls from member of a TL", events.RecordsWithdrawn{MemberID: 20, HolderID: 10, WithdrawnBy: 1}, []int64{20, 10}},
		{"TL pulls from own member", events.RecordsWithdrawn{MemberID: 20, HolderID: 10, WithdrawnBy: 10}, []int64{20}},
		{"admin pulls from TL pool", events.RecordsWithdrawn{HolderID: 10, WithdrawnBy: 1}, []int64{10}},
		{"direct user record", events.RecordsWithdrawn{MemberID: 20, HolderID: 20, WithdrawnBy: 1}, []int64{20}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bus, sender := newNotifierBus(t)
			tc.ev.RecordIDs = []string{"a"}
			require.NoError(t, bus.PublishSync(context.Background(), tc.ev))
			require.Len(t, sender.pushes, 1)
			assert.Equal(t, tc.want, sender.pushes[0].to)
		})
	}
}

func TestNotifierStatusGoesToAssigner(t *testing.T) {
	bus, sender := newNotifierBus(t)
	ctx := context.Background()

	require.NoError(t, bus.PublishSync(ctx, events.StatusUpdated{RecordID: "a", UserID: 20, AssignedBy: 10, Status: "converted"}))
	require.NoError(t, bus.PublishSync(ctx, events.StatusUpdated{RecordID: "b", UserID: 20, AssignedBy: 20, Status: "contacted"}))

	require.Len(t, sender.pushes, 1)
	assert.Equal(t, []int64{10}, sender.pushes[0].to)
	data := sender.pushes[0].msg.Data.(wstypes.DataEventData)
	assert.Equal(t, "converted", data.Status)
	assert.Equal(t, int64(20), data.MemberID)
}
