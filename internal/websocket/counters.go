package websocket

import (
	"context"

	"leadflow-service/internal/domain/identity"
	wstypes "leadflow-service/internal/domain/websocket"
)

// CounterReader reads a user's lead tallies.
type CounterReader interface {
	Counters(ctx context.Context, userID int64) (*identity.LeadCounters, error)
}

// CountersHandler answers data:counters requests with the caller's own tallies.
type CountersHandler struct {
	counters CounterReader
}

func NewCountersHandler(counters CounterReader) *CountersHandler {
	return &CountersHandler{counters: counters}
}

func (h *CountersHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{wstypes.EventTypeCounters}
}

func (h *CountersHandler) HandleMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) error {
	c, err := h.counters.Counters(ctx, client.GetIdentityID())
	if err != nil {
		return err
	}
	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeCounters, c))
	return nil
}
