// internal/service/distribution/status.go
package distribution

import (
	"context"
	"fmt"

	"leadflow-service/internal/domain/contact"
	"leadflow-service/internal/events"
	xerrors "leadflow-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// UpdateStatus records a member's outcome on the entry they actively hold.
func (s *Service) UpdateStatus(ctx context.Context, dataID string, userID int64, req contact.UpdateStatusRequest) (*contact.TeamAssignment, error) {
	if dataID == "" {
		return nil, xerrors.Validation("data id is required")
	}
	if !req.Status.Reportable() {
		return nil, xerrors.Validation(fmt.Sprintf("status %q cannot be reported", req.Status))
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now()
	entry, err := s.store.UpdateAssignmentStatus(ctx, contact.StatusUpdate{
		RecordID:     dataID,
		UserID:       userID,
		Status:       req.Status,
		Notes:        req.Notes,
		FollowUpDate: req.FollowUpDate,
		At:           now,
	})
	if err != nil {
		if xerrors.KindOf(err) == xerrors.KindNotFound {
			return nil, err
		}
		return nil, xerrors.Internal("failed to update status", err)
	}

	s.metrics.StatusUpdated(string(req.Status))
	s.publish(ctx, events.StatusUpdated{
		BaseEvent:  events.NewBaseEvent(now),
		RecordID:   dataID,
		UserID:     userID,
		AssignedBy: entry.AssignedBy,
		Status:     string(req.Status),
	})

	s.logger.Info("assignment status updated",
		zap.String("record_id", dataID),
		zap.Int64("user_id", userID),
		zap.String("status", string(req.Status)))

	return entry, nil
}
