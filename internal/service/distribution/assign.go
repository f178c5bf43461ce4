// internal/service/distribution/assign.go
package distribution

import (
	"context"

	"leadflow-service/internal/domain/contact"
	"leadflow-service/internal/domain/identity"
	"leadflow-service/internal/events"
	xerrors "leadflow-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// AssignToTL claims up to count of the oldest pending records for a TL.
// Fewer available records is not an error; none available is.
func (s *Service) AssignToTL(ctx context.Context, count int, tlID, adminID int64) (*contact.AssignToTLResult, error) {
	if count < 1 {
		return nil, xerrors.Validation("count must be at least 1")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tl, err := s.resolveTarget(ctx, tlID, identity.RoleTL, "TL")
	if err != nil {
		return nil, err
	}

	ids, err := s.claim(ctx, count, contact.Claim{
		TargetID:   tl.ID,
		TargetType: contact.AssignedTL,
		AssignedBy: adminID,
		At:         s.now(),
	})
	if err != nil {
		return nil, err
	}

	return &contact.AssignToTLResult{Count: len(ids), TLID: tl.ID, TLName: tl.Name}, nil
}

// AssignToUser claims up to count of the oldest pending records for a user
// and opens a work-queue entry for each in the same write.
func (s *Service) AssignToUser(ctx context.Context, count int, userID, adminID int64) (*contact.AssignToUserResult, error) {
	if count < 1 {
		return nil, xerrors.Validation("count must be at least 1")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.resolveTarget(ctx, userID, identity.RoleUser, "user")
	if err != nil {
		return nil, err
	}

	ids, err := s.claim(ctx, count, contact.Claim{
		TargetID:    user.ID,
		TargetType:  contact.AssignedDirectUser,
		AssignedBy:  adminID,
		At:          s.now(),
		CreateEntry: true,
	})
	if err != nil {
		return nil, err
	}

	return &contact.AssignToUserResult{Count: len(ids), UserID: user.ID, UserName: user.Name}, nil
}

func (s *Service) claim(ctx context.Context, count int, c contact.Claim) ([]string, error) {
	ids, err := s.store.ClaimPending(ctx, count, c)
	if err != nil {
		return nil, xerrors.Internal("failed to assign records", err)
	}
	if len(ids) == 0 {
		return nil, xerrors.NotFound("no pending records available")
	}

	s.metrics.Assigned(string(c.TargetType), len(ids))
	s.publish(ctx, events.RecordsAssigned{
		BaseEvent:  events.NewBaseEvent(c.At),
		RecordIDs:  ids,
		TargetID:   c.TargetID,
		TargetType: string(c.TargetType),
		AssignedBy: c.AssignedBy,
		NewEntries: c.CreateEntry,
	})

	s.logger.Info("records assigned",
		zap.String("target_type", string(c.TargetType)),
		zap.Int64("target_id", c.TargetID),
		zap.Int("requested", count),
		zap.Int("assigned", len(ids)),
		zap.Int64("admin_id", c.AssignedBy))

	return ids, nil
}

// Reassign hands withdrawn records back out to a TL or user.
func (s *Service) Reassign(ctx context.Context, dataIDs []string, targetID, adminID int64) (*contact.BulkResult, error) {
	ids := uniqueStrings(dataIDs)
	if len(ids) == 0 {
		return nil, xerrors.Validation("data_ids must not be empty")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	target, err := s.users.ResolveUser(ctx, targetID)
	if err != nil {
		if xerrors.KindOf(err) == xerrors.KindNotFound {
			return nil, xerrors.NotFound("target user not found")
		}
		return nil, xerrors.Internal("failed to resolve target", err)
	}
	if !target.IsActive {
		return nil, xerrors.NotFound("target user is inactive")
	}

	c := contact.Claim{TargetID: target.ID, AssignedBy: adminID, At: s.now()}
	switch target.Role {
	case identity.RoleTL:
		c.TargetType = contact.AssignedTL
	case identity.RoleUser:
		c.TargetType = contact.AssignedDirectUser
		c.CreateEntry = true
	default:
		return nil, xerrors.NotFound("target must be a TL or user")
	}

	var errs errorList
	done := make([]string, 0, len(ids))
	for _, id := range ids {
		if err := s.store.Reassign(ctx, id, c); err != nil {
			errs.add(id, 0, err)
			continue
		}
		done = append(done, id)
	}

	if len(done) > 0 {
		s.metrics.Assigned(string(c.TargetType), len(done))
		s.publish(ctx, events.RecordsAssigned{
			BaseEvent:  events.NewBaseEvent(c.At),
			RecordIDs:  done,
			TargetID:   c.TargetID,
			TargetType: string(c.TargetType),
			AssignedBy: adminID,
			NewEntries: c.CreateEntry,
		})
	}
	s.metrics.OpFailed("reassign", errs.total)

	s.logger.Info("records reassigned",
		zap.Int64("target_id", target.ID),
		zap.Int("count", len(done)),
		zap.Int("errors", errs.total),
		zap.Int64("admin_id", adminID))

	return errs.result(len(done)), nil
}
