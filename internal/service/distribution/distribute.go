// internal/service/distribution/distribute.go
package distribution

import (
	"context"
	"fmt"

	"leadflow-service/internal/domain/contact"
	"leadflow-service/internal/domain/identity"
	"leadflow-service/internal/events"
	xerrors "leadflow-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// TLDistribute pushes records a TL holds into team members' queues.
// Member validation fails the whole call; record problems are collected.
func (s *Service) TLDistribute(ctx context.Context, tlID int64, dataIDs []string, memberIDs []int64, method contact.DistributionMethod) (*contact.BulkResult, error) {
	ids := uniqueStrings(dataIDs)
	members := uniqueInt64s(memberIDs)
	if len(ids) == 0 {
		return nil, xerrors.Validation("data_ids must not be empty")
	}
	if len(members) == 0 {
		return nil, xerrors.Validation("team_member_ids must not be empty")
	}
	if method == "" {
		method = contact.MethodManual
	}
	if !method.Valid() {
		return nil, xerrors.Validation(fmt.Sprintf("unknown distribution method %q", method))
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.requireCaller(ctx, tlID, identity.RoleTL); err != nil {
		return nil, err
	}
	if err := s.validateTeam(ctx, tlID, members); err != nil {
		return nil, err
	}

	records, err := s.store.FindByIDs(ctx, ids)
	if err != nil {
		return nil, xerrors.Internal("failed to load records", err)
	}

	var errs errorList
	eligible := make([]string, 0, len(ids))
	for _, id := range ids {
		rec, ok := records[id]
		switch {
		case !ok:
			errs.add(id, 0, xerrors.NotFound("record not found"))
		case !rec.HeldByTL(tlID):
			errs.add(id, 0, xerrors.NotFound("record is not assigned to this TL"))
		case rec.DistributionStatus == contact.StatusDistributed:
			errs.add(id, 0, xerrors.Conflict("record is already distributed"))
		case rec.DistributionStatus != contact.StatusAssigned && rec.DistributionStatus != contact.StatusWithdrawn:
			errs.add(id, 0, xerrors.Conflict(fmt.Sprintf("record is %s", rec.DistributionStatus)))
		default:
			eligible = append(eligible, id)
		}
	}

	now := s.now()
	byMember := make(map[int64][]string, len(members))
	count := 0
	for _, p := range planDistribution(eligible, members, method) {
		if err := s.store.DistributeToMember(ctx, p.recordID, tlID, p.memberID, method, now); err != nil {
			errs.add(p.recordID, p.memberID, err)
			continue
		}
		byMember[p.memberID] = append(byMember[p.memberID], p.recordID)
		count++
	}

	for _, member := range members {
		got := byMember[member]
		if len(got) == 0 {
			continue
		}
		s.publish(ctx, events.RecordsDistributed{
			BaseEvent: events.NewBaseEvent(now),
			TLID:      tlID,
			MemberID:  member,
			RecordIDs: got,
			Method:    string(method),
		})
	}
	s.metrics.Distributed(string(method), count)
	s.metrics.OpFailed("distribute", errs.total)

	if errs.total > 0 {
		s.logger.Warn("distribution finished with errors",
			zap.Int64("tl_id", tlID),
			zap.Int("distributed", count),
			zap.Int("errors", errs.total))
	} else {
		s.logger.Info("records distributed",
			zap.Int64("tl_id", tlID),
			zap.Int("distributed", count),
			zap.String("method", string(method)),
			zap.Int("members", len(members)))
	}

	return errs.result(count), nil
}

// validateTeam checks every member reports to tlID, is a plain user and is active.
func (s *Service) validateTeam(ctx context.Context, tlID int64, members []int64) error {
	for _, id := range members {
		u, err := s.users.ResolveUser(ctx, id)
		if err != nil {
			if xerrors.KindOf(err) == xerrors.KindNotFound {
				return xerrors.NotFound(fmt.Sprintf("team member %d not found", id))
			}
			return xerrors.Internal("failed to resolve team member", err)
		}
		switch {
		case !u.ReportsTo(tlID):
			return xerrors.NotFound(fmt.Sprintf("team member %d does not report to this TL", id))
		case u.Role != identity.RoleUser:
			return xerrors.NotFound(fmt.Sprintf("team member %d does not have the user role", id))
		case !u.IsActive:
			return xerrors.NotFound(fmt.Sprintf("team member %d is inactive", id))
		}
	}
	return nil
}
