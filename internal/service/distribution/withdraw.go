// internal/service/distribution/withdraw.go
package distribution

import (
	"context"
	"strings"

	"leadflow-service/internal/domain/contact"
	"leadflow-service/internal/domain/identity"
	"leadflow-service/internal/events"
	xerrors "leadflow-service/internal/pkg/errors"

	"go.uber.org/zap"
)

type withdrawGroup struct {
	member int64
	holder int64
}

// AdminWithdraw pulls records back to the admin pool. Each record is its own
// unit; failures are collected.
func (s *Service) AdminWithdraw(ctx context.Context, dataIDs []string, adminID int64, reason string) (*contact.BulkResult, error) {
	ids := uniqueStrings(dataIDs)
	if len(ids) == 0 {
		return nil, xerrors.Validation("data_ids must not be empty")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	w := contact.Withdrawal{By: adminID, Reason: strings.TrimSpace(reason), At: s.now()}

	var errs errorList
	groups := map[withdrawGroup][]string{}
	var order []withdrawGroup
	for _, id := range ids {
		out, err := s.store.WithdrawByAdmin(ctx, id, w)
		if err != nil {
			errs.add(id, 0, err)
			continue
		}
		g := withdrawGroup{member: out.MemberID, holder: out.HolderID}
		if _, ok := groups[g]; !ok {
			order = append(order, g)
		}
		groups[g] = append(groups[g], id)
	}

	count := s.publishWithdrawals(ctx, w, order, groups)
	s.metrics.Withdrawn("admin", count)
	s.metrics.OpFailed("admin_withdraw", errs.total)

	s.logger.Info("records withdrawn by admin",
		zap.Int("count", count),
		zap.Int("errors", errs.total),
		zap.Int64("admin_id", adminID))

	return errs.result(count), nil
}

// TLWithdraw withdraws specific (record, member) pairs from records the TL
// holds. The TL keeps holding the records.
func (s *Service) TLWithdraw(ctx context.Context, tlID int64, dataIDs []string, memberIDs []int64, reason string) (*contact.BulkResult, error) {
	ids := uniqueStrings(dataIDs)
	members := uniqueInt64s(memberIDs)
	if len(ids) == 0 {
		return nil, xerrors.Validation("data_ids must not be empty")
	}
	if len(members) == 0 {
		return nil, xerrors.Validation("team_member_ids must not be empty")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.requireCaller(ctx, tlID, identity.RoleTL); err != nil {
		return nil, err
	}

	records, err := s.store.FindByIDs(ctx, ids)
	if err != nil {
		return nil, xerrors.Internal("failed to load records", err)
	}

	w := contact.Withdrawal{By: tlID, Reason: strings.TrimSpace(reason), At: s.now()}

	var errs errorList
	groups := map[withdrawGroup][]string{}
	var order []withdrawGroup
	for _, id := range ids {
		rec, ok := records[id]
		if !ok {
			errs.add(id, 0, xerrors.NotFound("record not found"))
			continue
		}
		if !rec.HeldByTL(tlID) {
			errs.add(id, 0, xerrors.NotFound("record is not held by this TL"))
			continue
		}

		for _, member := range members {
			if err := s.store.WithdrawMember(ctx, id, tlID, member, w); err != nil {
				errs.add(id, member, err)
				continue
			}
			g := withdrawGroup{member: member, holder: tlID}
			if _, ok := groups[g]; !ok {
				order = append(order, g)
			}
			groups[g] = append(groups[g], id)
		}
	}

	count := s.publishWithdrawals(ctx, w, order, groups)
	s.metrics.Withdrawn("tl", count)
	s.metrics.OpFailed("tl_withdraw", errs.total)

	s.logger.Info("records withdrawn by TL",
		zap.Int64("tl_id", tlID),
		zap.Int("count", count),
		zap.Int("errors", errs.total))

	return errs.result(count), nil
}

// Archive soft-deletes records. Archived contacts may be imported again.
func (s *Service) Archive(ctx context.Context, dataIDs []string, adminID int64, reason string) (*contact.BulkResult, error) {
	ids := uniqueStrings(dataIDs)
	if len(ids) == 0 {
		return nil, xerrors.Validation("data_ids must not be empty")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	w := contact.Withdrawal{By: adminID, Reason: strings.TrimSpace(reason), Notes: "archived", At: s.now()}

	var errs errorList
	groups := map[withdrawGroup][]string{}
	var order []withdrawGroup
	count := 0
	for _, id := range ids {
		out, err := s.store.Archive(ctx, id, w)
		if err != nil {
			errs.add(id, 0, err)
			continue
		}
		count++
		if out.MemberID == 0 {
			continue
		}
		g := withdrawGroup{member: out.MemberID, holder: out.HolderID}
		if _, ok := groups[g]; !ok {
			order = append(order, g)
		}
		groups[g] = append(groups[g], id)
	}

	s.publishWithdrawals(ctx, w, order, groups)
	s.metrics.OpFailed("archive", errs.total)

	s.logger.Info("records archived",
		zap.Int("count", count),
		zap.Int("errors", errs.total),
		zap.Int64("admin_id", adminID))

	return errs.result(count), nil
}

func (s *Service) publishWithdrawals(ctx context.Context, w contact.Withdrawal, order []withdrawGroup, groups map[withdrawGroup][]string) int {
	count := 0
	for _, g := range order {
		ids := groups[g]
		count += len(ids)
		s.publish(ctx, events.RecordsWithdrawn{
			BaseEvent:   events.NewBaseEvent(w.At),
			MemberID:    g.member,
			HolderID:    g.holder,
			RecordIDs:   ids,
			WithdrawnBy: w.By,
			Reason:      w.Reason,
		})
	}
	return count
}
