// internal/service/distribution/query.go
package distribution

import (
	"context"

	"leadflow-service/internal/domain/contact"
	"leadflow-service/internal/domain/identity"
	xerrors "leadflow-service/internal/pkg/errors"
)

// GetRecord returns a record with its history if the caller may see it:
// admins always, TLs for records they hold or distributed, users for records
// they actively hold.
func (s *Service) GetRecord(ctx context.Context, id string, callerID int64, roles []string) (*contact.ContactRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		if xerrors.KindOf(err) == xerrors.KindNotFound {
			return nil, err
		}
		return nil, xerrors.Internal("failed to load record", err)
	}

	if hasRole(roles, identity.RoleAdmin) {
		return rec, nil
	}
	if hasRole(roles, identity.RoleTL) {
		if rec.HeldByTL(callerID) ||
			(rec.TLDistribution.DistributedBy.Valid && rec.TLDistribution.DistributedBy.Int64 == callerID) {
			return rec, nil
		}
	}
	if hasRole(roles, identity.RoleUser) {
		if a := rec.ActiveAssignment(); a != nil && a.TeamMember == callerID {
			return rec, nil
		}
	}

	return nil, xerrors.NotFound("record not found")
}

func (s *Service) GetPendingData(ctx context.Context, f contact.ListFilters) (*contact.RecordListResponse, error) {
	f.Normalize()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	records, total, err := s.store.ListPending(ctx, f)
	if err != nil {
		return nil, xerrors.Internal("failed to list pending records", err)
	}
	return recordPage(records, total, f), nil
}

func (s *Service) GetTLPool(ctx context.Context, tlID int64, f contact.ListFilters) (*contact.RecordListResponse, error) {
	f.Normalize()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	records, total, err := s.store.ListTLPool(ctx, tlID, f)
	if err != nil {
		return nil, xerrors.Internal("failed to list TL pool", err)
	}
	return recordPage(records, total, f), nil
}

// GetMyQueue lists the caller's active work-queue entries.
func (s *Service) GetMyQueue(ctx context.Context, userID int64, f contact.ListFilters) (*contact.QueueResponse, error) {
	f.Normalize()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	items, total, err := s.store.ListMemberQueue(ctx, userID, f)
	if err != nil {
		return nil, xerrors.Internal("failed to list queue", err)
	}
	return &contact.QueueResponse{
		Items:      items,
		Total:      total,
		Page:       f.Page,
		Limit:      f.Limit,
		TotalPages: contact.TotalPages(total, f.Limit),
	}, nil
}

func recordPage(records []contact.ContactRecord, total int64, f contact.ListFilters) *contact.RecordListResponse {
	return &contact.RecordListResponse{
		Records:    records,
		Total:      total,
		Page:       f.Page,
		Limit:      f.Limit,
		TotalPages: contact.TotalPages(total, f.Limit),
	}
}

func hasRole(roles []string, role identity.Role) bool {
	for _, r := range roles {
		if r == string(role) {
			return true
		}
	}
	return false
}
