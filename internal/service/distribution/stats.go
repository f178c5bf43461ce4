// internal/service/distribution/stats.go
package distribution

import (
	"context"
	"time"

	"leadflow-service/internal/domain/contact"
	"leadflow-service/internal/domain/identity"
	"leadflow-service/internal/domain/stats"
	xerrors "leadflow-service/internal/pkg/errors"

	"golang.org/x/sync/errgroup"
)

const (
	defaultUserStatsWindow = 30 * 24 * time.Hour
	overviewBatches        = 5
)

func (s *Service) GlobalCounts(ctx context.Context) (*stats.GlobalCounts, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	g, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, xerrors.Internal("failed to count records", err)
	}
	return g, nil
}

func (s *Service) GetBatchStats(ctx context.Context, batchNumber string) (*stats.BatchSummary, error) {
	if batchNumber == "" {
		return nil, xerrors.Validation("batch number is required")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	b, err := s.store.BatchStats(ctx, batchNumber)
	if err != nil {
		if xerrors.KindOf(err) == xerrors.KindNotFound {
			return nil, err
		}
		return nil, xerrors.Internal("failed to load batch stats", err)
	}
	return b, nil
}

func (s *Service) GetAllBatches(ctx context.Context, f stats.BatchFilters) (*stats.BatchListResponse, error) {
	f.Normalize()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	batches, total, err := s.store.ListBatches(ctx, f)
	if err != nil {
		return nil, xerrors.Internal("failed to list batches", err)
	}

	return &stats.BatchListResponse{
		Batches:    batches,
		Total:      total,
		Page:       f.Page,
		Limit:      f.Limit,
		TotalPages: contact.TotalPages(total, f.Limit),
	}, nil
}

// GetTLStats summarizes a TL's pool. The TL must exist with the TL role.
func (s *Service) GetTLStats(ctx context.Context, tlID int64) (*stats.TLStats, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.resolveKnown(ctx, tlID, identity.RoleTL, "TL"); err != nil {
		return nil, err
	}

	st, err := s.store.TLStats(ctx, tlID)
	if err != nil {
		return nil, xerrors.Internal("failed to load TL stats", err)
	}
	return st, nil
}

// GetUserStats counts a user's active entries by status in [from, to).
// The window defaults to the last 30 days.
func (s *Service) GetUserStats(ctx context.Context, userID int64, from, to *time.Time) (*stats.UserStats, error) {
	end := s.now()
	if to != nil {
		end = *to
	}
	start := end.Add(-defaultUserStatsWindow)
	if from != nil {
		start = *from
	}
	if !start.Before(end) {
		return nil, xerrors.Validation("from must be before to")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.resolveKnown(ctx, userID, identity.RoleUser, "user"); err != nil {
		return nil, err
	}

	st, err := s.store.UserStats(ctx, userID, start, end)
	if err != nil {
		return nil, xerrors.Internal("failed to load user stats", err)
	}
	return st, nil
}

// Overview loads global counts and the newest batches concurrently.
func (s *Service) Overview(ctx context.Context) (*stats.Overview, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		counts  *stats.GlobalCounts
		batches []stats.BatchSummary
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.store.CountByStatus(gctx)
		if err != nil {
			return err
		}
		counts = c
		return nil
	})
	g.Go(func() error {
		f := stats.BatchFilters{Page: 1, Limit: overviewBatches}
		f.Normalize()
		b, _, err := s.store.ListBatches(gctx, f)
		if err != nil {
			return err
		}
		batches = b
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, xerrors.Internal("failed to build overview", err)
	}

	return &stats.Overview{Counts: *counts, RecentBatches: batches}, nil
}

// resolveKnown checks a user exists with role; inactive users still have stats.
func (s *Service) resolveKnown(ctx context.Context, id int64, role identity.Role, label string) (*identity.User, error) {
	u, err := s.users.ResolveUser(ctx, id)
	if err != nil {
		if xerrors.KindOf(err) == xerrors.KindNotFound {
			return nil, xerrors.NotFound(label + " not found")
		}
		return nil, xerrors.Internal("failed to resolve "+label, err)
	}
	if u.Role != role {
		return nil, xerrors.NotFound(label + " not found")
	}
	return u, nil
}
