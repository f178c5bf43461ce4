// internal/service/distribution/service.go
package distribution

import (
	"context"
	"fmt"
	"time"

	"leadflow-service/internal/domain/contact"
	"leadflow-service/internal/domain/identity"
	"leadflow-service/internal/domain/stats"
	"leadflow-service/internal/events"
	"leadflow-service/internal/metrics"
	xerrors "leadflow-service/internal/pkg/errors"
	"leadflow-service/internal/pkg/fileparse"

	"go.uber.org/zap"
)

// maxDisplayErrors caps error lists in responses. Totals stay exact.
const maxDisplayErrors = 50

// ContactStore is the durable record store the engines run against.
type ContactStore interface {
	InsertBatch(ctx context.Context, records []contact.ContactRecord) ([]int, error)
	FindActiveByContacts(ctx context.Context, contacts []string) ([]contact.DuplicateContact, error)

	ClaimPending(ctx context.Context, n int, claim contact.Claim) ([]string, error)
	Reassign(ctx context.Context, recordID string, claim contact.Claim) error
	DistributeToMember(ctx context.Context, recordID string, tlID, memberID int64, method contact.DistributionMethod, at time.Time) error

	WithdrawByAdmin(ctx context.Context, recordID string, w contact.Withdrawal) (contact.WithdrawOutcome, error)
	WithdrawMember(ctx context.Context, recordID string, tlID, memberID int64, w contact.Withdrawal) error
	Archive(ctx context.Context, recordID string, w contact.Withdrawal) (contact.WithdrawOutcome, error)

	UpdateAssignmentStatus(ctx context.Context, u contact.StatusUpdate) (*contact.TeamAssignment, error)

	FindByID(ctx context.Context, id string) (*contact.ContactRecord, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*contact.ContactRecord, error)
	ListPending(ctx context.Context, f contact.ListFilters) ([]contact.ContactRecord, int64, error)
	ListTLPool(ctx context.Context, tlID int64, f contact.ListFilters) ([]contact.ContactRecord, int64, error)
	ListMemberQueue(ctx context.Context, memberID int64, f contact.ListFilters) ([]contact.QueueItem, int64, error)

	CountByStatus(ctx context.Context) (*stats.GlobalCounts, error)
	BatchStats(ctx context.Context, batchNumber string) (*stats.BatchSummary, error)
	ListBatches(ctx context.Context, f stats.BatchFilters) ([]stats.BatchSummary, int64, error)
	TLStats(ctx context.Context, tlID int64) (*stats.TLStats, error)
	UserStats(ctx context.Context, userID int64, from, to time.Time) (*stats.UserStats, error)
}

// IdentityProvider resolves role, active flag, name and team of a user.
type IdentityProvider interface {
	ResolveUser(ctx context.Context, id int64) (*identity.User, error)
}

// FileNormalizer turns an uploaded file into {name, contact} rows.
type FileNormalizer interface {
	ParseFile(path string) ([]fileparse.Row, error)
}

type Config struct {
	OpTimeout     time.Duration
	MaxImportRows int
	UploadDir     string
}

type Service struct {
	store   ContactStore
	users   IdentityProvider
	files   FileNormalizer
	bus     events.Bus
	metrics *metrics.Metrics
	logger  *zap.Logger
	cfg     Config
	now     func() time.Time
}

func NewService(
	store ContactStore,
	users IdentityProvider,
	files FileNormalizer,
	bus events.Bus,
	m *metrics.Metrics,
	logger *zap.Logger,
	cfg Config,
) *Service {
	if cfg.MaxImportRows <= 0 {
		cfg.MaxImportRows = 10000
	}
	return &Service{
		store:   store,
		users:   users,
		files:   files,
		bus:     bus,
		metrics: m,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.OpTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.OpTimeout)
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, e)
}

// resolveTarget loads a user an admin or TL is acting on. Every failure is a
// NotFound naming why the user cannot be used.
func (s *Service) resolveTarget(ctx context.Context, id int64, role identity.Role, label string) (*identity.User, error) {
	u, err := s.users.ResolveUser(ctx, id)
	if err != nil {
		if xerrors.KindOf(err) == xerrors.KindNotFound {
			return nil, xerrors.NotFound(fmt.Sprintf("%s %d not found", label, id))
		}
		return nil, xerrors.Internal(fmt.Sprintf("failed to resolve %s", label), err)
	}
	if u.Role != role {
		return nil, xerrors.NotFound(fmt.Sprintf("%s %d does not have the %s role", label, id, role))
	}
	if !u.IsActive {
		return nil, xerrors.NotFound(fmt.Sprintf("%s %d is inactive", label, id))
	}
	return u, nil
}

// requireCaller checks the acting user holds role and is active.
func (s *Service) requireCaller(ctx context.Context, id int64, role identity.Role) (*identity.User, error) {
	u, err := s.users.ResolveUser(ctx, id)
	if err != nil {
		if xerrors.KindOf(err) == xerrors.KindNotFound {
			return nil, xerrors.Forbidden("caller is not a known user")
		}
		return nil, xerrors.Internal("failed to resolve caller", err)
	}
	if !u.Is(role) {
		return nil, xerrors.Forbidden(fmt.Sprintf("caller must be an active %s", role))
	}
	return u, nil
}

// errorList accumulates per-unit failures of a bulk loop.
type errorList struct {
	items []contact.OpError
	total int
}

func (l *errorList) add(dataID string, member int64, err error) {
	l.total++
	if len(l.items) < maxDisplayErrors {
		l.items = append(l.items, contact.OpError{DataID: dataID, TeamMember: member, Error: err.Error()})
	}
}

func (l *errorList) result(count int) *contact.BulkResult {
	items := l.items
	if items == nil {
		items = []contact.OpError{}
	}
	return &contact.BulkResult{Count: count, Errors: items, TotalErrors: l.total}
}

// uniqueStrings drops blanks and repeats, keeping first-seen order.
func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func uniqueInt64s(in []int64) []int64 {
	seen := make(map[int64]struct{}, len(in))
	out := make([]int64, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
