package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/traceboard/traceboard/internal/metrics"
	"github.com/traceboard/traceboard/internal/models"
)

// Severity declares, at each call site, whether a failed audit write must
// abort the business operation it records.
type Severity int

const (
	// Informational writes are best-effort: failure is swallowed and only
	// surfaced through logs and metrics.
	Informational Severity = iota

	// Critical writes are atomic with the business mutation: if the audit
	// entry cannot be persisted, the mutation must not commit either.
	Critical
)

// String returns the severity label used in logs and metrics.
func (s Severity) String() string {
	if s == Critical {
		return "critical"
	}
	return "informational"
}

// Ledger is the data-access interface AuditService depends on.
type Ledger interface {
	Append(ctx context.Context, fields models.AuditFields) (*models.AuditEntry, error)
	AppendTx(ctx context.Context, tx pgx.Tx, fields models.AuditFields) (*models.AuditEntry, error)
	Query(ctx context.Context, f models.AuditFilter) ([]models.AuditEntry, bool, error)
	QueryGlobal(ctx context.Context, f models.AuditFilter) ([]models.AuditEntry, bool, error)
	VerifyChain(ctx context.Context, workspaceID string) ([]models.BrokenLink, error)
	TableSize(ctx context.Context) (int64, error)
}

// MembershipChecker resolves workspace admin rights for query access control.
type MembershipChecker interface {
	IsWorkspaceAdmin(ctx context.Context, workspaceID, userID string) (bool, error)
}

// TxBeginner starts the transactions the critical-path combinator runs
// business mutations in.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// degradedWindow is how long after a failed critical write the subsystem
// reports itself degraded, absent a newer success.
const degradedWindow = 5 * time.Minute

// AuditService is the application-facing surface of the audit ledger:
// the critical/informational write contract, access-controlled queries,
// chain verification, and the subsystem health signal.
type AuditService struct {
	ledger  Ledger
	members MembershipChecker
	txer    TxBeginner
	worker  *AuditWorker
	log     *logrus.Logger

	mu              sync.Mutex
	lastCritFailure time.Time
	lastCritSuccess time.Time
}

// NewAuditService creates an AuditService.
func NewAuditService(ledger Ledger, members MembershipChecker, txer TxBeginner, worker *AuditWorker, log *logrus.Logger) *AuditService {
	return &AuditService{
		ledger:  ledger,
		members: members,
		txer:    txer,
		worker:  worker,
		log:     log,
	}
}

// Record writes one audit entry with no accompanying business mutation.
// Critical entries are written synchronously and the error propagates;
// informational entries are handed to the best-effort worker and never
// fail the caller.
func (s *AuditService) Record(ctx context.Context, sev Severity, fields models.AuditFields) error {
	if sev == Critical {
		_, err := s.ledger.Append(ctx, fields)
		s.observeCritical(err)
		if err != nil {
			return err
		}
		metrics.AuditWrites.WithLabelValues(sev.String(), "ok").Inc()
		return nil
	}

	s.worker.Enqueue(&AuditJob{Fields: fields})
	return nil
}

// RecordAuthFailure records a failed authentication attempt: best-effort,
// bound to no workspace and no actor.
func (s *AuditService) RecordAuthFailure(ctx context.Context, reason, ip, userAgent string) {
	//nolint:errcheck // informational writes never fail the caller.
	s.Record(ctx, Informational, models.AuditFields{
		Action:    "auth.login_failed",
		Details:   map[string]any{"reason": reason},
		IPAddress: ip,
		UserAgent: userAgent,
	})
}

// WithAudit runs fn and the audit append as one unit of work.
//
// Critical: fn's mutations and the audit entry commit together or not at
// all — an append failure rolls the whole transaction back and propagates,
// so the business operation observably did not happen. (The reverse skew is
// the accepted one: a cancelled commit may orphan an audit entry, never
// lose one for a committed action.)
//
// Informational: fn commits on its own; the audit entry is then attempted
// best-effort and its failure never reaches the caller.
func (s *AuditService) WithAudit(ctx context.Context, sev Severity, fields models.AuditFields, fn func(pgx.Tx) error) error {
	tx, err := s.txer.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning unit of work: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on early return.

	if err := fn(tx); err != nil {
		return err
	}

	if sev == Critical {
		_, err := s.ledger.AppendTx(ctx, tx, fields)
		s.observeCritical(err)
		if err != nil {
			s.log.WithError(err).WithField("action", fields.Action).
				Error("critical audit write failed, rolling back business operation")
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("committing unit of work: %w", err)
		}
		metrics.AuditWrites.WithLabelValues(sev.String(), "ok").Inc()
		return nil
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing unit of work: %w", err)
	}

	s.worker.Enqueue(&AuditJob{Fields: fields})
	return nil
}

// observeCritical updates the health window and write metrics after a
// critical append attempt.
func (s *AuditService) observeCritical(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.lastCritFailure = time.Now()
		metrics.AuditWrites.WithLabelValues(Critical.String(), "error").Inc()
		return
	}
	s.lastCritSuccess = time.Now()
}

// Status reports the ledger write-path health: "degraded" if a critical
// write failed recently with no success since, "ok" otherwise.
func (s *AuditService) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastCritFailure.IsZero() {
		return "ok"
	}
	if time.Since(s.lastCritFailure) > degradedWindow {
		return "ok"
	}
	if s.lastCritSuccess.After(s.lastCritFailure) {
		return "ok"
	}
	return "degraded"
}

// LedgerSize returns the ledger's on-disk size in bytes.
func (s *AuditService) LedgerSize(ctx context.Context) (int64, error) {
	size, err := s.ledger.TableSize(ctx)
	if err != nil {
		return 0, err
	}
	metrics.AuditLedgerBytes.Set(float64(size))
	return size, nil
}

// Query returns ledger entries the caller is allowed to see, most recent
// first.
//
// Global principals query across all workspaces and receive denormalized
// workspace names. Everyone else must name a workspace they administer;
// otherwise the query is refused outright — no partial or redacted view.
func (s *AuditService) Query(ctx context.Context, caller models.Principal, f models.AuditFilter) ([]models.AuditEntry, bool, error) {
	if caller.Global {
		return s.ledger.QueryGlobal(ctx, f)
	}

	if f.WorkspaceID == "" {
		return nil, false, fmt.Errorf("%w: workspace scope required", models.ErrAccessDenied)
	}

	admin, err := s.members.IsWorkspaceAdmin(ctx, f.WorkspaceID, caller.UserID)
	if err != nil {
		return nil, false, err
	}
	if !admin {
		return nil, false, fmt.Errorf("%w: not a workspace admin", models.ErrAccessDenied)
	}

	return s.ledger.Query(ctx, f)
}

// Verify runs the chain verifier for global principals and logs the outcome.
func (s *AuditService) Verify(ctx context.Context, caller models.Principal, workspaceID string) ([]models.BrokenLink, error) {
	if !caller.Global {
		return nil, fmt.Errorf("%w: chain verification requires global privileges", models.ErrAccessDenied)
	}

	breaks, err := s.ledger.VerifyChain(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	if len(breaks) > 0 {
		metrics.AuditChainBreaks.Add(float64(len(breaks)))
		s.log.WithFields(logrus.Fields{
			"breaks":       len(breaks),
			"workspace_id": workspaceID,
		}).Error("audit chain verification found breaks")
	}

	return breaks, nil
}
