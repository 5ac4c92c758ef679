package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/traceboard/traceboard/internal/metrics"
	"github.com/traceboard/traceboard/internal/models"
)

// appendRetries bounds how often the worker re-attempts a transient append
// failure before dropping an informational entry.
const appendRetries = 2

// AuditJob represents a single informational audit entry to be recorded.
type AuditJob struct {
	Fields models.AuditFields
}

// Appender is the minimal ledger surface the worker writes through.
type Appender interface {
	Append(ctx context.Context, fields models.AuditFields) (*models.AuditEntry, error)
}

// AuditWorker buffers informational audit entries and writes them via a
// single background goroutine. Writes are best-effort: a full queue or a
// persistent storage failure drops the entry with diagnostics, never an
// error to the caller.
type AuditWorker struct {
	ledger Appender
	log    *logrus.Logger
	jobs   chan *AuditJob
}

// NewAuditWorker creates an AuditWorker with the given queue capacity.
func NewAuditWorker(ledger Appender, log *logrus.Logger, queueSize int) *AuditWorker {
	if queueSize <= 0 {
		queueSize = 1000
	}
	return &AuditWorker{
		ledger: ledger,
		log:    log,
		jobs:   make(chan *AuditJob, queueSize),
	}
}

// Enqueue adds an audit job. Non-blocking; drops the job if the queue is full.
func (w *AuditWorker) Enqueue(job *AuditJob) {
	select {
	case w.jobs <- job:
		metrics.AuditQueueDepth.Set(float64(len(w.jobs)))
	default:
		metrics.AuditWrites.WithLabelValues(Informational.String(), "dropped").Inc()
		w.log.WithField("action", job.Fields.Action).Warn("audit queue full, dropping entry")
	}
}

// Run processes audit jobs until the context is cancelled, then drains
// remaining jobs.
func (w *AuditWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case job := <-w.jobs:
			w.process(job)
		}
	}
}

func (w *AuditWorker) drain() {
	for {
		select {
		case job := <-w.jobs:
			w.process(job)
		default:
			return
		}
	}
}

func (w *AuditWorker) process(job *AuditJob) {
	metrics.AuditQueueDepth.Set(float64(len(w.jobs)))

	var err error
	for attempt := 0; attempt <= appendRetries; attempt++ {
		_, err = w.ledger.Append(context.Background(), job.Fields)
		if err == nil {
			metrics.AuditWrites.WithLabelValues(Informational.String(), "ok").Inc()
			return
		}
		if !isTransient(err) {
			break
		}
	}

	metrics.AuditWrites.WithLabelValues(Informational.String(), "error").Inc()
	w.log.WithError(err).WithField("action", job.Fields.Action).Warn("audit record failed")
}

// isTransient reports whether a failed append is worth retrying.
// Canonicalization failures are caller bugs and never are.
func isTransient(err error) bool {
	return !errors.Is(err, models.ErrCanonicalization)
}
