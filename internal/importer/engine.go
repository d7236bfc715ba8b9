package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mvrezende/event-pipeline/internal/events"
	"github.com/mvrezende/event-pipeline/internal/i18n"
	"github.com/mvrezende/event-pipeline/internal/models"
	"github.com/mvrezende/event-pipeline/internal/notify"
	"github.com/mvrezende/event-pipeline/pkg/metrics"
)

// DefaultDeadline is the wall-clock budget for one batch
const DefaultDeadline = 100 * time.Second

// ErrDeadlineExceeded is returned when the deadline fires with rows still
// pending. Already-committed row outcomes are left untouched.
var ErrDeadlineExceeded = errors.New("import deadline exceeded")

// RowRepository processes one row inside its own independent transaction.
// No transaction is shared across rows.
type RowRepository interface {
	SaveRow(ctx context.Context, row models.ImportRow, companyID int64) error
}

type Options struct {
	CompanyID      int64
	Locale         string
	EventType      models.EventType
	Actor          string
	RecipientEmail string
	Workers        int
	Deadline       time.Duration
	Delimiter      rune
	Windows1252    bool
}

// Engine parses a bounded tabular stream into rows, processes them with a
// caller-sized worker pool under a deadline, and emits the batch outcome as
// an event plus a completion email.
type Engine struct {
	repo    RowRepository
	schema  Schema
	bus     *events.Bus
	email   notify.EmailSender
	catalog *i18n.Catalog
	logger  *slog.Logger
}

func NewEngine(repo RowRepository, schema Schema, bus *events.Bus, email notify.EmailSender, catalog *i18n.Catalog, logger *slog.Logger) *Engine {
	return &Engine{
		repo:    repo,
		schema:  schema,
		bus:     bus,
		email:   email,
		catalog: catalog,
		logger:  logger,
	}
}

type rowResult struct {
	index int
	ok    bool
	desc  string
}

func (e *Engine) Run(ctx context.Context, in io.Reader, opts Options) (models.ImportJob, models.ImportSummary, error) {
	start := time.Now()
	defer func() {
		metrics.ImportDuration.Observe(time.Since(start).Seconds())
	}()

	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Deadline <= 0 {
		opts.Deadline = DefaultDeadline
	}

	job := models.ImportJob{
		ID:        uuid.NewString(),
		CompanyID: opts.CompanyID,
		EventType: opts.EventType,
		Deadline:  opts.Deadline,
		State:     models.JobRunning,
		StartedAt: start,
	}

	l := e.logger.With("job_id", job.ID, "company_id", opts.CompanyID, "event_type", opts.EventType)

	rows, err := ParseRows(in, e.schema, ParseOptions{Delimiter: opts.Delimiter, Windows1252: opts.Windows1252})
	if err != nil {
		job.State = models.JobFatalError
		metrics.ImportJobs.WithLabelValues(string(models.JobFatalError)).Inc()
		l.Error("Import aborted by stream-level parse failure", "error", err)
		e.publishError(job, opts)
		return job, models.ImportSummary{}, err
	}

	metrics.ImportBatchSize.Observe(float64(len(rows)))
	l.Info("Import batch parsed", "rows", len(rows), "workers", opts.Workers)

	// The deadline cancels waiting, not work: a row whose transaction
	// already started runs to its own completion on workCtx.
	workCtx := context.WithoutCancel(ctx)
	waitCtx, cancelWait := context.WithTimeout(ctx, opts.Deadline)
	defer cancelWait()

	rowCh := make(chan *models.ImportRow)
	results := make(chan rowResult, len(rows))

	go func() {
		defer close(rowCh)
		for i := range rows {
			select {
			case rowCh <- &rows[i]:
			case <-waitCtx.Done():
				return
			}
		}
	}()

	for i := 0; i < opts.Workers; i++ {
		go func() {
			for row := range rowCh {
				results <- e.processRow(workCtx, row, opts)
			}
		}()
	}

	summary := models.ImportSummary{TotalRead: len(rows)}
	var failures []rowResult
	received := 0
	timedOut := false

	for received < len(rows) {
		select {
		case res := <-results:
			received++
			if res.ok {
				summary.Succeeded++
			} else {
				summary.Failed++
				failures = append(failures, res)
			}
		case <-waitCtx.Done():
			timedOut = true
		}
		if timedOut {
			break
		}
	}

	// Ordered by row position, as they appear in the input
	sort.Slice(failures, func(i, j int) bool { return failures[i].index < failures[j].index })
	for _, f := range failures {
		summary.FailedDescriptions = append(summary.FailedDescriptions, f.desc)
	}

	if timedOut {
		job.State = models.JobTimedOut
		metrics.ImportJobs.WithLabelValues(string(models.JobTimedOut)).Inc()
		l.Warn("Import deadline elapsed with rows still pending",
			"finished", received, "pending", len(rows)-received)
		e.publishError(job, opts)
		return job, summary, fmt.Errorf("import job %s: %w", job.ID, ErrDeadlineExceeded)
	}

	job.State = models.JobCompleted
	metrics.ImportJobs.WithLabelValues(string(models.JobCompleted)).Inc()
	l.Info("Import batch finished",
		"total", summary.TotalRead, "succeeded", summary.Succeeded, "failed", summary.Failed)

	e.publishSummary(job, summary, opts)
	e.sendResultEmail(waitCtx, job, summary, opts)

	return job, summary, nil
}

// processRow runs one row through its own transaction. A row failure never
// rolls back, blocks, or alters any other row's outcome.
func (e *Engine) processRow(ctx context.Context, row *models.ImportRow, opts Options) rowResult {
	if err := e.repo.SaveRow(ctx, *row, opts.CompanyID); err != nil {
		desc := e.catalog.Lookup(opts.Locale, "import.row.failed", row.Index+1, err)
		row.Fail(desc)
		metrics.ImportRows.WithLabelValues(string(models.RowFailed)).Inc()
		return rowResult{index: row.Index, desc: desc}
	}

	row.Succeed()
	metrics.ImportRows.WithLabelValues(string(models.RowSucceeded)).Inc()
	return rowResult{index: row.Index, ok: true}
}

func (e *Engine) publishSummary(job models.ImportJob, summary models.ImportSummary, opts Options) {
	e.bus.Publish(models.Event{
		ID:        uuid.NewString(),
		Type:      job.EventType,
		Scope:     models.ScopeCompany,
		CompanyID: job.CompanyID,
		Description: e.catalog.Lookup(opts.Locale, "import.summary",
			summary.Succeeded, summary.TotalRead, summary.Failed),
		ActorName:   opts.Actor,
		ReferenceID: job.ID,
		OccurredAt:  time.Now(),
	})
}

func (e *Engine) publishError(job models.ImportJob, opts Options) {
	e.bus.Publish(models.Event{
		ID:          uuid.NewString(),
		Type:        models.EventImportError,
		Scope:       models.ScopeCompany,
		CompanyID:   job.CompanyID,
		Description: e.catalog.Lookup(opts.Locale, "import.error"),
		ActorName:   opts.Actor,
		ReferenceID: job.ID,
		OccurredAt:  time.Now(),
	})
}

// sendResultEmail is best effort: a mail failure never fails a finished batch
func (e *Engine) sendResultEmail(ctx context.Context, job models.ImportJob, summary models.ImportSummary, opts Options) {
	if e.email == nil || opts.RecipientEmail == "" {
		return
	}

	model := map[string]any{
		"total_read":          summary.TotalRead,
		"succeeded":           summary.Succeeded,
		"failed":              summary.Failed,
		"failed_descriptions": summary.FailedDescriptions,
		"locale":              opts.Locale,
	}

	templateKey := fmt.Sprintf("import-result.%s", job.EventType)
	if err := e.email.SendInstitutionalEmail(ctx, templateKey, opts.RecipientEmail, model, nil); err != nil {
		metrics.EmailsSent.WithLabelValues("error").Inc()
		e.logger.Error("Failed to send import result email",
			"job_id", job.ID, "recipient", opts.RecipientEmail, "error", err)
		return
	}
	metrics.EmailsSent.WithLabelValues("sent").Inc()
}
