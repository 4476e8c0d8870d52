package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/discussion-api/internal/models"
	"github.com/noah-isme/discussion-api/pkg/jobs"
)

const auditJobType = "audit_log"

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditDispatcherConfig sizes the audit worker pool.
type AuditDispatcherConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// AuditDispatcher persists audit records on a background queue so mutations never wait on them.
type AuditDispatcher struct {
	writer auditWriter
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditDispatcher constructs the dispatcher. Call Start before recording.
func NewAuditDispatcher(writer auditWriter, cfg AuditDispatcherConfig, logger *zap.Logger) *AuditDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &AuditDispatcher{writer: writer, logger: logger}
	d.queue = jobs.NewQueue("audit", d.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return d
}

// Start launches the workers.
func (d *AuditDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains queued records until ctx expires.
func (d *AuditDispatcher) Stop(ctx context.Context) {
	d.queue.Stop(ctx)
}

// Record queues log for persistence, writing it inline when the queue refuses it.
func (d *AuditDispatcher) Record(ctx context.Context, log *models.AuditLog) {
	if d == nil || log == nil {
		return
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	err := d.queue.Enqueue(jobs.Job{ID: log.ID, Type: auditJobType, Payload: log})
	if err == nil {
		return
	}
	d.logger.Warn("audit queue rejected record, writing inline", zap.String("action", log.Action), zap.Error(err))
	if err := d.writer.CreateAuditLog(ctx, log); err != nil {
		d.logger.Warn("failed to record audit", zap.String("action", log.Action), zap.Error(err))
	}
}

func (d *AuditDispatcher) handle(ctx context.Context, job jobs.Job) error {
	log, ok := job.Payload.(*models.AuditLog)
	if !ok {
		return fmt.Errorf("unexpected audit payload %T", job.Payload)
	}
	return d.writer.CreateAuditLog(ctx, log)
}
