package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cvm-platform/cvm-admin-api/internal/models"
	"github.com/cvm-platform/cvm-admin-api/pkg/jobs"
)

type auditRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, action, resource string, page, pageSize int) ([]models.AuditLog, int, error)
}

// AuditService records audit trail entries. Writes go through the
// background job queue so request handlers never wait on the audit
// table.
type AuditService struct {
	repo   auditRepository
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditService constructs the service and its backing queue. Call
// Start before recording and Stop on shutdown.
func NewAuditService(repo auditRepository, cfg jobs.QueueConfig, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AuditService{repo: repo, logger: logger}
	svc.queue = jobs.NewQueue("audit", svc.handle, cfg)
	return svc
}

// Start launches the queue workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record enqueues an audit entry. Old and new values are serialized
// to JSON; failures are logged and dropped rather than surfaced. A
// nil receiver is a no-op so callers can hold a disabled service.
func (s *AuditService) Record(action, resource, resourceID string, userID int64, oldValue, newValue interface{}) {
	if s == nil {
		return
	}
	entry := &models.AuditLog{
		ID:        uuid.NewString(),
		Action:    action,
		Resource:  resource,
		CreatedAt: time.Now().UTC(),
	}
	if userID > 0 {
		entry.UserID = &userID
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if oldValue != nil {
		if raw, err := json.Marshal(oldValue); err == nil {
			entry.OldValues = raw
		}
	}
	if newValue != nil {
		if raw, err := json.Marshal(newValue); err == nil {
			entry.NewValues = raw
		}
	}

	if err := s.queue.Enqueue(jobs.Job{ID: entry.ID, Type: action, Payload: entry}); err != nil {
		s.logger.Warn("audit entry dropped", zap.String("action", action), zap.Error(err))
	}
}

// List returns audit entries for review.
func (s *AuditService) List(ctx context.Context, action, resource string, page, pageSize int) ([]models.AuditLog, int, error) {
	return s.repo.List(ctx, action, resource, page, pageSize)
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.AuditLog)
	if !ok {
		s.logger.Error("audit job carried unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.repo.Create(ctx, entry)
}
