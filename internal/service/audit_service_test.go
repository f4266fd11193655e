package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvm-platform/cvm-admin-api/internal/models"
	"github.com/cvm-platform/cvm-admin-api/pkg/jobs"
)

type auditRepoStub struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (r *auditRepoStub) Create(ctx context.Context, entry *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *auditRepoStub) List(ctx context.Context, action, resource string, page, pageSize int) ([]models.AuditLog, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.AuditLog(nil), r.entries...), len(r.entries), nil
}

func (r *auditRepoStub) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func TestAuditServiceRecordPersistsEntry(t *testing.T) {
	repo := &auditRepoStub{}
	svc := NewAuditService(repo, jobs.QueueConfig{Workers: 1, BufferSize: 4}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.Record("offer.update", "offer", "42", 7, map[string]string{"name": "old"}, map[string]string{"name": "new"})

	require.Eventually(t, func() bool {
		return repo.count() == 1
	}, time.Second, 10*time.Millisecond)

	repo.mu.Lock()
	entry := repo.entries[0]
	repo.mu.Unlock()
	assert.Equal(t, "offer.update", entry.Action)
	assert.Equal(t, "offer", entry.Resource)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "42", *entry.ResourceID)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, int64(7), *entry.UserID)
	assert.JSONEq(t, `{"name":"old"}`, string(entry.OldValues))
	assert.JSONEq(t, `{"name":"new"}`, string(entry.NewValues))
}

func TestAuditServiceNilRecordIsNoop(t *testing.T) {
	var svc *AuditService

	assert.NotPanics(t, func() {
		svc.Record("offer.update", "offer", "42", 7, nil, nil)
	})
}

func TestAuditServiceRecordBeforeStartDropsEntry(t *testing.T) {
	repo := &auditRepoStub{}
	svc := NewAuditService(repo, jobs.QueueConfig{Workers: 1, BufferSize: 4}, nil)

	svc.Record("offer.update", "offer", "42", 7, nil, nil)

	assert.Equal(t, 0, repo.count())
}
