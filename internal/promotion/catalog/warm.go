package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/toko-promo/internal/obs"
	"github.com/noah-isme/toko-promo/internal/tenant"
)

// TaskWarm is the asynq task type that preloads a catalog snapshot.
const TaskWarm = "promotions:catalog:warm"

// WarmPayload identifies the snapshot to preload.
type WarmPayload struct {
	TenantID string    `json:"tenantId"`
	Bucket   time.Time `json:"bucket"`
}

// TaskEnqueuer is satisfied by *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskWarmer schedules warm-up tasks on asynq. Tasks are unique per tenant and
// bucket for one bucket width.
type TaskWarmer struct {
	client TaskEnqueuer
	unique time.Duration
	queue  string
}

// NewTaskWarmer constructs a TaskWarmer.
func NewTaskWarmer(client TaskEnqueuer, bucket time.Duration, queue string) *TaskWarmer {
	if bucket <= 0 {
		bucket = DefaultBucket
	}
	if queue == "" {
		queue = "default"
	}
	return &TaskWarmer{client: client, unique: bucket, queue: queue}
}

// NewWarmTask builds the asynq task for a tenant bucket.
func NewWarmTask(tenantID string, bucket time.Time, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(WarmPayload{TenantID: tenantID, Bucket: bucket.UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWarm, payload, opts...), nil
}

// EnqueueWarm schedules the warm-up. Duplicates are not errors.
func (w *TaskWarmer) EnqueueWarm(ctx context.Context, tenantID string, bucket time.Time) error {
	if w == nil || w.client == nil {
		return nil
	}
	task, err := NewWarmTask(tenantID, bucket,
		asynq.Queue(w.queue),
		asynq.Unique(w.unique),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return err
	}
	if _, err := w.client.EnqueueContext(ctx, task); err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("enqueue %s: %w", TaskWarm, err)
	}
	return nil
}

// HandleWarmTask is the asynq handler for TaskWarm.
func (s *Service) HandleWarmTask(ctx context.Context, task *asynq.Task) error {
	var payload WarmPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		obs.ObserveCatalogWarm("invalid")
		return fmt.Errorf("decode warm payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.TenantID == "" {
		obs.ObserveCatalogWarm("invalid")
		return fmt.Errorf("warm payload without tenant: %w", asynq.SkipRetry)
	}
	ctx = tenant.WithTenant(ctx, payload.TenantID)
	if err := s.Warm(ctx, payload.Bucket); err != nil {
		obs.ObserveCatalogWarm("error")
		return err
	}
	obs.ObserveCatalogWarm("ok")
	s.logger.Debug().Str("tenant_id", payload.TenantID).Time("bucket", payload.Bucket).Msg("promotion catalog warmed")
	return nil
}
