package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const TaskDispatch = "notification:dispatch"

type DispatchPayload struct {
	TenantID string            `json:"tenant_id"`
	Kind     string            `json:"kind"`
	Title    string            `json:"title"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewDispatchTask builds the asynq task producers enqueue instead of writing
// notification rows inline.
func NewDispatchTask(p DispatchPayload) *asynq.Task {
	payload, _ := json.Marshal(p)
	return asynq.NewTask(TaskDispatch, payload,
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
		asynq.Queue("default"),
	)
}

var TaskModule = fx.Module("task.notification",
	fx.Provide(NewTask),
)

type Task struct {
	db   *gorm.DB
	node *snowflake.Node
}

type TaskParams struct {
	fx.In

	DB   *gorm.DB
	Node *snowflake.Node
}

func NewTask(p TaskParams) *Task {
	return &Task{
		db:   p.DB,
		node: p.Node,
	}
}

func (s *Task) HandleDispatchTask(ctx context.Context, t *asynq.Task) error {
	var payload DispatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	zapLog := zap.L().With(
		zap.String("task_type", t.Type()),
		zap.String("tenant_id", payload.TenantID),
		zap.String("kind", payload.Kind),
	)

	var meta datatypes.JSON
	if len(payload.Metadata) > 0 {
		b, _ := json.Marshal(payload.Metadata)
		meta = datatypes.JSON(b)
	}

	row := &Notification{
		ID:       s.node.Generate().String(),
		TenantID: payload.TenantID,
		Kind:     Kind(payload.Kind),
		Title:    payload.Title,
		Message:  payload.Message,
		Metadata: meta,
	}

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		zapLog.Error("failed to persist notification", zap.Error(err))
		return err
	}

	zapLog.Info("notification dispatched", zap.String("notification_id", row.ID))
	return nil
}
