package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

const TypeGenerateIconSet = "iconset:generate"

type IconSetPayload struct {
	JobID       string    `json:"job_id"`
	SourceKey   string    `json:"source_key"`
	WebhookURL  string    `json:"webhook_url,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewIconSetTask(payload IconSetPayload) (*asynq.Task, error) {
	if strings.TrimSpace(payload.JobID) == "" {
		return nil, fmt.Errorf("icon set payload requires job_id")
	}
	if strings.TrimSpace(payload.SourceKey) == "" {
		return nil, fmt.Errorf("icon set payload requires source_key")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal icon set payload: %w", err)
	}
	return asynq.NewTask(TypeGenerateIconSet, body), nil
}

func ParseIconSetPayload(task *asynq.Task) (IconSetPayload, error) {
	var payload IconSetPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return IconSetPayload{}, fmt.Errorf("unmarshal icon set payload: %w", err)
	}
	if payload.JobID == "" || payload.SourceKey == "" {
		return IconSetPayload{}, fmt.Errorf("icon set payload is missing job_id or source_key")
	}
	return payload, nil
}
