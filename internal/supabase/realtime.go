package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type notifier interface {
	Notify(ctx context.Context, channel string, payload []byte) error
}

// RealtimeClient publishes session events over Postgres NOTIFY. Supabase
// Realtime and any LISTEN client on the channel receive them.
type RealtimeClient struct {
	db notifier
}

func NewRealtimeClient(db notifier) *RealtimeClient {
	return &RealtimeClient{
		db: db,
	}
}

func (r *RealtimeClient) PublishEvent(ctx context.Context, channel string, event string, payload map[string]interface{}) error {
	body := make(map[string]interface{}, len(payload)+2)
	for k, v := range payload {
		body[k] = v
	}
	body["event"] = event
	body["sent_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event, err)
	}
	return r.db.Notify(ctx, channel, data)
}

func (r *RealtimeClient) PublishRunEvent(ctx context.Context, sessionID uuid.UUID, event string, payload map[string]interface{}) error {
	return r.PublishEvent(ctx, RunChannel(sessionID), event, payload)
}

func RunChannel(sessionID uuid.UUID) string {
	return fmt.Sprintf("generation_run:%s", sessionID.String())
}

// Event payloads
func StageChangedPayload(runID uuid.UUID, stage string) map[string]interface{} {
	return map[string]interface{}{
		"run_id": runID.String(),
		"stage":  stage,
	}
}

func AssetReadyPayload(runID uuid.UUID, conceptIndex int, placeholder bool) map[string]interface{} {
	return map[string]interface{}{
		"run_id":        runID.String(),
		"concept_index": conceptIndex,
		"placeholder":   placeholder,
	}
}

func RunCompletedPayload(runID uuid.UUID, assetCount int, rateLimited bool) map[string]interface{} {
	return map[string]interface{}{
		"run_id":       runID.String(),
		"stage":        "complete",
		"asset_count":  assetCount,
		"rate_limited": rateLimited,
	}
}

func RunFailedPayload(runID uuid.UUID, errorMsg string) map[string]interface{} {
	return map[string]interface{}{
		"run_id": runID.String(),
		"stage":  "aborted",
		"error":  errorMsg,
	}
}
