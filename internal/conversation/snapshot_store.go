package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const snapshotTTL = 24 * time.Hour

// SnapshotStore persists session working memory to Redis between turns so a
// crashed worker can pick a live call back up.
type SnapshotStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

func NewSnapshotStore(redisClient *redis.Client, tracer trace.Tracer) *SnapshotStore {
	if redisClient == nil {
		panic("conversation: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("frontdesk.internal.conversation.snapshot")
	}
	return &SnapshotStore{
		redis:  redisClient,
		tracer: tracer,
	}
}

// Save writes the session snapshot with a rolling TTL.
func (s *SnapshotStore) Save(ctx context.Context, session *Session) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_snapshot")
	defer span.End()

	data, err := json.Marshal(session)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, snapshotKey(session.ID), data, snapshotTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist session snapshot: %w", err)
	}
	return nil
}

// Load restores a session snapshot by id.
func (s *SnapshotStore) Load(ctx context.Context, sessionID string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_snapshot")
	defer span.End()

	data, err := s.redis.Get(ctx, snapshotKey(sessionID)).Bytes()
	if err != nil {
		span.RecordError(err)
		if err == redis.Nil {
			return nil, fmt.Errorf("conversation: unknown session %s", sessionID)
		}
		return nil, fmt.Errorf("conversation: failed to load session snapshot: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode session snapshot: %w", err)
	}
	return &session, nil
}

// Delete removes the snapshot once a call has closed.
func (s *SnapshotStore) Delete(ctx context.Context, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.delete_snapshot")
	defer span.End()

	if err := s.redis.Del(ctx, snapshotKey(sessionID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to delete session snapshot: %w", err)
	}
	return nil
}

func snapshotKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}
