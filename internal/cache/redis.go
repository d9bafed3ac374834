// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list (queue) name for session action logs.
const DefaultQueueName = "crowdpick_actions"

// SessionActionRecord holds the minimal info needed by the historian.
type SessionActionRecord struct {
	SessionID     uuid.UUID              `json:"session_id"`
	ActionIndex   int                    `json:"action_index"`
	ActorUserID   uuid.UUID              `json:"actor_user_id"`
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload"`
	Timestamp     int64                  `json:"timestamp"`
}

// Queue pushes action records onto a Redis list.
type Queue struct {
	Client *redis.Client
	Name   string
}

// Connect opens a Redis client and verifies it with a ping.
func Connect(ctx context.Context, addr string, db int, queueName string) (*Queue, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	if queueName == "" {
		queueName = DefaultQueueName
	}
	return &Queue{Client: rdb, Name: queueName}, nil
}

// PublishSessionAction serializes the record to JSON and pushes it to the queue.
func (q *Queue) PublishSessionAction(ctx context.Context, record SessionActionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal SessionActionRecord: %w", err)
	}
	if err := q.Client.RPush(ctx, q.Name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.Name, err)
	}
	return nil
}

// Close releases the underlying client.
func (q *Queue) Close() error {
	return q.Client.Close()
}
