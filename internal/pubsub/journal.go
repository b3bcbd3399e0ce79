package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// JournalEntry is one audit record for a request.
type JournalEntry struct {
	ID        string                 `json:"id"`
	Event     map[string]interface{} `json:"event"`
	Timestamp time.Time              `json:"timestamp"`
}

// Journal keeps an append-only per-request audit trail in Redis Streams.
// Transitions and assignments land here; the stream is capped so a noisy
// record cannot grow without bound.
type Journal struct {
	rdb    *redis.Client
	log    *zap.Logger
	maxLen int64
}

func NewJournal(rdb *redis.Client, log *zap.Logger) *Journal {
	return &Journal{rdb: rdb, log: log, maxLen: 1000}
}

func journalKey(requestID string) string {
	return "journal:request:" + requestID
}

// Append records an event on the request's stream.
func (j *Journal) Append(ctx context.Context, requestID string, event map[string]interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal journal event: %w", err)
	}

	id, err := j.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: journalKey(requestID),
		MaxLen: j.maxLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{"data": string(data)},
	}).Result()
	if err != nil {
		j.log.Warn("Failed to append journal event",
			zap.String("request_id", requestID), zap.Error(err))
		return fmt.Errorf("failed to append to journal: %w", err)
	}

	j.log.Debug("Journal event appended",
		zap.String("request_id", requestID), zap.String("stream_id", id))
	return nil
}

// List returns up to limit entries for a request, oldest first.
func (j *Journal) List(ctx context.Context, requestID string, limit int64) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	msgs, err := j.rdb.XRangeN(ctx, journalKey(requestID), "-", "+", limit).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	entries := make([]JournalEntry, 0, len(msgs))
	for _, msg := range msgs {
		entry := JournalEntry{ID: msg.ID}
		if raw, ok := msg.Values["data"].(string); ok {
			if err := json.Unmarshal([]byte(raw), &entry.Event); err != nil {
				j.log.Warn("Skipping undecodable journal entry",
					zap.String("request_id", requestID), zap.String("stream_id", msg.ID))
				continue
			}
		}
		if ts, _ := parseStreamID(msg.ID); ts > 0 {
			entry.Timestamp = time.UnixMilli(ts)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// parseStreamID splits a redis stream id of the form "<ms>-<seq>".
func parseStreamID(id string) (int64, int64) {
	var ms, seq int64
	fmt.Sscanf(id, "%d-%d", &ms, &seq)
	return ms, seq
}
