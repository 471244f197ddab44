package transcripts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "call_transcript:"
	entryTTL   = 24 * time.Hour
	maxEntries = 500
)

// Entry is one (speaker, utterance) pair. The sequence is append-only while
// a call is active and consumed once at call end.
type Entry struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Store buffers call transcripts in Redis. A nil *Store is a no-op so the
// relay still works when Redis is not configured; callers then post full
// transcripts over HTTP instead.
type Store struct {
	redis *redis.Client
}

// NewStore creates a transcript store. Returns nil when redisClient is nil.
func NewStore(redisClient *redis.Client) *Store {
	if redisClient == nil {
		return nil
	}
	return &Store{redis: redisClient}
}

// Append adds one utterance to the call's transcript.
func (s *Store) Append(ctx context.Context, callID string, entry Entry) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if callID == "" {
		return errors.New("transcripts: callID required")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("transcripts: marshal entry: %w", err)
	}

	key := keyPrefix + callID
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, entryTTL)
	pipe.LTrim(ctx, key, -maxEntries, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("transcripts: append entry: %w", err)
	}
	return nil
}

// List returns the call's transcript in order.
func (s *Store) List(ctx context.Context, callID string) ([]Entry, error) {
	if s == nil || s.redis == nil {
		return nil, nil
	}
	if callID == "" {
		return nil, errors.New("transcripts: callID required")
	}

	raw, err := s.redis.LRange(ctx, keyPrefix+callID, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("transcripts: list entries: %w", err)
	}

	out := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// Clear drops the buffered transcript. Called when a doctor accepts the
// call so the session starts with an empty buffer.
func (s *Store) Clear(ctx context.Context, callID string) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if callID == "" {
		return errors.New("transcripts: callID required")
	}
	if err := s.redis.Del(ctx, keyPrefix+callID).Err(); err != nil {
		return fmt.Errorf("transcripts: clear: %w", err)
	}
	return nil
}
