package cache

import (
	"context"
	"encoding/json"
	"fmt"
)

// HistoryKey is the Redis list holding recent reload reports, newest first.
const HistoryKey = "popcornguide:reloads"

// HistoryLimit caps the number of reports kept.
const HistoryLimit = 50

// PushHistory prepends a JSON-encoded entry and trims the list to HistoryLimit.
func PushHistory(ctx context.Context, r *Redis, key string, entry any) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("history marshal: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, HistoryLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("history push: %w", err)
	}
	return nil
}

// History returns up to n entries, newest first, decoded as T.
// Entries that fail to decode are skipped.
func History[T any](ctx context.Context, r *Redis, key string, n int) ([]T, error) {
	if n <= 0 || n > HistoryLimit {
		n = HistoryLimit
	}
	raw, err := r.client.LRange(ctx, key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("history range: %w", err)
	}
	out := make([]T, 0, len(raw))
	for _, item := range raw {
		var v T
		if err := json.Unmarshal([]byte(item), &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
