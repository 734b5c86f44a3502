// Package history publishes best-effort match action records to a Redis
// queue for an external historian to drain. The server never reads them
// back; a missing or unreachable Redis only costs history, never gameplay.
package history

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// QueueKey is the Redis list the historian drains.
const QueueKey = "zoneserver:match_actions"

// publishTimeout bounds each Redis operation so a stalled connection cannot
// pile up goroutines.
const publishTimeout = 2 * time.Second

// ActionRecord is one match event as queued for the historian.
type ActionRecord struct {
	MatchID     uuid.UUID              `json:"match_id"`
	ActionIndex uint64                 `json:"action_index"`
	Event       string                 `json:"event"`
	Fields      map[string]interface{} `json:"fields"`
	Timestamp   int64                  `json:"ts"`
}

// Recorder implements match.Recorder over a Redis list. A nil Recorder is a
// valid no-op.
type Recorder struct {
	rdb   *redis.Client
	log   *logrus.Logger
	index atomic.Uint64
}

// NewRecorder connects a recorder to the Redis instance at addr. An empty
// addr disables history and returns nil.
func NewRecorder(addr string, log *logrus.Logger) *Recorder {
	if addr == "" {
		return nil
	}
	return &Recorder{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		log: log,
	}
}

// Record queues one match event. It returns immediately; the publish runs on
// its own goroutine with a short timeout and failures are only logged.
func (r *Recorder) Record(matchID uuid.UUID, event string, fields map[string]interface{}) {
	if r == nil {
		return
	}
	if fields == nil {
		fields = make(map[string]interface{})
	}
	rec := ActionRecord{
		MatchID:     matchID,
		ActionIndex: r.index.Add(1),
		Event:       event,
		Fields:      fields,
		Timestamp:   time.Now().UnixMilli(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		payload, err := json.Marshal(rec)
		if err != nil {
			r.log.WithError(err).Warn("history: marshal failed")
			return
		}
		if err := r.rdb.RPush(ctx, QueueKey, payload).Err(); err != nil {
			r.log.WithError(err).WithField("match", rec.MatchID).Warn("history: publish failed")
		}
	}()
}

// Close releases the Redis connection.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	return r.rdb.Close()
}
