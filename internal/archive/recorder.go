// Package archive keeps a JSON record of every answered question in the
// object store.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shopqa/shopqa/internal/pipeline"
	"github.com/shopqa/shopqa/internal/storage"
)

type Record struct {
	ID         string           `json:"id"`
	RecordedAt time.Time        `json:"recorded_at"`
	DurationMs int64            `json:"duration_ms"`
	Status     string           `json:"status"`
	Outcome    pipeline.Outcome `json:"outcome"`
}

type Recorder struct {
	store  storage.ObjectStore
	prefix string
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

type Option func(*Recorder)

func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

func WithIDs(newID func() string) Option {
	return func(r *Recorder) { r.newID = newID }
}

func NewRecorder(store storage.ObjectStore, prefix string, logger *slog.Logger, opts ...Option) (*Recorder, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		store:  store,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Record uploads outcome under <prefix>/YYYY/MM/DD/<id>.json.
func (r *Recorder) Record(ctx context.Context, outcome pipeline.Outcome) error {
	recordedAt := r.now().UTC()
	record := Record{
		ID:         r.newID(),
		RecordedAt: recordedAt,
		DurationMs: outcome.Duration.Milliseconds(),
		Status:     outcome.Status(),
		Outcome:    outcome,
	}
	key, err := storage.OutcomeKey(r.prefix, recordedAt, record.ID)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(record); err != nil {
		return fmt.Errorf("encode outcome record: %w", err)
	}
	if _, err := r.store.Put(ctx, key, &buf, int64(buf.Len()), storage.PutOptions{ContentType: "application/json"}); err != nil {
		return fmt.Errorf("archive outcome: %w", err)
	}
	r.logger.DebugContext(ctx, "outcome_archived", slog.String("key", key), slog.String("status", record.Status))
	return nil
}
