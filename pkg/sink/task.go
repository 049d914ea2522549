package sink

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-sink/pkg/core/record"
	"github.com/ruslano69/tdtp-sink/pkg/metrics"
	"github.com/ruslano69/tdtp-sink/pkg/retry"
)

// Task повторяет запись батча после retryable ошибок.
// Батчи, не записанные после всех попыток, попадают в DLQ (если включен).
type Task struct {
	writer  *Writer
	retryer *retry.Retryer
}

// NewTask создает Task поверх Writer
func NewTask(w *Writer, cfg Config, dlq retry.DLQConfig) (*Task, error) {
	rc := retry.NewConfig(cfg.MaxRetries+1, cfg.RetryBackoff)
	rc.ShouldRetry = IsRetryable
	rc.DLQ = dlq
	rc.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_retries", cfg.MaxRetries).
			Dur("backoff", delay).
			Msg("Batch write failed, retrying")
		metrics.IncRetry()
		w.CloseQuietly()
	}

	retryer, err := retry.New(rc)
	if err != nil {
		return nil, err
	}
	return &Task{writer: w, retryer: retryer}, nil
}

// Put записывает батч с повторами
func (t *Task) Put(ctx context.Context, records []record.SinkRecord) (Summary, error) {
	if len(records) == 0 {
		return Summary{Tables: map[string]int{}}, nil
	}

	var summary Summary
	err := t.retryer.DoBatch(ctx, func(ctx context.Context) error {
		s, err := t.writer.Write(ctx, records)
		if err != nil {
			return err
		}
		summary = s
		return nil
	}, BatchRefs(records))
	if err != nil {
		return Summary{}, err
	}
	return summary, nil
}

// DLQ возвращает очередь неудавшихся батчей или nil
func (t *Task) DLQ() *retry.DLQ {
	return t.retryer.DLQ()
}

// Stop закрывает соединение и сохраняет DLQ
func (t *Task) Stop() error {
	t.writer.CloseQuietly()
	return t.retryer.Close()
}

// BatchRefs группирует записи батча по topic/partition с диапазонами offset
func BatchRefs(records []record.SinkRecord) []retry.BatchRef {
	type tp struct {
		topic     string
		partition int
	}
	refs := make(map[tp]*retry.BatchRef)
	for _, rec := range records {
		k := tp{rec.Topic, rec.Partition}
		ref, ok := refs[k]
		if !ok {
			refs[k] = &retry.BatchRef{
				Topic:       rec.Topic,
				Partition:   rec.Partition,
				FirstOffset: rec.Offset,
				LastOffset:  rec.Offset,
				Records:     1,
			}
			continue
		}
		ref.FirstOffset = min(ref.FirstOffset, rec.Offset)
		ref.LastOffset = max(ref.LastOffset, rec.Offset)
		ref.Records++
	}

	out := make([]retry.BatchRef, 0, len(refs))
	for _, ref := range refs {
		out = append(out, *ref)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Topic != out[j].Topic {
			return out[i].Topic < out[j].Topic
		}
		return out[i].Partition < out[j].Partition
	})
	return out
}
