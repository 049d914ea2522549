package etl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-sink/pkg/brokers"
	"github.com/ruslano69/tdtp-sink/pkg/core/record"
	"github.com/ruslano69/tdtp-sink/pkg/dialect"
	"github.com/ruslano69/tdtp-sink/pkg/resultlog"
	"github.com/ruslano69/tdtp-sink/pkg/retry"
	"github.com/ruslano69/tdtp-sink/pkg/sink"
	"github.com/ruslano69/tdtp-sink/pkg/transforms"
)

// Publisher публикует результат каждого батча
type Publisher interface {
	Publish(ctx context.Context, result resultlog.BatchResult) error
}

// ProcessorStats представляет статистику работы sink
type ProcessorStats struct {
	StartTime      time.Time `json:"start_time"`
	Batches        int       `json:"batches"`
	FailedBatches  int       `json:"failed_batches"`
	RecordsWritten int       `json:"records_written"`
	LastBatch      time.Time `json:"last_batch,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
}

// Processor читает батчи из источника, преобразует их и записывает в базу.
// Offset батча подтверждается только после commit транзакции.
type Processor struct {
	config    *SinkConfig
	source    brokers.Source
	converter record.JSONConverter
	chain     transforms.Chain
	task      *sink.Task
	publisher Publisher

	mu    sync.Mutex
	stats ProcessorStats
}

// NewProcessor создает процессор из готовых компонентов. publisher может быть nil.
func NewProcessor(config *SinkConfig, source brokers.Source, task *sink.Task, publisher Publisher) (*Processor, error) {
	chain, err := transforms.NewChain(config.Transforms)
	if err != nil {
		return nil, err
	}

	return &Processor{
		config:    config,
		source:    source,
		converter: record.JSONConverter{SchemasEnabled: config.Source.SchemasEnable},
		chain:     chain,
		task:      task,
		publisher: publisher,
	}, nil
}

// Build собирает процессор по конфигурации: диалект, соединение, task,
// источник и (если включен) Redis publisher
func Build(config *SinkConfig) (*Processor, error) {
	dcfg, err := config.DialectConfig()
	if err != nil {
		return nil, err
	}
	d, err := dialect.New(config.Connection.Dialect, dcfg)
	if err != nil {
		return nil, err
	}

	wc := config.WriterConfig()
	provider, err := sink.NewConnectionProvider(
		sink.SQLOpener(d.DriverName(), config.Connection.URL),
		wc.ConnectionAttempts,
		wc.ConnectionBackoff,
	)
	if err != nil {
		return nil, err
	}

	task, err := sink.NewTask(sink.NewWriter(wc, d, provider, nil), wc, retry.DLQConfig{
		Enabled:  config.DLQ.Enabled,
		FilePath: config.DLQ.FilePath,
		MaxSize:  config.DLQ.MaxSize,
	})
	if err != nil {
		return nil, err
	}

	source, err := brokers.New(config.Source.Config)
	if err != nil {
		return nil, err
	}

	var publisher Publisher
	if config.ResultLog.Enabled {
		publisher = resultlog.NewRedisPublisher(config.ResultLog)
	}

	return NewProcessor(config, source, task, publisher)
}

// Run обрабатывает батчи до отмены ctx или первой ошибки записи.
// Отмена ctx - штатное завершение (nil).
func (p *Processor) Run(ctx context.Context) error {
	p.mu.Lock()
	p.stats.StartTime = time.Now()
	p.mu.Unlock()

	if err := p.source.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", p.source.Type(), err)
	}
	defer p.close()

	log.Info().
		Str("sink", p.config.Name).
		Str("source", p.source.Type()).
		Str("dialect", p.config.Connection.Dialect).
		Msg("Sink started")

	for {
		if ctx.Err() != nil {
			return nil
		}

		msgs, err := p.source.Poll(ctx, p.config.Source.PollRecords, p.config.Source.PollWait)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to poll %s: %w", p.source.Type(), err)
		}
		if len(msgs) == 0 {
			continue
		}

		if err := p.processBatch(ctx, msgs); err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (p *Processor) processBatch(ctx context.Context, msgs []brokers.Message) error {
	started := time.Now()
	p.mu.Lock()
	p.stats.Batches++
	p.mu.Unlock()

	var summary sink.Summary
	records, err := p.decode(msgs)
	if err == nil {
		summary, err = p.task.Put(ctx, records)
	}
	p.publish(ctx, resultlog.NewBatchResult(batchRefs(msgs), summary.Tables, started, err))
	if err != nil {
		p.mu.Lock()
		p.stats.FailedBatches++
		p.stats.LastError = err.Error()
		p.mu.Unlock()
		return fmt.Errorf("failed to write batch: %w", err)
	}

	if err := p.source.Commit(ctx, msgs); err != nil {
		return err
	}
	p.mu.Lock()
	p.stats.RecordsWritten += len(records)
	p.stats.LastBatch = time.Now()
	p.mu.Unlock()

	log.Info().
		Int("records", len(records)).
		Dur("duration", time.Since(started)).
		Msg("Batch written")
	return nil
}

func batchRefs(msgs []brokers.Message) []retry.BatchRef {
	coords := make([]record.SinkRecord, len(msgs))
	for i, m := range msgs {
		coords[i] = record.SinkRecord{Topic: m.Topic, Partition: m.Partition, Offset: m.Offset}
	}
	return sink.BatchRefs(coords)
}

// decode превращает сообщения в записи и применяет преобразования
func (p *Processor) decode(msgs []brokers.Message) ([]record.SinkRecord, error) {
	records := make([]record.SinkRecord, 0, len(msgs))
	for _, m := range msgs {
		rec := record.SinkRecord{
			Topic:     m.Topic,
			Partition: m.Partition,
			Offset:    m.Offset,
			Timestamp: m.Time,
		}
		if rec.Timestamp.IsZero() {
			rec.Timestamp = time.Now()
		}

		var err error
		if len(m.Key) > 0 {
			rec.KeySchema, rec.Key, err = p.converter.ToConnectData(m.Topic, m.Key)
			if err != nil {
				return nil, fmt.Errorf("failed to decode key of %s: %w", rec, err)
			}
		}
		rec.ValueSchema, rec.Value, err = p.converter.ToConnectData(m.Topic, m.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to decode value of %s: %w", rec, err)
		}

		rec, err = p.chain.Apply(rec)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (p *Processor) publish(ctx context.Context, result resultlog.BatchResult) {
	if p.publisher == nil {
		return
	}
	result.SinkName = p.config.Name
	if err := p.publisher.Publish(ctx, result); err != nil {
		log.Warn().Err(err).Str("batch", result.ID).Msg("Failed to publish batch result")
	}
}

func (p *Processor) close() {
	if err := p.task.Stop(); err != nil {
		log.Warn().Err(err).Msg("Failed to save DLQ")
	}
	if err := p.source.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close source")
	}
	if c, ok := p.publisher.(interface{ Close() error }); ok {
		c.Close()
	}
}

// GetStats возвращает статистику работы
func (p *Processor) GetStats() ProcessorStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Ping проверяет доступность источника
func (p *Processor) Ping(ctx context.Context) error {
	return p.source.Ping(ctx)
}

// GetConfig возвращает конфигурацию процессора
func (p *Processor) GetConfig() *SinkConfig {
	return p.config
}
