package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-sink/pkg/core/record"
	"github.com/ruslano69/tdtp-sink/pkg/dialect"
	"github.com/ruslano69/tdtp-sink/pkg/metrics"
)

// Summary - итог успешно зафиксированного батча
type Summary struct {
	Records int
	// Tables - число записей по таблицам назначения
	Tables map[string]int
}

// Writer записывает батч записей атомарно: все таблицы батча в одной транзакции
type Writer struct {
	cfg       Config
	dialect   dialect.Dialect
	resolver  *Resolver
	structure Reconciler
	provider  *ConnectionProvider
}

// NewWriter создает Writer. structure == nil - сверка через DbStructure по cfg.
func NewWriter(cfg Config, d dialect.Dialect, provider *ConnectionProvider, structure Reconciler) *Writer {
	if structure == nil {
		structure = NewDbStructure(d, cfg.AutoCreate, cfg.AutoEvolve)
	}
	return &Writer{
		cfg:       cfg,
		dialect:   d,
		resolver:  NewResolver(cfg.TableNameFormat, cfg.SchemaNameFormat, d),
		structure: structure,
		provider:  provider,
	}
}

// Write записывает батч. При ошибке транзакция откатывается и в базе
// не остается ни одной записи батча. Ошибка отката возвращается вместе
// с исходной ошибкой.
func (w *Writer) Write(ctx context.Context, records []record.SinkRecord) (Summary, error) {
	if len(records) == 0 {
		return Summary{Tables: map[string]int{}}, nil
	}

	start := time.Now()

	conn, err := w.provider.Connection(ctx)
	if err != nil {
		return Summary{}, err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		w.provider.Invalidate()
		return Summary{}, &ConnectionError{Attempts: 1, Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}

	buffers := make(map[dialect.TableID]*BufferedRecords)
	summary, err := w.writeBatch(ctx, tx, records, buffers)
	if err != nil {
		return Summary{}, w.rollback(tx, buffers, err, start)
	}

	if err := tx.Commit(); err != nil {
		metrics.ObserveBatch(metrics.StatusRolledBack, time.Since(start))
		return Summary{}, &WriteError{Err: fmt.Errorf("failed to commit transaction: %w", err)}
	}

	metrics.ObserveBatch(metrics.StatusCommitted, time.Since(start))
	for table, n := range summary.Tables {
		metrics.AddRecordsWritten(table, n)
	}

	log.Debug().
		Int("records", summary.Records).
		Int("tables", len(summary.Tables)).
		Dur("duration", time.Since(start)).
		Msg("Batch committed")

	return summary, nil
}

func (w *Writer) writeBatch(ctx context.Context, tx *sql.Tx, records []record.SinkRecord, buffers map[dialect.TableID]*BufferedRecords) (Summary, error) {
	for _, rec := range records {
		table, err := w.resolver.Resolve(rec)
		if err != nil {
			return Summary{}, err
		}

		buf, ok := buffers[table]
		if !ok {
			buf = NewBufferedRecords(w.cfg, table, w.dialect, w.structure, tx)
			buffers[table] = buf
		}
		if err := buf.Add(ctx, rec); err != nil {
			return Summary{}, err
		}
	}

	summary := Summary{Tables: make(map[string]int, len(buffers))}
	for table, buf := range buffers {
		if err := buf.Flush(ctx); err != nil {
			return Summary{}, err
		}
		if err := buf.Close(); err != nil {
			return Summary{}, &WriteError{Table: table, Err: fmt.Errorf("failed to close statements: %w", err)}
		}
		summary.Tables[table.String()] += buf.Written()
		summary.Records += buf.Written()
	}
	return summary, nil
}

// rollback откатывает транзакцию. sql.ErrTxDone означает, что database/sql
// уже откатил ее при отмене контекста.
func (w *Writer) rollback(tx *sql.Tx, buffers map[dialect.TableID]*BufferedRecords, cause error, start time.Time) error {
	for _, buf := range buffers {
		if err := buf.Close(); err != nil {
			log.Debug().Err(err).Str("table", buf.Table().String()).Msg("Failed to close buffer")
		}
	}

	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Error().Err(err).AnErr("cause", cause).Msg("Failed to roll back batch transaction")
		metrics.ObserveBatch(metrics.StatusRollbackFailed, time.Since(start))
		w.provider.Invalidate()
		return errors.Join(cause, &RollbackError{Err: err})
	}

	log.Warn().Err(cause).Msg("Batch rolled back")
	metrics.ObserveBatch(metrics.StatusRolledBack, time.Since(start))
	return cause
}

// Close закрывает кэшированное соединение
func (w *Writer) Close() error {
	return w.provider.Close()
}

// CloseQuietly закрывает соединение, ошибки только логируются
func (w *Writer) CloseQuietly() {
	if err := w.provider.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close database connection")
	}
}
