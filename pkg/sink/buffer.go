package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-sink/pkg/core/record"
	"github.com/ruslano69/tdtp-sink/pkg/core/schema"
	"github.com/ruslano69/tdtp-sink/pkg/dialect"
)

type bufferState int

const (
	stateEmpty bufferState = iota
	stateAccumulating
	stateFlushed
	stateClosed
)

// ErrBufferClosed - запись в закрытый буфер
var ErrBufferClosed = errors.New("buffer is closed")

// BufferedRecords накапливает записи одной таблицы в рамках одного батча.
//
// Все операции идут через одну транзакцию conn. Смена схемы записи
// сбрасывает накопленное и заново сверяет таблицу.
type BufferedRecords struct {
	table     dialect.TableID
	cfg       Config
	dialect   dialect.Dialect
	structure Reconciler
	conn      dialect.Conn

	state       bufferState
	keySchema   *schema.Schema
	valueSchema *schema.Schema
	fields      *FieldsMetadata
	records     []record.SinkRecord
	written     int

	upsertStmt *sql.Stmt
	deleteStmt *sql.Stmt
}

// NewBufferedRecords создает пустой буфер таблицы
func NewBufferedRecords(cfg Config, table dialect.TableID, d dialect.Dialect, structure Reconciler, conn dialect.Conn) *BufferedRecords {
	return &BufferedRecords{
		table:     table,
		cfg:       cfg,
		dialect:   d,
		structure: structure,
		conn:      conn,
	}
}

// Add добавляет запись. При смене схемы буфер сначала сбрасывается,
// затем таблица сверяется с новыми полями.
func (b *BufferedRecords) Add(ctx context.Context, rec record.SinkRecord) error {
	if b.state == stateClosed {
		return ErrBufferClosed
	}

	if rec.IsTombstone() {
		if !b.cfg.DeleteEnabled {
			return &RecordError{Record: rec.String(), Err: fmt.Errorf("tombstone record but delete is disabled")}
		}
	} else if rec.ValueSchema == nil {
		return &RecordError{Record: rec.String(), Err: fmt.Errorf("record value has no schema")}
	}

	if b.schemaChanged(rec) {
		if err := b.Flush(ctx); err != nil {
			return err
		}
		if err := b.closeStatements(); err != nil {
			return &WriteError{Table: b.table, Err: err}
		}

		valueSchema := rec.ValueSchema
		if rec.IsTombstone() {
			valueSchema = b.valueSchema
		}
		fields, err := ExtractFields(b.cfg, rec.KeySchema, valueSchema)
		if err != nil {
			return &RecordError{Record: rec.String(), Err: err}
		}
		if err := b.structure.EnsureTableReady(ctx, b.conn, b.table, fields.AllFields()); err != nil {
			return err
		}

		b.keySchema = rec.KeySchema
		b.valueSchema = valueSchema
		b.fields = fields
	}

	b.records = append(b.records, rec)
	b.state = stateAccumulating

	if b.cfg.BatchSize > 0 && len(b.records) >= b.cfg.BatchSize {
		return b.Flush(ctx)
	}
	return nil
}

func (b *BufferedRecords) schemaChanged(rec record.SinkRecord) bool {
	if b.fields == nil {
		return true
	}
	if !rec.KeySchema.Equal(b.keySchema) {
		return true
	}
	return !rec.IsTombstone() && !rec.ValueSchema.Equal(b.valueSchema)
}

// Flush выполняет накопленные записи в порядке поступления.
// Пустой буфер - no-op.
func (b *BufferedRecords) Flush(ctx context.Context) error {
	if b.state == stateClosed {
		return ErrBufferClosed
	}
	if len(b.records) == 0 {
		return nil
	}

	log.Debug().
		Str("table", b.table.String()).
		Int("records", len(b.records)).
		Msg("Flushing records")

	for _, rec := range b.records {
		if err := b.execute(ctx, rec); err != nil {
			return err
		}
	}

	b.written += len(b.records)
	b.records = nil
	b.state = stateFlushed
	return nil
}

func (b *BufferedRecords) execute(ctx context.Context, rec record.SinkRecord) error {
	if rec.IsTombstone() {
		stmt, err := b.prepareDelete(ctx)
		if err != nil {
			return &WriteError{Table: b.table, Err: err}
		}
		args, err := b.fields.KeyValues(rec, b.dialect)
		if err != nil {
			return &RecordError{Record: rec.String(), Err: err}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return &WriteError{Table: b.table, Record: rec.String(), Err: err}
		}
		return nil
	}

	stmt, err := b.prepareUpsert(ctx)
	if err != nil {
		return &WriteError{Table: b.table, Err: err}
	}
	args, err := b.bindArgs(rec)
	if err != nil {
		return &RecordError{Record: rec.String(), Err: err}
	}
	if _, err := stmt.ExecContext(ctx, args...); err != nil {
		return &WriteError{Table: b.table, Record: rec.String(), Err: err}
	}
	return nil
}

// bindArgs: insert/upsert - ключи, затем остальные; update - остальные, затем ключи
func (b *BufferedRecords) bindArgs(rec record.SinkRecord) ([]any, error) {
	keys, err := b.fields.KeyValues(rec, b.dialect)
	if err != nil {
		return nil, err
	}
	nonKeys, err := b.fields.NonKeyValues(rec, b.dialect)
	if err != nil {
		return nil, err
	}
	if b.cfg.InsertMode == InsertModeUpdate {
		return append(nonKeys, keys...), nil
	}
	return append(keys, nonKeys...), nil
}

func (b *BufferedRecords) prepareUpsert(ctx context.Context) (*sql.Stmt, error) {
	if b.upsertStmt != nil {
		return b.upsertStmt, nil
	}

	keyCols, nonKeyCols := b.fields.KeyColumns(), b.fields.NonKeyColumns()

	var query string
	switch b.cfg.InsertMode {
	case InsertModeUpsert:
		q, err := b.dialect.BuildUpsertStatement(b.table, keyCols, nonKeyCols)
		if err != nil {
			return nil, err
		}
		query = q
	case InsertModeUpdate:
		query = b.dialect.BuildUpdateStatement(b.table, keyCols, nonKeyCols)
	default:
		query = b.dialect.BuildInsertStatement(b.table, keyCols, nonKeyCols)
	}

	stmt, err := b.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare %q: %w", query, err)
	}
	b.upsertStmt = stmt
	return stmt, nil
}

func (b *BufferedRecords) prepareDelete(ctx context.Context) (*sql.Stmt, error) {
	if b.deleteStmt != nil {
		return b.deleteStmt, nil
	}

	query := b.dialect.BuildDeleteStatement(b.table, b.fields.KeyColumns())
	stmt, err := b.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare %q: %w", query, err)
	}
	b.deleteStmt = stmt
	return stmt, nil
}

func (b *BufferedRecords) closeStatements() error {
	var errs []error
	if b.upsertStmt != nil {
		errs = append(errs, b.upsertStmt.Close())
		b.upsertStmt = nil
	}
	if b.deleteStmt != nil {
		errs = append(errs, b.deleteStmt.Close())
		b.deleteStmt = nil
	}
	return errors.Join(errs...)
}

// Close освобождает подготовленные выражения. Повторный вызов - no-op.
// Несброшенные записи отбрасываются.
func (b *BufferedRecords) Close() error {
	if b.state == stateClosed {
		return nil
	}
	if len(b.records) > 0 {
		log.Warn().
			Str("table", b.table.String()).
			Int("records", len(b.records)).
			Msg("Closing buffer with unflushed records")
	}
	b.records = nil
	b.state = stateClosed
	return b.closeStatements()
}

// Table возвращает таблицу буфера
func (b *BufferedRecords) Table() dialect.TableID { return b.table }

// Written - число записей, выполненных в транзакции
func (b *BufferedRecords) Written() int { return b.written }

// Pending - число записей, ожидающих Flush
func (b *BufferedRecords) Pending() int { return len(b.records) }
