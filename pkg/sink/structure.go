package sink

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-sink/pkg/dialect"
	"github.com/ruslano69/tdtp-sink/pkg/metrics"
)

// Reconciler готовит таблицу назначения к записи полей
type Reconciler interface {
	EnsureTableReady(ctx context.Context, conn dialect.Conn, table dialect.TableID, fields []dialect.SinkRecordField) error
}

// DbStructure создает отсутствующие таблицы и добавляет отсутствующие колонки
type DbStructure struct {
	dialect    dialect.Dialect
	autoCreate bool
	autoEvolve bool
}

// NewDbStructure создает DbStructure
func NewDbStructure(d dialect.Dialect, autoCreate, autoEvolve bool) *DbStructure {
	return &DbStructure{dialect: d, autoCreate: autoCreate, autoEvolve: autoEvolve}
}

// EnsureTableReady проверяет таблицу и при необходимости выполняет DDL.
// Все ошибки возвращаются как *TableAlterOrCreateError.
func (s *DbStructure) EnsureTableReady(ctx context.Context, conn dialect.Conn, table dialect.TableID, fields []dialect.SinkRecordField) error {
	def, err := s.dialect.DescribeTable(ctx, conn, table)
	if err != nil {
		return &TableAlterOrCreateError{Table: table, Msg: "failed to read table metadata", Err: err}
	}

	if def == nil {
		return s.create(ctx, conn, table, fields)
	}
	return s.amend(ctx, conn, def, fields)
}

func (s *DbStructure) create(ctx context.Context, conn dialect.Conn, table dialect.TableID, fields []dialect.SinkRecordField) error {
	if !s.autoCreate {
		return &TableAlterOrCreateError{Table: table, Msg: "table is missing and auto-create is disabled"}
	}

	stmts, err := s.dialect.BuildCreateTableStatements(table, fields)
	if err != nil {
		return &TableAlterOrCreateError{Table: table, Msg: "failed to build CREATE TABLE", Err: err}
	}
	if len(stmts) == 0 {
		return &TableAlterOrCreateError{
			Table: table,
			Msg:   fmt.Sprintf("dialect %s produced no DDL for the table", s.dialect.Name()),
		}
	}

	log.Info().
		Str("table", table.String()).
		Int("statements", len(stmts)).
		Msg("Creating table")

	if err := s.dialect.ApplyDDLStatements(ctx, conn, stmts); err != nil {
		return &TableAlterOrCreateError{Table: table, Msg: "failed to create table", Err: err}
	}
	metrics.AddDDLStatements(s.dialect.Name(), len(stmts))

	def, err := s.dialect.DescribeTable(ctx, conn, table)
	if err != nil {
		return &TableAlterOrCreateError{Table: table, Msg: "failed to read table metadata after create", Err: err}
	}
	if def == nil {
		return &TableAlterOrCreateError{Table: table, Msg: "table is still missing after create"}
	}
	return nil
}

func (s *DbStructure) amend(ctx context.Context, conn dialect.Conn, def *dialect.TableDefinition, fields []dialect.SinkRecordField) error {
	var missing []dialect.SinkRecordField
	for _, f := range fields {
		if _, ok := def.Column(f.Name); !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	names := make([]string, len(missing))
	for i, f := range missing {
		names[i] = f.Name
	}

	if !s.autoEvolve {
		return &TableAlterOrCreateError{
			Table: def.ID,
			Msg:   fmt.Sprintf("table is missing columns [%s] and auto-evolve is disabled", strings.Join(names, ", ")),
		}
	}

	for _, f := range missing {
		if !f.IsOptional() && f.DefaultValue() == nil {
			return &TableAlterOrCreateError{
				Table: def.ID,
				Msg:   fmt.Sprintf("cannot add required column %s without a default value", f.Name),
			}
		}
	}

	stmts, err := s.dialect.BuildAlterTable(def.ID, missing)
	if err != nil {
		return &TableAlterOrCreateError{Table: def.ID, Msg: "failed to build ALTER TABLE", Err: err}
	}

	log.Info().
		Str("table", def.ID.String()).
		Strs("columns", names).
		Msg("Adding columns")

	if err := s.dialect.ApplyDDLStatements(ctx, conn, stmts); err != nil {
		return &TableAlterOrCreateError{Table: def.ID, Msg: "failed to alter table", Err: err}
	}
	metrics.AddDDLStatements(s.dialect.Name(), len(stmts))
	return nil
}
