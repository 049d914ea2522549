// Package timescale реализует диалект TimescaleDB поверх PostgreSQL.
//
// Отличия от PostgreSQL: таблица создается только при наличии колонки
// времени и сразу превращается в hypertable, метки времени хранятся
// как TIMESTAMPTZ.
package timescale

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-sink/pkg/core/schema"
	"github.com/ruslano69/tdtp-sink/pkg/dialect"
	"github.com/ruslano69/tdtp-sink/pkg/dialect/postgres"
)

const (
	// Name - имя диалекта в фабрике
	Name = "timescale"

	// TimeColumn - колонка партиционирования hypertable (без учета регистра)
	TimeColumn = "time"
	// ChunkTimeInterval - интервал чанка hypertable
	ChunkTimeInterval = "1 day"
	// TimestamptzFormat - литерал TIMESTAMPTZ с миллисекундами и смещением
	TimestamptzFormat = "2006-01-02 15:04:05.000Z07:00"

	hypertableWarning = "A result was returned when none was expected"
)

func init() {
	dialect.Register(Name, func(cfg dialect.Config) dialect.Dialect {
		return New(cfg)
	})
}

// Dialect - диалект TimescaleDB
type Dialect struct {
	*postgres.Dialect
}

var _ dialect.Dialect = (*Dialect)(nil)

// New создает диалект TimescaleDB
func New(cfg dialect.Config) *Dialect {
	s := postgres.Settings()
	s.Name = Name
	d := &Dialect{Dialect: postgres.NewWithSettings(s, cfg)}
	d.Bind(d)
	return d
}

// IsHypertableWarning сообщает, что ошибка - известный безвредный результат
// create_hypertable (драйвер не ожидал result set от DDL).
// Единственное место, зависящее от текста сообщения драйвера.
func IsHypertableWarning(err error) bool {
	return err != nil && strings.Contains(err.Error(), hypertableWarning)
}

// BuildCreateTableStatements строит CREATE SCHEMA, CREATE TABLE и create_hypertable.
// Без колонки времени возвращает пустой набор: таблица не создается.
func (d *Dialect) BuildCreateTableStatements(table dialect.TableID, fields []dialect.SinkRecordField) ([]string, error) {
	var stmts []string
	if table.Schema != "" {
		stmts = append(stmts, d.BuildCreateSchemaStatement(table))
	}

	timeField, ok := findTimeField(fields)
	if !ok {
		log.Warn().Str("table", table.String()).Msg("Time column is not present. Skipping hypertable creation")
		return []string{}, nil
	}

	create, err := d.Dialect.BuildCreateTableStatement(table, fields)
	if err != nil {
		return nil, err
	}
	stmts = append(stmts, create, d.BuildCreateHypertableStatement(table, timeField.Name))
	return stmts, nil
}

// BuildCreateSchemaStatement строит CREATE SCHEMA IF NOT EXISTS
func (d *Dialect) BuildCreateSchemaStatement(table dialect.TableID) string {
	b := d.ExpressionBuilder()
	b.Append("CREATE SCHEMA IF NOT EXISTS ").AppendIdentifier(table.Schema)
	return b.String()
}

// BuildCreateHypertableStatement строит вызов create_hypertable
func (d *Dialect) BuildCreateHypertableStatement(table dialect.TableID, timeColumn string) string {
	tableName := d.ExpressionBuilder().AppendTable(table).String()

	b := d.ExpressionBuilder()
	b.Append("SELECT create_hypertable(").AppendQuotedLiteral(tableName)
	b.Append(", ").AppendQuotedLiteral(timeColumn)
	b.Append(", migrate_data => TRUE, chunk_time_interval => INTERVAL ").AppendQuotedLiteral(ChunkTimeInterval)
	b.Append(");")
	return b.String()
}

func findTimeField(fields []dialect.SinkRecordField) (dialect.SinkRecordField, bool) {
	for _, f := range fields {
		if strings.EqualFold(f.Name, TimeColumn) {
			return f, true
		}
	}
	return dialect.SinkRecordField{}, false
}

// SQLType - Timestamp хранится как TIMESTAMPTZ
func (d *Dialect) SQLType(f dialect.SinkRecordField) (string, error) {
	if f.Logical() == schema.LogicalTimestamp {
		return "TIMESTAMPTZ", nil
	}
	return d.Dialect.SQLType(f)
}

// FormatColumnValue - Timestamp как литерал TIMESTAMPTZ в часовом поясе диалекта
func (d *Dialect) FormatColumnValue(b *dialect.ExpressionBuilder, logical schema.LogicalType, params map[string]string, typ schema.Type, value any) error {
	if logical == schema.LogicalTimestamp {
		if t, ok := value.(time.Time); ok {
			b.AppendQuotedLiteral(t.In(d.Location()).Format(TimestamptzFormat))
			return nil
		}
	}
	return d.Dialect.FormatColumnValue(b, logical, params, typ, value)
}

// ApplyDDLStatements выполняет DDL по одному, пропуская ошибку IsHypertableWarning.
// Остальные ошибки драйвера возвращаются без обертки.
func (d *Dialect) ApplyDDLStatements(ctx context.Context, conn dialect.Conn, statements []string) error {
	for _, stmt := range statements {
		log.Debug().Str("dialect", d.Name()).Str("sql", stmt).Msg("Executing DDL")
		_, err := conn.ExecContext(ctx, stmt)
		if err == nil {
			continue
		}
		if !IsHypertableWarning(err) {
			return err
		}
		log.Debug().Str("sql", stmt).Msg("Ignoring result returned by hypertable DDL")
	}
	return nil
}
