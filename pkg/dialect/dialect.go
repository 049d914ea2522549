// Package dialect генерирует SQL для конкретных СУБД.
//
// Базовая реализация Generic содержит общий алгоритм построения DDL/DML,
// маппинг типов и форматирование литералов. Диалект конкретной СУБД
// встраивает Generic (или другой диалект), вызывает Bind(self) и
// переопределяет только отличающиеся методы, явно делегируя остальное
// встроенной реализации.
//
// Диалекты регистрируются в фабрике в init() своих пакетов:
//
//	import _ "github.com/ruslano69/tdtp-sink/pkg/dialect/timescale"
//
//	d, err := dialect.New("timescale", dialect.Config{TimeZone: time.UTC})
package dialect

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/ruslano69/tdtp-sink/pkg/core/schema"
)

var (
	// ErrUpsertUnsupported - диалект не умеет upsert
	ErrUpsertUnsupported = errors.New("upsert is not supported by this dialect")

	// ErrUnsupportedType - тип поля нельзя сохранить в колонку
	ErrUnsupportedType = errors.New("unsupported column type")
)

// Conn - минимальный интерфейс выполнения SQL.
// Реализуется *sql.Tx, *sql.Conn и *sql.DB.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Dialect - полный контракт генерации SQL для одной СУБД
type Dialect interface {
	// Name возвращает имя диалекта в фабрике
	Name() string
	// DriverName возвращает имя database/sql драйвера
	DriverName() string

	ParseTableID(fqn string) TableID
	ExpressionBuilder() *ExpressionBuilder

	// BuildCreateTableStatements возвращает упорядоченный набор DDL
	// для создания таблицы (пустой - создание пропускается)
	BuildCreateTableStatements(table TableID, fields []SinkRecordField) ([]string, error)
	BuildCreateTableStatement(table TableID, fields []SinkRecordField) (string, error)
	BuildAlterTable(table TableID, fields []SinkRecordField) ([]string, error)

	// Параметры DML привязываются в порядке: для INSERT/UPSERT - ключи, затем
	// остальные колонки; для UPDATE - остальные колонки, затем ключи; для DELETE - ключи.
	BuildInsertStatement(table TableID, keyColumns, nonKeyColumns []string) string
	BuildUpsertStatement(table TableID, keyColumns, nonKeyColumns []string) (string, error)
	BuildUpdateStatement(table TableID, keyColumns, nonKeyColumns []string) string
	BuildDeleteStatement(table TableID, keyColumns []string) string

	// SQLType возвращает тип колонки для поля
	SQLType(field SinkRecordField) (string, error)
	// FormatColumnValue пишет значение как SQL литерал
	FormatColumnValue(b *ExpressionBuilder, logical schema.LogicalType, params map[string]string, typ schema.Type, value any) error

	// ApplyDDLStatements выполняет DDL по порядку, останавливаясь на первой ошибке
	ApplyDDLStatements(ctx context.Context, conn Conn, statements []string) error
	// DescribeTable читает метаданные таблицы; nil если таблицы нет
	DescribeTable(ctx context.Context, conn Conn, table TableID) (*TableDefinition, error)

	// BindValue приводит значение поля к аргументу драйвера
	BindValue(field SinkRecordField, value any) (any, error)
}

// Config - конфигурация экземпляра диалекта
type Config struct {
	// QuoteIdentifiers - always (по умолчанию) или never
	QuoteIdentifiers QuoteMethod
	// TimeZone для форматирования и привязки временных значений (UTC по умолчанию)
	TimeZone *time.Location
}

func (c Config) location() *time.Location {
	if c.TimeZone == nil {
		return time.UTC
	}
	return c.TimeZone
}

// TableID - идентификатор таблицы; используется как ключ map
type TableID struct {
	Catalog string
	Schema  string
	Name    string
}

// String возвращает имя без кавычек через точку
func (t TableID) String() string {
	parts := make([]string, 0, 3)
	if t.Catalog != "" {
		parts = append(parts, t.Catalog)
	}
	if t.Schema != "" {
		parts = append(parts, t.Schema)
	}
	parts = append(parts, t.Name)
	return strings.Join(parts, ".")
}

// SinkRecordField - колонка, выведенная из поля записи
type SinkRecordField struct {
	Name         string
	Schema       *schema.Schema
	IsPrimaryKey bool
}

func (f SinkRecordField) Type() schema.Type           { return f.Schema.Type }
func (f SinkRecordField) Logical() schema.LogicalType { return f.Schema.Logical }
func (f SinkRecordField) Params() map[string]string   { return f.Schema.Params }
func (f SinkRecordField) DefaultValue() any           { return f.Schema.Default }

// IsOptional - первичный ключ никогда не бывает NULL
func (f SinkRecordField) IsOptional() bool {
	return !f.IsPrimaryKey && f.Schema.Optional
}

// ColumnDefinition - колонка существующей таблицы
type ColumnDefinition struct {
	Name     string
	TypeName string
	Nullable bool
}

// TableDefinition - метаданные существующей таблицы
type TableDefinition struct {
	ID      TableID
	Columns []ColumnDefinition
}

// Column ищет колонку без учета регистра
func (t *TableDefinition) Column(name string) (ColumnDefinition, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ColumnDefinition{}, false
}
