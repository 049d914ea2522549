package dialect

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ruslano69/tdtp-sink/pkg/core/schema"
)

// Форматы литералов даты и времени
const (
	DateFormat      = "2006-01-02"
	TimeFormat      = "15:04:05.000"
	TimestampFormat = "2006-01-02 15:04:05.000"
)

// Settings - постоянные свойства СУБД для Generic
type Settings struct {
	Name   string
	Driver string
	Rules  Rules

	// CurrentSchema - SQL выражение схемы по умолчанию при чтении information_schema
	// (например current_schema()). Пустое - фильтр по схеме не применяется.
	CurrentSchema string

	// AddColumn - ключевое слово ALTER TABLE для новой колонки ("ADD" по умолчанию)
	AddColumn string
}

// Generic - базовый диалект.
//
// Общие алгоритмы (CREATE TABLE, ALTER TABLE, DML) вызывают SQLType,
// FormatColumnValue и ExpressionBuilder через self, поэтому переопределения
// производного диалекта, вызвавшего Bind, учитываются.
type Generic struct {
	self     Dialect
	settings Settings
	config   Config
}

var _ Dialect = (*Generic)(nil)

// NewGeneric создает базовый диалект
func NewGeneric(s Settings, cfg Config) *Generic {
	if s.AddColumn == "" {
		s.AddColumn = "ADD"
	}
	if cfg.QuoteIdentifiers == "" {
		cfg.QuoteIdentifiers = QuoteAlways
	}
	g := &Generic{settings: s, config: cfg}
	g.self = g
	return g
}

// Bind делает self диалектом, через который диспетчеризуются
// переопределяемые методы. Вызывается конструктором производного диалекта.
func (g *Generic) Bind(self Dialect) {
	g.self = self
}

// Name возвращает имя диалекта
func (g *Generic) Name() string { return g.settings.Name }

// DriverName возвращает имя драйвера database/sql
func (g *Generic) DriverName() string { return g.settings.Driver }

// Config возвращает конфигурацию диалекта
func (g *Generic) Config() Config { return g.config }

// Location возвращает часовой пояс для временных значений
func (g *Generic) Location() *time.Location { return g.config.location() }

// ExpressionBuilder создает builder с правилами СУБД
func (g *Generic) ExpressionBuilder() *ExpressionBuilder {
	return NewExpressionBuilder(g.settings.Rules, g.config.QuoteIdentifiers)
}

// ParseTableID разбирает "catalog.schema.table", "schema.table" или "table"
func (g *Generic) ParseTableID(fqn string) TableID {
	parts := strings.Split(fqn, ".")
	for i := range parts {
		parts[i] = g.unquote(strings.TrimSpace(parts[i]))
	}

	n := len(parts)
	switch n {
	case 1:
		return TableID{Name: parts[0]}
	case 2:
		return TableID{Schema: parts[0], Name: parts[1]}
	default:
		return TableID{
			Catalog: strings.Join(parts[:n-2], "."),
			Schema:  parts[n-2],
			Name:    parts[n-1],
		}
	}
}

func (g *Generic) unquote(s string) string {
	openQ, closeQ := g.settings.Rules.OpenQuote, g.settings.Rules.CloseQuote
	if openQ == "" || len(s) < len(openQ)+len(closeQ) {
		return s
	}
	if strings.HasPrefix(s, openQ) && strings.HasSuffix(s, closeQ) {
		return s[len(openQ) : len(s)-len(closeQ)]
	}
	return s
}

// BuildCreateTableStatements возвращает один CREATE TABLE
func (g *Generic) BuildCreateTableStatements(table TableID, fields []SinkRecordField) ([]string, error) {
	stmt, err := g.self.BuildCreateTableStatement(table, fields)
	if err != nil {
		return nil, err
	}
	return []string{stmt}, nil
}

// BuildCreateTableStatement строит CREATE TABLE с первичным ключом
func (g *Generic) BuildCreateTableStatement(table TableID, fields []SinkRecordField) (string, error) {
	b := g.self.ExpressionBuilder()
	b.Append("CREATE TABLE ").AppendTable(table).Append(" (\n")

	for i, f := range fields {
		if i > 0 {
			b.Append(",\n")
		}
		if err := g.writeColumnSpec(b, f); err != nil {
			return "", err
		}
	}

	var pks []string
	for _, f := range fields {
		if f.IsPrimaryKey {
			pks = append(pks, f.Name)
		}
	}
	if len(pks) > 0 {
		b.Append(",\nPRIMARY KEY(")
		b.AppendList(",", len(pks), func(i int) { b.AppendIdentifier(pks[i]) })
		b.Append(")")
	}

	b.Append(")")
	return b.String(), nil
}

// BuildAlterTable строит по одному ALTER TABLE на каждую новую колонку
func (g *Generic) BuildAlterTable(table TableID, fields []SinkRecordField) ([]string, error) {
	stmts := make([]string, 0, len(fields))
	for _, f := range fields {
		b := g.self.ExpressionBuilder()
		b.Append("ALTER TABLE ").AppendTable(table).Append(" " + g.settings.AddColumn + " ")
		if err := g.writeColumnSpec(b, f); err != nil {
			return nil, err
		}
		stmts = append(stmts, b.String())
	}
	return stmts, nil
}

// writeColumnSpec пишет "<name> <type> [DEFAULT <literal>] [NOT] NULL"
func (g *Generic) writeColumnSpec(b *ExpressionBuilder, f SinkRecordField) error {
	sqlType, err := g.self.SQLType(f)
	if err != nil {
		return err
	}
	b.AppendIdentifier(f.Name).Append(" ").Append(sqlType)

	if def := f.DefaultValue(); def != nil {
		b.Append(" DEFAULT ")
		if err := g.self.FormatColumnValue(b, f.Logical(), f.Params(), f.Type(), def); err != nil {
			return fmt.Errorf("failed to format default of column %s: %w", f.Name, err)
		}
	}

	if f.IsOptional() {
		b.Append(" NULL")
	} else {
		b.Append(" NOT NULL")
	}
	return nil
}

// BuildInsertStatement строит INSERT INTO t(k..., c...) VALUES(...)
func (g *Generic) BuildInsertStatement(table TableID, keyColumns, nonKeyColumns []string) string {
	cols := make([]string, 0, len(keyColumns)+len(nonKeyColumns))
	cols = append(cols, keyColumns...)
	cols = append(cols, nonKeyColumns...)

	b := g.self.ExpressionBuilder()
	b.Append("INSERT INTO ").AppendTable(table).Append("(")
	b.AppendList(",", len(cols), func(i int) { b.AppendIdentifier(cols[i]) })
	b.Append(") VALUES(")
	b.AppendList(",", len(cols), func(int) { b.AppendPlaceholder() })
	b.Append(")")
	return b.String()
}

// BuildUpsertStatement не поддерживается базовым диалектом
func (g *Generic) BuildUpsertStatement(table TableID, keyColumns, nonKeyColumns []string) (string, error) {
	return "", fmt.Errorf("%w: %s", ErrUpsertUnsupported, g.Name())
}

// BuildUpdateStatement строит UPDATE t SET c = ? ... WHERE k = ? AND ...
func (g *Generic) BuildUpdateStatement(table TableID, keyColumns, nonKeyColumns []string) string {
	b := g.self.ExpressionBuilder()
	b.Append("UPDATE ").AppendTable(table).Append(" SET ")
	b.AppendList(", ", len(nonKeyColumns), func(i int) {
		b.AppendIdentifier(nonKeyColumns[i]).Append(" = ").AppendPlaceholder()
	})
	if len(keyColumns) > 0 {
		b.Append(" WHERE ")
		g.appendKeyCondition(b, keyColumns)
	}
	return b.String()
}

// BuildDeleteStatement строит DELETE FROM t WHERE k = ? AND ...
func (g *Generic) BuildDeleteStatement(table TableID, keyColumns []string) string {
	b := g.self.ExpressionBuilder()
	b.Append("DELETE FROM ").AppendTable(table).Append(" WHERE ")
	g.appendKeyCondition(b, keyColumns)
	return b.String()
}

func (g *Generic) appendKeyCondition(b *ExpressionBuilder, keyColumns []string) {
	b.AppendList(" AND ", len(keyColumns), func(i int) {
		b.AppendIdentifier(keyColumns[i]).Append(" = ").AppendPlaceholder()
	})
}

// SQLType - ANSI маппинг типов
func (g *Generic) SQLType(f SinkRecordField) (string, error) {
	switch f.Logical() {
	case schema.LogicalDecimal:
		return "DECIMAL", nil
	case schema.LogicalDate:
		return "DATE", nil
	case schema.LogicalTime:
		return "TIME", nil
	case schema.LogicalTimestamp:
		return "TIMESTAMP", nil
	}

	switch f.Type() {
	case schema.TypeInt8:
		return "TINYINT", nil
	case schema.TypeInt16:
		return "SMALLINT", nil
	case schema.TypeInt32:
		return "INT", nil
	case schema.TypeInt64:
		return "BIGINT", nil
	case schema.TypeFloat32:
		return "FLOAT", nil
	case schema.TypeFloat64:
		return "DOUBLE", nil
	case schema.TypeBoolean:
		return "BOOLEAN", nil
	case schema.TypeString:
		return "TEXT", nil
	case schema.TypeBytes:
		return "BLOB", nil
	}

	return "", g.unsupported(f.Name, f.Type())
}

func (g *Generic) unsupported(name string, t schema.Type) error {
	return fmt.Errorf("%w: %s for column %s in %s dialect", ErrUnsupportedType, t, name, g.Name())
}

// FormatColumnValue пишет значение как SQL литерал
func (g *Generic) FormatColumnValue(b *ExpressionBuilder, logical schema.LogicalType, params map[string]string, typ schema.Type, value any) error {
	switch logical {
	case schema.LogicalDecimal:
		d, ok := value.(decimal.Decimal)
		if !ok {
			return fmt.Errorf("expected decimal value, got %T", value)
		}
		b.Append(d.String())
		return nil
	case schema.LogicalDate, schema.LogicalTime, schema.LogicalTimestamp:
		t, ok := value.(time.Time)
		if !ok {
			return fmt.Errorf("expected time value for %s, got %T", logical, value)
		}
		switch logical {
		case schema.LogicalDate:
			b.AppendQuotedLiteral(t.UTC().Format(DateFormat))
		case schema.LogicalTime:
			b.AppendQuotedLiteral(t.UTC().Format(TimeFormat))
		default:
			b.AppendQuotedLiteral(t.In(g.Location()).Format(TimestampFormat))
		}
		return nil
	}

	switch v := value.(type) {
	case int8, int16, int32, int64:
		b.Append(v)
	case float32:
		b.Append(strconv.FormatFloat(float64(v), 'g', -1, 32))
	case float64:
		b.Append(strconv.FormatFloat(v, 'g', -1, 64))
	case bool:
		if v {
			b.Append("1")
		} else {
			b.Append("0")
		}
	case string:
		b.AppendQuotedLiteral(v)
	case []byte:
		b.Append("x'" + hex.EncodeToString(v) + "'")
	default:
		return g.unsupported(fmt.Sprintf("<literal %T>", value), typ)
	}
	return nil
}

// ApplyDDLStatements выполняет DDL по порядку
func (g *Generic) ApplyDDLStatements(ctx context.Context, conn Conn, statements []string) error {
	for _, stmt := range statements {
		log.Debug().Str("dialect", g.Name()).Str("sql", stmt).Msg("Executing DDL")
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute DDL %q: %w", stmt, err)
		}
	}
	return nil
}

// DescribeTable читает колонки из information_schema.columns
func (g *Generic) DescribeTable(ctx context.Context, conn Conn, table TableID) (*TableDefinition, error) {
	var args []any
	b := g.self.ExpressionBuilder()
	b.Append("SELECT column_name, data_type, is_nullable FROM information_schema.columns WHERE ")
	switch {
	case table.Schema != "":
		b.Append("table_schema = ").AppendPlaceholder().Append(" AND ")
		args = append(args, table.Schema)
	case g.settings.CurrentSchema != "":
		b.Append("table_schema = " + g.settings.CurrentSchema + " AND ")
	}
	b.Append("table_name = ").AppendPlaceholder().Append(" ORDER BY ordinal_position")
	args = append(args, table.Name)

	rows, err := conn.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", table, err)
	}
	defer rows.Close()

	def := &TableDefinition{ID: table}
	for rows.Next() {
		var name, typeName, nullable string
		if err := rows.Scan(&name, &typeName, &nullable); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		def.Columns = append(def.Columns, ColumnDefinition{
			Name:     name,
			TypeName: typeName,
			Nullable: strings.EqualFold(nullable, "YES"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}

	if len(def.Columns) == 0 {
		return nil, nil
	}
	return def, nil
}

// BindValue приводит значение к аргументу database/sql
func (g *Generic) BindValue(f SinkRecordField, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch f.Logical() {
	case schema.LogicalDecimal:
		d, ok := value.(decimal.Decimal)
		if !ok {
			return nil, fmt.Errorf("column %s: expected decimal value, got %T", f.Name, value)
		}
		return d.String(), nil
	case schema.LogicalDate, schema.LogicalTime, schema.LogicalTimestamp:
		t, ok := value.(time.Time)
		if !ok {
			return nil, fmt.Errorf("column %s: expected time value, got %T", f.Name, value)
		}
		switch f.Logical() {
		case schema.LogicalDate:
			return t.UTC(), nil
		case schema.LogicalTime:
			return t.UTC().Format(TimeFormat), nil
		default:
			return t.In(g.Location()), nil
		}
	}

	switch f.Type() {
	case schema.TypeArray, schema.TypeMap, schema.TypeStruct:
		return nil, g.unsupported(f.Name, f.Type())
	}
	return value, nil
}
