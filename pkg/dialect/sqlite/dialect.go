// Package sqlite реализует диалект SQLite (драйвер modernc.org/sqlite, без CGO)
package sqlite

import (
	"context"
	"fmt"

	_ "modernc.org/sqlite" // драйвер "sqlite"

	"github.com/ruslano69/tdtp-sink/pkg/core/schema"
	"github.com/ruslano69/tdtp-sink/pkg/dialect"
)

const (
	Name       = "sqlite"
	DriverName = "sqlite"
)

func init() {
	dialect.Register(Name, func(cfg dialect.Config) dialect.Dialect {
		return New(cfg)
	})
}

// Dialect - диалект SQLite
type Dialect struct {
	*dialect.Generic
}

var _ dialect.Dialect = (*Dialect)(nil)

// New создает диалект SQLite
func New(cfg dialect.Config) *Dialect {
	d := &Dialect{Generic: dialect.NewGeneric(dialect.Settings{
		Name:   Name,
		Driver: DriverName,
		Rules: dialect.Rules{
			OpenQuote:   `"`,
			CloseQuote:  `"`,
			Placeholder: dialect.PlaceholderQuestion,
		},
		AddColumn: "ADD COLUMN",
	}, cfg)}
	d.Bind(d)
	return d
}

// SQLType - классы хранения SQLite
func (d *Dialect) SQLType(f dialect.SinkRecordField) (string, error) {
	switch f.Logical() {
	case schema.LogicalDecimal, schema.LogicalDate, schema.LogicalTime, schema.LogicalTimestamp:
		return "NUMERIC", nil
	}

	switch f.Type() {
	case schema.TypeInt8, schema.TypeInt16, schema.TypeInt32, schema.TypeInt64, schema.TypeBoolean:
		return "INTEGER", nil
	case schema.TypeFloat32, schema.TypeFloat64:
		return "REAL", nil
	case schema.TypeString:
		return "TEXT", nil
	case schema.TypeBytes:
		return "BLOB", nil
	}
	return d.Generic.SQLType(f)
}

// BuildUpsertStatement строит INSERT OR REPLACE
func (d *Dialect) BuildUpsertStatement(table dialect.TableID, keyColumns, nonKeyColumns []string) (string, error) {
	cols := make([]string, 0, len(keyColumns)+len(nonKeyColumns))
	cols = append(cols, keyColumns...)
	cols = append(cols, nonKeyColumns...)

	b := d.ExpressionBuilder()
	b.Append("INSERT OR REPLACE INTO ").AppendTable(table).Append("(")
	b.AppendList(",", len(cols), func(i int) { b.AppendIdentifier(cols[i]) })
	b.Append(") VALUES(")
	b.AppendList(",", len(cols), func(int) { b.AppendPlaceholder() })
	b.Append(")")
	return b.String(), nil
}

// DescribeTable читает колонки через pragma_table_info
func (d *Dialect) DescribeTable(ctx context.Context, conn dialect.Conn, table dialect.TableID) (*dialect.TableDefinition, error) {
	query := `SELECT name, type, "notnull" FROM pragma_table_info(?)`
	args := []any{table.Name}
	if table.Schema != "" {
		query = `SELECT name, type, "notnull" FROM pragma_table_info(?, ?)`
		args = append(args, table.Schema)
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", table, err)
	}
	defer rows.Close()

	def := &dialect.TableDefinition{ID: table}
	for rows.Next() {
		var (
			name, typeName string
			notNull        int
		)
		if err := rows.Scan(&name, &typeName, &notNull); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		def.Columns = append(def.Columns, dialect.ColumnDefinition{
			Name:     name,
			TypeName: typeName,
			Nullable: notNull == 0,
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
