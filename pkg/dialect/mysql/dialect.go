// Package mysql реализует диалект MySQL / MariaDB
package mysql

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql" // драйвер "mysql"

	"github.com/ruslano69/tdtp-sink/pkg/core/schema"
	"github.com/ruslano69/tdtp-sink/pkg/dialect"
)

const (
	Name       = "mysql"
	DriverName = "mysql"
)

func init() {
	dialect.Register(Name, func(cfg dialect.Config) dialect.Dialect {
		return New(cfg)
	})
}

// Dialect - диалект MySQL
type Dialect struct {
	*dialect.Generic
}

var _ dialect.Dialect = (*Dialect)(nil)

// New создает диалект MySQL
func New(cfg dialect.Config) *Dialect {
	d := &Dialect{Generic: dialect.NewGeneric(dialect.Settings{
		Name:   Name,
		Driver: DriverName,
		Rules: dialect.Rules{
			OpenQuote:   "`",
			CloseQuote:  "`",
			Placeholder: dialect.PlaceholderQuestion,
		},
		CurrentSchema: "DATABASE()",
	}, cfg)}
	d.Bind(d)
	return d
}

// SQLType - типы MySQL. Колонки первичного ключа получают типы
// ограниченной длины: TEXT и BLOB нельзя индексировать целиком.
func (d *Dialect) SQLType(f dialect.SinkRecordField) (string, error) {
	switch f.Logical() {
	case schema.LogicalDecimal:
		scale, err := f.Schema.Scale()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("DECIMAL(65,%d)", scale), nil
	case schema.LogicalDate:
		return "DATE", nil
	case schema.LogicalTime:
		return "TIME(3)", nil
	case schema.LogicalTimestamp:
		return "DATETIME(3)", nil
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
		return "TINYINT", nil
	case schema.TypeString:
		if f.IsPrimaryKey {
			return "VARCHAR(256)", nil
		}
		return "TEXT", nil
	case schema.TypeBytes:
		if f.IsPrimaryKey {
			return "VARBINARY(1024)", nil
		}
		return "BLOB", nil
	}
	return d.Generic.SQLType(f)
}

// BuildUpsertStatement строит INSERT ... ON DUPLICATE KEY UPDATE c=VALUES(c)
func (d *Dialect) BuildUpsertStatement(table dialect.TableID, keyColumns, nonKeyColumns []string) (string, error) {
	b := d.ExpressionBuilder()
	b.Append(d.BuildInsertStatement(table, keyColumns, nonKeyColumns))
	b.Append(" ON DUPLICATE KEY UPDATE ")

	// без неключевых колонок обновляем ключ сам на себя, чтобы дубликат не был ошибкой
	update := nonKeyColumns
	if len(update) == 0 {
		update = keyColumns
	}
	b.AppendList(",", len(update), func(i int) {
		b.AppendIdentifier(update[i]).Append("=VALUES(").AppendIdentifier(update[i]).Append(")")
	})
	return b.String(), nil
}
