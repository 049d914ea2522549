// Package postgres реализует диалект PostgreSQL поверх dialect.Generic
package postgres

import (
	"encoding/hex"

	_ "github.com/jackc/pgx/v5/stdlib" // драйвер "pgx"

	"github.com/ruslano69/tdtp-sink/pkg/core/schema"
	"github.com/ruslano69/tdtp-sink/pkg/dialect"
)

const (
	// Name - имя диалекта в фабрике
	Name = "postgres"
	// DriverName - имя драйвера pgx в database/sql
	DriverName = "pgx"
)

func init() {
	dialect.Register(Name, func(cfg dialect.Config) dialect.Dialect {
		return New(cfg)
	})
}

// Dialect - диалект PostgreSQL
type Dialect struct {
	*dialect.Generic
}

var _ dialect.Dialect = (*Dialect)(nil)

// Settings возвращает свойства PostgreSQL для dialect.Generic
func Settings() dialect.Settings {
	return dialect.Settings{
		Name:   Name,
		Driver: DriverName,
		Rules: dialect.Rules{
			OpenQuote:   `"`,
			CloseQuote:  `"`,
			Placeholder: dialect.PlaceholderDollar,
		},
		CurrentSchema: "current_schema()",
	}
}

// New создает диалект PostgreSQL
func New(cfg dialect.Config) *Dialect {
	return NewWithSettings(Settings(), cfg)
}

// NewWithSettings создает диалект PostgreSQL с заменой имени или правил.
// Используется производными диалектами.
func NewWithSettings(s dialect.Settings, cfg dialect.Config) *Dialect {
	d := &Dialect{Generic: dialect.NewGeneric(s, cfg)}
	d.Bind(d)
	return d
}

// SQLType - типы PostgreSQL
func (d *Dialect) SQLType(f dialect.SinkRecordField) (string, error) {
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
	case schema.TypeInt8, schema.TypeInt16:
		return "SMALLINT", nil
	case schema.TypeInt32:
		return "INT", nil
	case schema.TypeInt64:
		return "BIGINT", nil
	case schema.TypeFloat32:
		return "REAL", nil
	case schema.TypeFloat64:
		return "DOUBLE PRECISION", nil
	case schema.TypeBoolean:
		return "BOOLEAN", nil
	case schema.TypeString:
		return "TEXT", nil
	case schema.TypeBytes:
		return "BYTEA", nil
	}
	return d.Generic.SQLType(f)
}

// FormatColumnValue - литералы BOOLEAN и BYTEA PostgreSQL
func (d *Dialect) FormatColumnValue(b *dialect.ExpressionBuilder, logical schema.LogicalType, params map[string]string, typ schema.Type, value any) error {
	if logical == schema.LogicalNone {
		switch v := value.(type) {
		case bool:
			if v {
				b.Append("TRUE")
			} else {
				b.Append("FALSE")
			}
			return nil
		case []byte:
			b.Append(`'\x` + hex.EncodeToString(v) + `'::bytea`)
			return nil
		}
	}
	return d.Generic.FormatColumnValue(b, logical, params, typ, value)
}

// BuildUpsertStatement строит INSERT ... ON CONFLICT (pk) DO UPDATE SET c = EXCLUDED.c
func (d *Dialect) BuildUpsertStatement(table dialect.TableID, keyColumns, nonKeyColumns []string) (string, error) {
	b := d.ExpressionBuilder()
	b.Append(d.BuildInsertStatement(table, keyColumns, nonKeyColumns))
	b.Append(" ON CONFLICT (")
	b.AppendList(",", len(keyColumns), func(i int) { b.AppendIdentifier(keyColumns[i]) })

	if len(nonKeyColumns) == 0 {
		b.Append(") DO NOTHING")
		return b.String(), nil
	}

	b.Append(") DO UPDATE SET ")
	b.AppendList(",", len(nonKeyColumns), func(i int) {
		b.AppendIdentifier(nonKeyColumns[i]).Append("=EXCLUDED.").AppendIdentifier(nonKeyColumns[i])
	})
	return b.String(), nil
}
