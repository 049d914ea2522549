// Package mssql реализует диалект Microsoft SQL Server
package mssql

import (
	"encoding/hex"
	"fmt"
	"strings"

	_ "github.com/denisenkom/go-mssqldb" // драйвер "sqlserver"

	"github.com/ruslano69/tdtp-sink/pkg/core/schema"
	"github.com/ruslano69/tdtp-sink/pkg/dialect"
)

const (
	Name       = "mssql"
	DriverName = "sqlserver"
)

func init() {
	dialect.Register(Name, func(cfg dialect.Config) dialect.Dialect {
		return New(cfg)
	})
}

// Dialect - диалект SQL Server
type Dialect struct {
	*dialect.Generic
}

var _ dialect.Dialect = (*Dialect)(nil)

// New создает диалект SQL Server
func New(cfg dialect.Config) *Dialect {
	d := &Dialect{Generic: dialect.NewGeneric(dialect.Settings{
		Name:   Name,
		Driver: DriverName,
		Rules: dialect.Rules{
			OpenQuote:        "[",
			CloseQuote:       "]",
			Placeholder:      dialect.PlaceholderAtP,
			NationalLiterals: true,
		},
		CurrentSchema: "SCHEMA_NAME()",
	}, cfg)}
	d.Bind(d)
	return d
}

// SQLType - типы SQL Server
func (d *Dialect) SQLType(f dialect.SinkRecordField) (string, error) {
	switch f.Logical() {
	case schema.LogicalDecimal:
		scale, err := f.Schema.Scale()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("DECIMAL(38,%d)", scale), nil
	case schema.LogicalDate:
		return "DATE", nil
	case schema.LogicalTime:
		return "TIME", nil
	case schema.LogicalTimestamp:
		return "DATETIME2", nil
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
		return "REAL", nil
	case schema.TypeFloat64:
		return "FLOAT", nil
	case schema.TypeBoolean:
		return "BIT", nil
	case schema.TypeString:
		if f.IsPrimaryKey {
			return "VARCHAR(900)", nil
		}
		return "VARCHAR(MAX)", nil
	case schema.TypeBytes:
		return "VARBINARY(MAX)", nil
	}
	return d.Generic.SQLType(f)
}

// FormatColumnValue - бинарные литералы 0x...
func (d *Dialect) FormatColumnValue(b *dialect.ExpressionBuilder, logical schema.LogicalType, params map[string]string, typ schema.Type, value any) error {
	if v, ok := value.([]byte); ok && logical == schema.LogicalNone {
		b.Append("0x" + strings.ToUpper(hex.EncodeToString(v)))
		return nil
	}
	return d.Generic.FormatColumnValue(b, logical, params, typ, value)
}

// BuildUpsertStatement строит MERGE ... WITH (HOLDLOCK)
func (d *Dialect) BuildUpsertStatement(table dialect.TableID, keyColumns, nonKeyColumns []string) (string, error) {
	cols := make([]string, 0, len(keyColumns)+len(nonKeyColumns))
	cols = append(cols, keyColumns...)
	cols = append(cols, nonKeyColumns...)

	b := d.ExpressionBuilder()
	b.Append("MERGE INTO ").AppendTable(table).Append(" WITH (HOLDLOCK) AS target USING (SELECT ")
	b.AppendList(", ", len(cols), func(i int) {
		b.AppendPlaceholder().Append(" AS ").AppendIdentifier(cols[i])
	})
	b.Append(") AS incoming ON (")
	b.AppendList(" AND ", len(keyColumns), func(i int) {
		b.Append("target.").AppendIdentifier(keyColumns[i]).Append("=incoming.").AppendIdentifier(keyColumns[i])
	})
	b.Append(")")

	if len(nonKeyColumns) > 0 {
		b.Append(" WHEN MATCHED THEN UPDATE SET ")
		b.AppendList(",", len(nonKeyColumns), func(i int) {
			b.AppendIdentifier(nonKeyColumns[i]).Append("=incoming.").AppendIdentifier(nonKeyColumns[i])
		})
	}

	b.Append(" WHEN NOT MATCHED THEN INSERT (")
	b.AppendList(", ", len(cols), func(i int) { b.AppendIdentifier(cols[i]) })
	b.Append(") VALUES (")
	b.AppendList(",", len(cols), func(i int) { b.Append("incoming.").AppendIdentifier(cols[i]) })
	b.Append(");")
	return b.String(), nil
}
