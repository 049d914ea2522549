package mssql

import (
	"testing"

	"github.com/ruslano69/tdtp-sink/pkg/core/schema"
	"github.com/ruslano69/tdtp-sink/pkg/dialect"
)

func TestBuildUpsertStatement(t *testing.T) {
	d := New(dialect.Config{})

	got, err := d.BuildUpsertStatement(dialect.TableID{Schema: "dbo", Name: "users"}, []string{"id"}, []string{"name"})
	if err != nil {
		t.Fatalf("BuildUpsertStatement failed: %v", err)
	}
	expected := "MERGE INTO [dbo].[users] WITH (HOLDLOCK) AS target USING (SELECT @p1 AS [id], @p2 AS [name]) AS incoming" +
		" ON (target.[id]=incoming.[id]) WHEN MATCHED THEN UPDATE SET [name]=incoming.[name]" +
		" WHEN NOT MATCHED THEN INSERT ([id], [name]) VALUES (incoming.[id],incoming.[name]);"
	if got != expected {
		t.Errorf("got %s\nwant %s", got, expected)
	}
}

func TestFormatColumnValue(t *testing.T) {
	d := New(dialect.Config{})

	tests := []struct {
		typ      schema.Type
		value    any
		expected string
	}{
		{schema.TypeString, "привет", "N'привет'"},
		{schema.TypeBytes, []byte{0xde, 0xad}, "0xDEAD"},
		{schema.TypeBoolean, true, "1"},
	}

	for _, tt := range tests {
		b := d.ExpressionBuilder()
		if err := d.FormatColumnValue(b, schema.LogicalNone, nil, tt.typ, tt.value); err != nil {
			t.Fatalf("FormatColumnValue failed: %v", err)
		}
		if b.String() != tt.expected {
			t.Errorf("FormatColumnValue(%v) = %s, want %s", tt.value, b.String(), tt.expected)
		}
	}
}

func TestSQLType(t *testing.T) {
	d := New(dialect.Config{})

	got, err := d.SQLType(dialect.SinkRecordField{Name: "k", Schema: schema.String(), IsPrimaryKey: true})
	if err != nil || got != "VARCHAR(900)" {
		t.Errorf("Expected VARCHAR(900) for key string, got %s (%v)", got, err)
	}
	got, _ = d.SQLType(dialect.SinkRecordField{Name: "ts", Schema: schema.Timestamp()})
	if got != "DATETIME2" {
		t.Errorf("Expected DATETIME2, got %s", got)
	}
}
