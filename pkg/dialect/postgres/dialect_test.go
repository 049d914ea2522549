package postgres

import (
	"testing"

	"github.com/ruslano69/tdtp-sink/pkg/core/schema"
	"github.com/ruslano69/tdtp-sink/pkg/dialect"
)

func TestSQLType(t *testing.T) {
	d := New(dialect.Config{})

	tests := []struct {
		schema   *schema.Schema
		expected string
	}{
		{schema.Int8(), "SMALLINT"},
		{schema.Int16(), "SMALLINT"},
		{schema.Int32(), "INT"},
		{schema.Int64(), "BIGINT"},
		{schema.Float32(), "REAL"},
		{schema.Float64(), "DOUBLE PRECISION"},
		{schema.Boolean(), "BOOLEAN"},
		{schema.String(), "TEXT"},
		{schema.Bytes(), "BYTEA"},
		{schema.Decimal(2), "DECIMAL"},
		{schema.Date(), "DATE"},
		{schema.Time(), "TIME"},
		{schema.Timestamp(), "TIMESTAMP"},
	}

	for _, tt := range tests {
		got, err := d.SQLType(dialect.SinkRecordField{Name: "c", Schema: tt.schema})
		if err != nil {
			t.Errorf("SQLType(%s) failed: %v", tt.schema.Type, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("SQLType(%s/%v) = %s, want %s", tt.schema.Type, tt.schema.Logical, got, tt.expected)
		}
	}
}

func TestBuildUpsertStatement(t *testing.T) {
	d := New(dialect.Config{})
	table := dialect.TableID{Schema: "public", Name: "users"}

	got, err := d.BuildUpsertStatement(table, []string{"id"}, []string{"name", "email"})
	if err != nil {
		t.Fatalf("BuildUpsertStatement failed: %v", err)
	}
	expected := `INSERT INTO "public"."users"("id","name","email") VALUES($1,$2,$3) ON CONFLICT ("id") DO UPDATE SET "name"=EXCLUDED."name","email"=EXCLUDED."email"`
	if got != expected {
		t.Errorf("got %s\nwant %s", got, expected)
	}

	got, _ = d.BuildUpsertStatement(table, []string{"id"}, nil)
	if got != `INSERT INTO "public"."users"("id") VALUES($1) ON CONFLICT ("id") DO NOTHING` {
		t.Errorf("Unexpected key-only upsert: %s", got)
	}
}

func TestFormatColumnValue(t *testing.T) {
	d := New(dialect.Config{})

	b := d.ExpressionBuilder()
	if err := d.FormatColumnValue(b, schema.LogicalNone, nil, schema.TypeBytes, []byte{0x01, 0xAB}); err != nil {
		t.Fatalf("FormatColumnValue failed: %v", err)
	}
	if b.String() != `'\x01ab'::bytea` {
		t.Errorf("Unexpected bytea literal: %s", b.String())
	}
}

func TestCreateTableUsesOverrides(t *testing.T) {
	d := New(dialect.Config{})

	stmt, err := d.BuildCreateTableStatement(dialect.TableID{Name: "flags"}, []dialect.SinkRecordField{
		{Name: "id", Schema: schema.Int16(), IsPrimaryKey: true},
		{Name: "on", Schema: schema.Boolean().WithDefault(true)},
	})
	if err != nil {
		t.Fatalf("BuildCreateTableStatement failed: %v", err)
	}
	expected := "CREATE TABLE \"flags\" (\n\"id\" SMALLINT NOT NULL,\n\"on\" BOOLEAN DEFAULT TRUE NOT NULL,\nPRIMARY KEY(\"id\"))"
	if stmt != expected {
		t.Errorf("got %s\nwant %s", stmt, expected)
	}
}
