package mysql

import (
	"testing"

	"github.com/ruslano69/tdtp-sink/pkg/core/schema"
	"github.com/ruslano69/tdtp-sink/pkg/dialect"
)

func TestSQLType_KeyColumns(t *testing.T) {
	d := New(dialect.Config{})

	tests := []struct {
		field    dialect.SinkRecordField
		expected string
	}{
		{dialect.SinkRecordField{Name: "k", Schema: schema.String(), IsPrimaryKey: true}, "VARCHAR(256)"},
		{dialect.SinkRecordField{Name: "v", Schema: schema.String()}, "TEXT"},
		{dialect.SinkRecordField{Name: "b", Schema: schema.Bytes(), IsPrimaryKey: true}, "VARBINARY(1024)"},
		{dialect.SinkRecordField{Name: "d", Schema: schema.Decimal(4)}, "DECIMAL(65,4)"},
		{dialect.SinkRecordField{Name: "ts", Schema: schema.Timestamp()}, "DATETIME(3)"},
	}

	for _, tt := range tests {
		got, err := d.SQLType(tt.field)
		if err != nil {
			t.Errorf("SQLType(%s) failed: %v", tt.field.Name, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("SQLType(%s) = %s, want %s", tt.field.Name, got, tt.expected)
		}
	}
}

func TestBuildUpsertStatement(t *testing.T) {
	d := New(dialect.Config{})

	got, err := d.BuildUpsertStatement(dialect.TableID{Name: "users"}, []string{"id"}, []string{"name"})
	if err != nil {
		t.Fatalf("BuildUpsertStatement failed: %v", err)
	}
	expected := "INSERT INTO `users`(`id`,`name`) VALUES(?,?) ON DUPLICATE KEY UPDATE `name`=VALUES(`name`)"
	if got != expected {
		t.Errorf("got %s\nwant %s", got, expected)
	}
}
