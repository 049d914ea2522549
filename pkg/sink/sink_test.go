package sink

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/ruslano69/tdtp-sink/pkg/core/record"
	"github.com/ruslano69/tdtp-sink/pkg/core/schema"
	"github.com/ruslano69/tdtp-sink/pkg/dialect"
)

const describeQuery = "SELECT column_name, data_type, is_nullable FROM information_schema.columns WHERE table_name = ? ORDER BY ordinal_position"

var (
	eventSchema = schema.NewBuilder("event").
			AddField("id", schema.Int64()).
			AddField("name", schema.String().AsOptional()).
			MustBuild()

	eventKeySchema = schema.NewBuilder("event_key").
			AddField("id", schema.Int64()).
			MustBuild()
)

func newTestDialect() dialect.Dialect {
	return dialect.NewGeneric(dialect.Settings{
		Name:  "generic",
		Rules: dialect.Rules{OpenQuote: `"`, CloseQuote: `"`, Placeholder: dialect.PlaceholderQuestion},
	}, dialect.Config{TimeZone: time.UTC})
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PKMode = PKModeRecordValue
	cfg.PKFields = []string{"id"}
	cfg.ConnectionAttempts = 1
	cfg.ConnectionBackoff = 0
	cfg.MaxRetries = 0
	cfg.RetryBackoff = 0
	return cfg
}

func eventRecord(topic string, offset, id int64, name string) record.SinkRecord {
	value := schema.NewStruct(eventSchema).MustPut("id", id).MustPut("name", name)
	return record.SinkRecord{
		Topic:       topic,
		Offset:      offset,
		KeySchema:   eventKeySchema,
		Key:         schema.NewStruct(eventKeySchema).MustPut("id", id),
		ValueSchema: eventSchema,
		Value:       value,
	}
}

func tombstone(topic string, offset, id int64) record.SinkRecord {
	return record.SinkRecord{
		Topic:     topic,
		Offset:    offset,
		KeySchema: eventKeySchema,
		Key:       schema.NewStruct(eventKeySchema).MustPut("id", id),
	}
}

func columnRows(names ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable"})
	for _, n := range names {
		rows.AddRow(n, "text", "YES")
	}
	return rows
}

// newMockWriter возвращает Writer поверх одного sqlmock соединения
func newMockWriter(t *testing.T, cfg Config) (*Writer, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	provider, err := NewConnectionProvider(func(ctx context.Context) (*sql.DB, error) {
		return db, nil
	}, cfg.ConnectionAttempts, cfg.ConnectionBackoff)
	require.NoError(t, err)

	return NewWriter(cfg, newTestDialect(), provider, nil), mock
}
