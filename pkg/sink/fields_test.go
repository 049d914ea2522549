package sink

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ruslano69/tdtp-sink/pkg/core/record"
	"github.com/ruslano69/tdtp-sink/pkg/core/schema"
)

func TestExtractFields_None(t *testing.T) {
	cfg := DefaultConfig()

	m, err := ExtractFields(cfg, nil, eventSchema)
	require.NoError(t, err)
	require.Empty(t, m.KeyColumns())
	require.Equal(t, []string{"id", "name"}, m.NonKeyColumns())
}

func TestExtractFields_Kafka(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PKMode = PKModeKafka

	m, err := ExtractFields(cfg, nil, eventSchema)
	require.NoError(t, err)
	require.Equal(t, DefaultKafkaPKFields, m.KeyColumns())
	require.Equal(t, []string{"id", "name"}, m.NonKeyColumns())

	rec := eventRecord("orders", 42, 7, "x")
	rec.Partition = 3
	keys, err := m.KeyValues(rec, newTestDialect())
	require.NoError(t, err)
	require.Equal(t, []any{"orders", int32(3), int64(42)}, keys)

	for _, f := range m.KeyFields() {
		require.True(t, f.IsPrimaryKey)
		require.False(t, f.IsOptional())
	}
}

func TestExtractFields_RecordKeyPrimitive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PKMode = PKModeRecordKey

	_, err := ExtractFields(cfg, schema.String(), eventSchema)
	require.Error(t, err, "primitive key needs exactly one pk field name")

	cfg.PKFields = []string{"event_key"}
	m, err := ExtractFields(cfg, schema.String(), eventSchema)
	require.NoError(t, err)
	require.Equal(t, []string{"event_key"}, m.KeyColumns())

	rec := eventRecord("orders", 1, 1, "a")
	rec.KeySchema, rec.Key = schema.String(), "k-1"
	keys, err := m.KeyValues(rec, newTestDialect())
	require.NoError(t, err)
	require.Equal(t, []any{"k-1"}, keys)
}

func TestExtractFields_RecordKeyStruct(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PKMode = PKModeRecordKey

	m, err := ExtractFields(cfg, eventKeySchema, eventSchema)
	require.NoError(t, err)
	require.Equal(t, []string{"id"}, m.KeyColumns())
	require.Equal(t, []string{"name"}, m.NonKeyColumns(), "key column must not repeat as value column")

	m, err = ExtractFields(cfg, eventKeySchema, nil)
	require.NoError(t, err)
	require.Len(t, m.AllFields(), 1)

	cfg.PKFields = []string{"missing"}
	_, err = ExtractFields(cfg, eventKeySchema, eventSchema)
	require.Error(t, err)
}

func TestExtractFields_RecordValueWhitelist(t *testing.T) {
	valueSchema := schema.NewBuilder("wide").
		AddField("id", schema.Int64()).
		AddField("a", schema.String()).
		AddField("b", schema.String()).
		MustBuild()

	cfg := DefaultConfig()
	cfg.PKMode = PKModeRecordValue
	cfg.PKFields = []string{"id"}
	cfg.FieldsWhitelist = []string{"b"}

	m, err := ExtractFields(cfg, nil, valueSchema)
	require.NoError(t, err)
	require.Equal(t, []string{"id"}, m.KeyColumns())
	require.Equal(t, []string{"b"}, m.NonKeyColumns())
}

func TestExtractFields_Errors(t *testing.T) {
	cfg := DefaultConfig()

	_, err := ExtractFields(cfg, nil, schema.String())
	require.Error(t, err, "value schema must be a struct")

	cfg.PKMode = PKModeRecordValue
	_, err = ExtractFields(cfg, nil, nil)
	require.Error(t, err)

	cfg.PKMode = PKModeRecordKey
	_, err = ExtractFields(cfg, nil, eventSchema)
	require.Error(t, err)
}

func TestFieldsMetadata_NullPrimaryKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PKMode = PKModeRecordKey
	cfg.PKFields = []string{"k"}

	m, err := ExtractFields(cfg, schema.String().AsOptional(), eventSchema)
	require.NoError(t, err)

	rec := record.SinkRecord{Topic: "t", KeySchema: schema.String().AsOptional()}
	_, err = m.KeyValues(rec, newTestDialect())
	require.Error(t, err)
}
