package sink

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ruslano69/tdtp-sink/pkg/core/record"
	"github.com/ruslano69/tdtp-sink/pkg/core/schema"
	"github.com/ruslano69/tdtp-sink/pkg/dialect"
)

func TestResolver_TableName(t *testing.T) {
	r := NewResolver("kafka_${topic}", "", newTestDialect())

	table, err := r.Resolve(record.SinkRecord{Topic: "orders"})
	require.NoError(t, err)
	require.Equal(t, dialect.TableID{Name: "kafka_orders"}, table)

	r = NewResolver("", "", newTestDialect())
	table, err = r.Resolve(record.SinkRecord{Topic: "orders"})
	require.NoError(t, err)
	require.Equal(t, "orders", table.Name)
}

func TestResolver_DottedNamesAreQualified(t *testing.T) {
	r := NewResolver("public.${topic}", "", newTestDialect())
	table, err := r.Resolve(record.SinkRecord{Topic: "orders"})
	require.NoError(t, err)
	require.Equal(t, dialect.TableID{Schema: "public", Name: "orders"}, table)

	r = NewResolver("${topic}", "", newTestDialect())
	table, err = r.Resolve(record.SinkRecord{Topic: "orders.v1"})
	require.NoError(t, err)
	require.Equal(t, dialect.TableID{Schema: "orders", Name: "v1"}, table)

	table, err = r.Resolve(record.SinkRecord{Topic: "db.orders.v1"})
	require.NoError(t, err)
	require.Equal(t, dialect.TableID{Catalog: "db", Schema: "orders", Name: "v1"}, table)
}

func TestResolver_EmptyDestination(t *testing.T) {
	r := NewResolver(TopicPlaceholder, "", newTestDialect())

	_, err := r.Resolve(record.SinkRecord{Topic: ""})
	require.ErrorIs(t, err, ErrEmptyDestination)

	var resErr *ResolutionError
	require.True(t, errors.As(err, &resErr))
	require.False(t, IsRetryable(err))
}

func TestResolver_SchemaFromKey(t *testing.T) {
	keySchema := schema.NewBuilder("key").
		AddField("tenant", schema.String()).
		AddField("region", schema.String()).
		MustBuild()
	key := schema.NewStruct(keySchema).MustPut("tenant", "ACME").MustPut("region", "EU")

	r := NewResolver(TopicPlaceholder, "t_${tenant}_${region}", newTestDialect())
	rec := record.SinkRecord{Topic: "orders", KeySchema: keySchema, Key: key}

	name, err := r.ResolveSchemaName(rec)
	require.NoError(t, err)
	require.Equal(t, "t_acme_eu", name)

	table, err := r.Resolve(rec)
	require.NoError(t, err)
	require.Equal(t, dialect.TableID{Schema: "t_acme_eu", Name: "orders"}, table)
}

func TestResolver_SchemaWithoutPlaceholders(t *testing.T) {
	r := NewResolver(TopicPlaceholder, "Staging", newTestDialect())

	name, err := r.ResolveSchemaName(record.SinkRecord{Topic: "orders", Key: "plain"})
	require.NoError(t, err)
	require.Equal(t, "staging", name)
}

func TestResolver_MalformedKey(t *testing.T) {
	r := NewResolver(TopicPlaceholder, "${tenant}", newTestDialect())

	_, err := r.Resolve(record.SinkRecord{Topic: "orders", Key: "not-a-struct"})
	require.ErrorIs(t, err, ErrMalformedKey)
	require.False(t, IsRetryable(err))

	keySchema := schema.NewBuilder("key").AddField("id", schema.Int64()).MustBuild()
	key := schema.NewStruct(keySchema).MustPut("id", int64(1))

	_, err = r.Resolve(record.SinkRecord{Topic: "orders", KeySchema: keySchema, Key: key})
	require.ErrorIs(t, err, ErrMalformedKey)
}
