package record

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ruslano69/tdtp-sink/pkg/core/schema"
)

const envelope = `{
  "schema": {
    "type": "struct",
    "name": "measurement",
    "optional": false,
    "fields": [
      {"field": "id", "type": "int64", "optional": false},
      {"field": "name", "type": "string", "optional": true},
      {"field": "time", "type": "int64", "optional": false,
       "name": "org.apache.kafka.connect.data.Timestamp", "version": 1},
      {"field": "amount", "type": "bytes", "optional": true,
       "name": "org.apache.kafka.connect.data.Decimal", "version": 1,
       "parameters": {"scale": "2"}},
      {"field": "day", "type": "int32", "optional": true,
       "name": "org.apache.kafka.connect.data.Date", "version": 1},
      {"field": "level", "type": "int32", "optional": true, "default": 3}
    ]
  },
  "payload": {"id": 42, "name": "sensor", "time": 1700000000123, "amount": "BNI=", "day": 19000}
}`

func TestJSONConverter_Envelope(t *testing.T) {
	c := JSONConverter{SchemasEnabled: true}

	s, v, err := c.ToConnectData("measurements", []byte(envelope))
	if err != nil {
		t.Fatalf("ToConnectData failed: %v", err)
	}

	if s.Type != schema.TypeStruct || len(s.Fields) != 6 {
		t.Fatalf("Unexpected schema: %+v", s)
	}

	f, ok := s.Field("time")
	if !ok || f.Schema.Logical != schema.LogicalTimestamp {
		t.Errorf("Expected time field with Timestamp logical type, got %+v", f)
	}

	st, ok := v.(*schema.Struct)
	if !ok {
		t.Fatalf("Expected *schema.Struct, got %T", v)
	}

	id, _ := st.Get("id")
	if id != int64(42) {
		t.Errorf("Expected id=42, got %v (%T)", id, id)
	}

	ts, _ := st.Get("time")
	if !ts.(time.Time).Equal(time.UnixMilli(1700000000123)) {
		t.Errorf("Unexpected timestamp: %v", ts)
	}

	// 0x04D2 = 1234, scale 2
	amount, _ := st.Get("amount")
	if !amount.(decimal.Decimal).Equal(decimal.RequireFromString("12.34")) {
		t.Errorf("Expected amount 12.34, got %v", amount)
	}

	day, _ := st.Get("day")
	if got := day.(time.Time).Format("2006-01-02"); got != "2022-01-08" {
		t.Errorf("Expected day 2022-01-08, got %s", got)
	}

	level, _ := st.Get("level")
	if level != int32(3) {
		t.Errorf("Expected default level 3, got %v", level)
	}
}

func TestJSONConverter_NegativeDecimal(t *testing.T) {
	// 0xFF38 = -200 в дополнительном коде
	n := unscaledFromBytes([]byte{0xFF, 0x38})
	if n.Int64() != -200 {
		t.Errorf("Expected -200, got %s", n)
	}
}

func TestJSONConverter_Tombstone(t *testing.T) {
	c := JSONConverter{SchemasEnabled: true}

	s, v, err := c.ToConnectData("t", nil)
	if err != nil || s != nil || v != nil {
		t.Errorf("Expected empty result for tombstone, got %v %v %v", s, v, err)
	}
}

func TestJSONConverter_MissingSchema(t *testing.T) {
	c := JSONConverter{SchemasEnabled: true}

	if _, _, err := c.ToConnectData("t", []byte(`{"payload": {"id": 1}}`)); err == nil {
		t.Error("Expected error for envelope without schema")
	}
}

func TestJSONConverter_RequiredFieldNull(t *testing.T) {
	c := JSONConverter{SchemasEnabled: true}
	data := `{"schema": {"type": "struct", "fields": [{"field": "id", "type": "int64"}]}, "payload": {"id": null}}`

	if _, _, err := c.ToConnectData("t", []byte(data)); err == nil {
		t.Error("Expected error for null required field")
	}
}

func TestJSONConverter_Schemaless(t *testing.T) {
	c := JSONConverter{}

	s, v, err := c.ToConnectData("t", []byte(`{"id": 7, "ratio": 0.5, "tags": ["a"]}`))
	if err != nil {
		t.Fatalf("ToConnectData failed: %v", err)
	}
	if s != nil {
		t.Errorf("Expected nil schema, got %+v", s)
	}

	m := v.(map[string]any)
	if m["id"] != int64(7) {
		t.Errorf("Expected id int64(7), got %v (%T)", m["id"], m["id"])
	}
	if m["ratio"] != 0.5 {
		t.Errorf("Expected ratio 0.5, got %v", m["ratio"])
	}
}
