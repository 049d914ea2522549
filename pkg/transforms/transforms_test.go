package transforms

import (
	"testing"
	"time"

	"github.com/ruslano69/tdtp-sink/pkg/core/record"
	"github.com/ruslano69/tdtp-sink/pkg/core/schema"
)

var (
	observationKey = schema.NewBuilder("ObservationKey").
			AddField("projectId", schema.String().AsOptional()).
			AddField("userId", schema.String()).
			AddField("sourceId", schema.String()).
			MustBuild()

	batteryValue = schema.NewBuilder("BatteryLevel").
			AddField("time", schema.Float64()).
			AddField("timeReceived", schema.Float64()).
			AddField("batteryLevel", schema.Float32()).
			MustBuild()
)

func observation(ts time.Time) record.SinkRecord {
	key := schema.NewStruct(observationKey).
		MustPut("projectId", "radar").
		MustPut("userId", "u1").
		MustPut("sourceId", "s1")
	value := schema.NewStruct(batteryValue).
		MustPut("time", 1700000000.1234).
		MustPut("timeReceived", 1700000001.5).
		MustPut("batteryLevel", float32(0.75))

	return record.SinkRecord{
		Topic:       "android_phone_battery_level",
		Partition:   1,
		Offset:      10,
		Timestamp:   ts,
		KeySchema:   observationKey,
		Key:         key,
		ValueSchema: batteryValue,
		Value:       value,
	}
}

func TestKeyToValue_WithSchema(t *testing.T) {
	ts := time.UnixMilli(1700000002000)
	out, err := KeyToValue{}.Apply(observation(ts))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if out.ValueSchema.Name != "KeyToValue" {
		t.Errorf("Unexpected schema name: %s", out.ValueSchema.Name)
	}
	if out.Topic != "android_phone_battery_level" || out.Partition != 1 || out.Offset != 10 {
		t.Errorf("Coordinates must be preserved: %s", out)
	}
	if out.KeySchema != observationKey {
		t.Error("Key schema must be preserved")
	}

	var names []string
	for _, f := range out.ValueSchema.Fields {
		names = append(names, f.Name)
	}
	want := []string{"projectId", "userId", "sourceId", "time", "timeReceived", "batteryLevel", "timestamp"}
	if len(names) != len(want) {
		t.Fatalf("Fields = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Field %d = %s, want %s", i, names[i], want[i])
		}
	}

	f, _ := out.ValueSchema.Field("time")
	if f.Schema.Logical != schema.LogicalTimestamp {
		t.Errorf("time field must become Timestamp, got %s", f.Schema.Logical)
	}

	value, _ := out.ValueStruct()
	tm, _ := value.Get("time")
	if got := tm.(time.Time).UnixMilli(); got != 1700000000123 {
		t.Errorf("time = %d ms, want 1700000000123", got)
	}
	user, _ := value.GetString("userId")
	if user != "u1" {
		t.Errorf("userId = %s", user)
	}
	stamp, _ := value.Get("timestamp")
	if stamp != int64(1700000002000) {
		t.Errorf("timestamp = %v", stamp)
	}
}

func TestKeyToValue_Schemaless(t *testing.T) {
	rec := record.SinkRecord{
		Topic:     "t",
		Timestamp: time.UnixMilli(5000),
		Key:       map[string]any{"userId": "u1"},
		Value:     map[string]any{"time": 1.25, "value": int64(3)},
	}

	out, err := KeyToValue{}.Apply(rec)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	m := out.Value.(map[string]any)
	if m["userId"] != "u1" || m["value"] != int64(3) || m["timestamp"] != int64(5000) {
		t.Errorf("Unexpected value: %v", m)
	}
	if got := m["time"].(time.Time).UnixMilli(); got != 1250 {
		t.Errorf("time = %d ms, want 1250", got)
	}
	if out.ValueSchema != nil || out.KeySchema != nil {
		t.Error("Schemaless output must have no schemas")
	}
}

func TestKeyToValue_Errors(t *testing.T) {
	tests := []struct {
		name string
		rec  record.SinkRecord
	}{
		{"no timestamp", record.SinkRecord{Key: map[string]any{}, Value: map[string]any{}}},
		{"primitive key", func() record.SinkRecord {
			r := observation(time.Now())
			r.Key = "k"
			return r
		}()},
		{"schemaless non-map value", record.SinkRecord{Timestamp: time.Now(), Key: map[string]any{}, Value: "v"}},
		{"duplicate field", func() record.SinkRecord {
			r := observation(time.Now())
			dup := schema.NewBuilder("V").AddField("userId", schema.String()).MustBuild()
			r.ValueSchema = dup
			r.Value = schema.NewStruct(dup).MustPut("userId", "x")
			return r
		}()},
	}

	for _, tt := range tests {
		if _, err := (KeyToValue{}).Apply(tt.rec); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestNewChain(t *testing.T) {
	chain, err := NewChain([]string{KeyToValueName})
	if err != nil {
		t.Fatalf("NewChain failed: %v", err)
	}
	if len(chain) != 1 {
		t.Fatalf("Expected 1 transformation, got %d", len(chain))
	}

	out, err := chain.Apply(observation(time.UnixMilli(1)))
	if err != nil {
		t.Fatalf("Chain.Apply failed: %v", err)
	}
	if out.ValueSchema.Name != "KeyToValue" {
		t.Errorf("Chain did not apply KeyToValue")
	}

	if _, err := NewChain([]string{"unknown"}); err == nil {
		t.Error("Expected error for unknown transform")
	}

	empty, _ := NewChain(nil)
	rec := observation(time.UnixMilli(1))
	same, err := empty.Apply(rec)
	if err != nil || same.ValueSchema != rec.ValueSchema {
		t.Error("Empty chain must return the record unchanged")
	}
}
