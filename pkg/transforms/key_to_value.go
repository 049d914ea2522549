package transforms

import (
	"fmt"
	"math"
	"time"

	"github.com/ruslano69/tdtp-sink/pkg/core/record"
	"github.com/ruslano69/tdtp-sink/pkg/core/schema"
)

const (
	// KeyToValueName - имя преобразования в конфигурации
	KeyToValueName = "key_to_value"

	keyToValueSchemaName = "KeyToValue"
	timestampField       = "timestamp"
)

// timeFields - поля FLOAT64 с секундами эпохи, которые становятся Timestamp
var timeFields = map[string]bool{
	"time":          true,
	"timeReceived":  true,
	"timeCompleted": true,
}

// KeyToValue копирует поля ключа в значение и добавляет поле timestamp
// (время записи в миллисекундах). Ключ записи не меняется.
type KeyToValue struct{}

// Apply выполняет преобразование
func (KeyToValue) Apply(rec record.SinkRecord) (record.SinkRecord, error) {
	if rec.Timestamp.IsZero() {
		return record.SinkRecord{}, fmt.Errorf("key_to_value: record %s has no timestamp", rec)
	}
	if rec.ValueSchema == nil {
		return applySchemaless(rec)
	}
	return applyWithSchema(rec)
}

func applyWithSchema(rec record.SinkRecord) (record.SinkRecord, error) {
	key, ok := rec.KeyStruct()
	if !ok {
		return record.SinkRecord{}, fmt.Errorf("key_to_value: record %s key is %T, not a struct", rec, rec.Key)
	}
	value, ok := rec.ValueStruct()
	if !ok {
		return record.SinkRecord{}, fmt.Errorf("key_to_value: record %s value is %T, not a struct", rec, rec.Value)
	}

	b := schema.NewBuilder(keyToValueSchemaName)
	addFields(b, key.Schema())
	addFields(b, value.Schema())
	b.AddField(timestampField, schema.Int64())
	s, err := b.Build()
	if err != nil {
		return record.SinkRecord{}, fmt.Errorf("key_to_value: %w", err)
	}

	out := schema.NewStruct(s)
	for _, src := range []*schema.Struct{key, value} {
		for _, f := range src.Schema().Fields {
			v, err := src.Get(f.Name)
			if err != nil {
				return record.SinkRecord{}, err
			}
			if isTimeField(f) {
				v = convertTimestamp(v)
			}
			if err := out.Put(f.Name, v); err != nil {
				return record.SinkRecord{}, fmt.Errorf("key_to_value: %w", err)
			}
		}
	}
	if err := out.Put(timestampField, rec.Timestamp.UnixMilli()); err != nil {
		return record.SinkRecord{}, err
	}

	return rec.NewRecord(rec.KeySchema, rec.Key, s, out), nil
}

func addFields(b *schema.Builder, s *schema.Schema) {
	for _, f := range s.Fields {
		if isTimeField(f) {
			ts := schema.Timestamp()
			ts.Optional = f.Schema.Optional
			b.AddField(f.Name, ts)
			continue
		}
		b.AddField(f.Name, f.Schema)
	}
}

func isTimeField(f schema.Field) bool {
	return timeFields[f.Name] && f.Schema.Type == schema.TypeFloat64
}

func applySchemaless(rec record.SinkRecord) (record.SinkRecord, error) {
	key, ok := rec.Key.(map[string]any)
	if !ok {
		return record.SinkRecord{}, fmt.Errorf("key_to_value: record %s key is %T, not a map", rec, rec.Key)
	}
	value, ok := rec.Value.(map[string]any)
	if !ok {
		return record.SinkRecord{}, fmt.Errorf("key_to_value: record %s value is %T, not a map", rec, rec.Value)
	}

	out := make(map[string]any, len(key)+len(value)+1)
	for k, v := range key {
		out[k] = v
	}
	for k, v := range value {
		if timeFields[k] {
			v = convertTimestamp(v)
		}
		out[k] = v
	}
	out[timestampField] = rec.Timestamp.UnixMilli()

	return rec.NewRecord(nil, rec.Key, nil, out), nil
}

// convertTimestamp переводит секунды (float64) в time.Time с округлением до мс.
// Остальные значения возвращаются как есть.
func convertTimestamp(v any) any {
	sec, ok := v.(float64)
	if !ok {
		return v
	}
	return time.UnixMilli(int64(math.Round(sec * 1000))).UTC()
}
