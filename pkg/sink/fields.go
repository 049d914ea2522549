package sink

import (
	"fmt"

	"github.com/ruslano69/tdtp-sink/pkg/core/record"
	"github.com/ruslano69/tdtp-sink/pkg/core/schema"
	"github.com/ruslano69/tdtp-sink/pkg/dialect"
)

// DefaultKafkaPKFields - колонки ключа в режиме PKModeKafka по умолчанию
var DefaultKafkaPKFields = []string{"__connect_topic", "__connect_partition", "__connect_offset"}

// columnSource - откуда берется значение колонки
type columnSource int

const (
	sourceValue columnSource = iota
	sourceKeyStruct
	sourceKeyPrimitive
	sourceTopic
	sourcePartition
	sourceOffset
)

type column struct {
	field  dialect.SinkRecordField
	source columnSource
}

// FieldsMetadata - колонки таблицы, выведенные из схем записи и режима ключа
type FieldsMetadata struct {
	keys    []column
	nonKeys []column
}

// ExtractFields выводит ключевые и неключевые колонки из схем ключа и значения.
// valueSchema может быть nil (tombstone), тогда остаются только ключевые колонки.
func ExtractFields(cfg Config, keySchema, valueSchema *schema.Schema) (*FieldsMetadata, error) {
	if valueSchema != nil && valueSchema.Type != schema.TypeStruct {
		return nil, fmt.Errorf("value schema must be a struct, got %s", valueSchema.Type)
	}

	m := &FieldsMetadata{}

	switch cfg.PKMode {
	case PKModeNone, "":
	case PKModeKafka:
		names := cfg.PKFields
		if len(names) == 0 {
			names = DefaultKafkaPKFields
		}
		if len(names) != 3 {
			return nil, fmt.Errorf("pk mode kafka needs 3 pk fields, got %d", len(names))
		}
		m.addKey(names[0], schema.String(), sourceTopic)
		m.addKey(names[1], schema.Int32(), sourcePartition)
		m.addKey(names[2], schema.Int64(), sourceOffset)

	case PKModeRecordKey:
		if keySchema == nil {
			return nil, fmt.Errorf("pk mode record_key requires a key schema")
		}
		if keySchema.IsPrimitive() {
			if len(cfg.PKFields) != 1 {
				return nil, fmt.Errorf("primitive %s key needs exactly one pk field name, got %d", keySchema.Type, len(cfg.PKFields))
			}
			m.addKey(cfg.PKFields[0], keySchema, sourceKeyPrimitive)
			break
		}
		if keySchema.Type != schema.TypeStruct {
			return nil, fmt.Errorf("key schema of type %s cannot be used as primary key", keySchema.Type)
		}
		if err := m.addStructKeys(keySchema, cfg.PKFields, sourceKeyStruct); err != nil {
			return nil, err
		}

	case PKModeRecordValue:
		if valueSchema == nil {
			return nil, fmt.Errorf("pk mode record_value requires a value schema")
		}
		if err := m.addStructKeys(valueSchema, cfg.PKFields, sourceValue); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("invalid pk mode: %s", cfg.PKMode)
	}

	if valueSchema != nil {
		whitelist := make(map[string]bool, len(cfg.FieldsWhitelist))
		for _, name := range cfg.FieldsWhitelist {
			whitelist[name] = true
		}

		for _, f := range valueSchema.Fields {
			if m.isKey(f.Name) {
				continue
			}
			if len(whitelist) > 0 && !whitelist[f.Name] {
				continue
			}
			m.nonKeys = append(m.nonKeys, column{
				field:  dialect.SinkRecordField{Name: f.Name, Schema: f.Schema},
				source: sourceValue,
			})
		}
	}

	if len(m.keys)+len(m.nonKeys) == 0 {
		return nil, fmt.Errorf("no columns to write (pk mode %s)", cfg.PKMode)
	}
	return m, nil
}

func (m *FieldsMetadata) addKey(name string, s *schema.Schema, src columnSource) {
	m.keys = append(m.keys, column{
		field:  dialect.SinkRecordField{Name: name, Schema: s, IsPrimaryKey: true},
		source: src,
	})
}

// addStructKeys берет ключевые поля структуры: перечисленные в names или все
func (m *FieldsMetadata) addStructKeys(s *schema.Schema, names []string, src columnSource) error {
	if len(names) == 0 {
		for _, f := range s.Fields {
			m.addKey(f.Name, f.Schema, src)
		}
		return nil
	}
	for _, name := range names {
		f, ok := s.Field(name)
		if !ok {
			return fmt.Errorf("pk field %s not found in schema %q", name, s.Name)
		}
		m.addKey(f.Name, f.Schema, src)
	}
	return nil
}

func (m *FieldsMetadata) isKey(name string) bool {
	for _, c := range m.keys {
		if c.field.Name == name {
			return true
		}
	}
	return false
}

// KeyFields возвращает ключевые колонки в порядке объявления
func (m *FieldsMetadata) KeyFields() []dialect.SinkRecordField {
	return fieldsOf(m.keys)
}

// NonKeyFields возвращает неключевые колонки в порядке полей значения
func (m *FieldsMetadata) NonKeyFields() []dialect.SinkRecordField {
	return fieldsOf(m.nonKeys)
}

// AllFields - ключевые колонки, затем неключевые
func (m *FieldsMetadata) AllFields() []dialect.SinkRecordField {
	return append(m.KeyFields(), m.NonKeyFields()...)
}

func (m *FieldsMetadata) KeyColumns() []string    { return namesOf(m.keys) }
func (m *FieldsMetadata) NonKeyColumns() []string { return namesOf(m.nonKeys) }

func fieldsOf(cols []column) []dialect.SinkRecordField {
	out := make([]dialect.SinkRecordField, len(cols))
	for i, c := range cols {
		out[i] = c.field
	}
	return out
}

func namesOf(cols []column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.field.Name
	}
	return out
}

// KeyValues возвращает аргументы ключевых колонок записи
func (m *FieldsMetadata) KeyValues(rec record.SinkRecord, d dialect.Dialect) ([]any, error) {
	return bindColumns(nil, m.keys, rec, d)
}

// NonKeyValues возвращает аргументы неключевых колонок записи
func (m *FieldsMetadata) NonKeyValues(rec record.SinkRecord, d dialect.Dialect) ([]any, error) {
	return bindColumns(nil, m.nonKeys, rec, d)
}

func bindColumns(dst []any, cols []column, rec record.SinkRecord, d dialect.Dialect) ([]any, error) {
	for _, c := range cols {
		raw, err := columnValue(c, rec)
		if err != nil {
			return nil, err
		}
		if raw == nil && c.field.IsPrimaryKey {
			return nil, fmt.Errorf("primary key column %s is null", c.field.Name)
		}
		v, err := d.BindValue(c.field, raw)
		if err != nil {
			return nil, err
		}
		dst = append(dst, v)
	}
	return dst, nil
}

func columnValue(c column, rec record.SinkRecord) (any, error) {
	switch c.source {
	case sourceTopic:
		return rec.Topic, nil
	case sourcePartition:
		return int32(rec.Partition), nil
	case sourceOffset:
		return rec.Offset, nil
	case sourceKeyPrimitive:
		return rec.Key, nil
	case sourceKeyStruct:
		key, ok := rec.KeyStruct()
		if !ok {
			return nil, fmt.Errorf("%w: expected struct key, got %T", ErrMalformedKey, rec.Key)
		}
		return key.Get(c.field.Name)
	default:
		value, ok := rec.ValueStruct()
		if !ok {
			return nil, fmt.Errorf("expected struct value, got %T", rec.Value)
		}
		return value.Get(c.field.Name)
	}
}
