package record

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ruslano69/tdtp-sink/pkg/core/schema"
)

// JSONConverter декодирует ключи и значения из JSON.
//
// При SchemasEnabled ожидается конверт {"schema": ..., "payload": ...}
// и результат - типизированная схема и значение (*schema.Struct для структур).
// Без схем значение декодируется как map[string]any / примитив и схема nil.
type JSONConverter struct {
	SchemasEnabled bool
}

type jsonEnvelope struct {
	Schema  json.RawMessage `json:"schema"`
	Payload json.RawMessage `json:"payload"`
}

type jsonSchema struct {
	Type       string            `json:"type"`
	Name       string            `json:"name,omitempty"`
	Optional   bool              `json:"optional"`
	Default    json.RawMessage   `json:"default,omitempty"`
	Version    int               `json:"version,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Field      string            `json:"field,omitempty"`
	Fields     []jsonSchema      `json:"fields,omitempty"`
	Items      *jsonSchema       `json:"items,omitempty"`
	Keys       *jsonSchema       `json:"keys,omitempty"`
	Values     *jsonSchema       `json:"values,omitempty"`
}

var jsonTypes = map[string]schema.Type{
	"int8":    schema.TypeInt8,
	"int16":   schema.TypeInt16,
	"int32":   schema.TypeInt32,
	"int64":   schema.TypeInt64,
	"float":   schema.TypeFloat32,
	"float32": schema.TypeFloat32,
	"double":  schema.TypeFloat64,
	"float64": schema.TypeFloat64,
	"boolean": schema.TypeBoolean,
	"string":  schema.TypeString,
	"bytes":   schema.TypeBytes,
	"array":   schema.TypeArray,
	"map":     schema.TypeMap,
	"struct":  schema.TypeStruct,
}

// ToConnectData декодирует сообщение topic в схему и значение.
// Пустые данные - tombstone (nil, nil).
func (c JSONConverter) ToConnectData(topic string, data []byte) (*schema.Schema, any, error) {
	if len(data) == 0 {
		return nil, nil, nil
	}

	if !c.SchemasEnabled {
		raw, err := decodeJSON(data)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decode schemaless JSON from topic %s: %w", topic, err)
		}
		return nil, normalizeNumbers(raw), nil
	}

	var env jsonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, fmt.Errorf("failed to decode JSON envelope from topic %s: %w", topic, err)
	}
	if isNull(env.Schema) {
		return nil, nil, fmt.Errorf("JSON envelope from topic %s has no schema (disable schemas for schemaless data)", topic)
	}

	var js jsonSchema
	if err := json.Unmarshal(env.Schema, &js); err != nil {
		return nil, nil, fmt.Errorf("failed to decode schema from topic %s: %w", topic, err)
	}
	s, err := js.toSchema()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid schema from topic %s: %w", topic, err)
	}

	if isNull(env.Payload) {
		return s, nil, nil
	}
	raw, err := decodeJSON(env.Payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode payload from topic %s: %w", topic, err)
	}
	v, err := convertValue(s, raw, "payload")
	if err != nil {
		return nil, nil, fmt.Errorf("invalid payload from topic %s: %w", topic, err)
	}
	return s, v, nil
}

func (js *jsonSchema) toSchema() (*schema.Schema, error) {
	t, ok := jsonTypes[js.Type]
	if !ok {
		return nil, fmt.Errorf("unknown schema type: %q", js.Type)
	}

	s := &schema.Schema{
		Type:     t,
		Name:     js.Name,
		Logical:  schema.ParseLogicalType(js.Name),
		Optional: js.Optional,
		Version:  js.Version,
		Params:   js.Parameters,
	}

	switch t {
	case schema.TypeStruct:
		for i := range js.Fields {
			fs, err := js.Fields[i].toSchema()
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", js.Fields[i].Field, err)
			}
			s.Fields = append(s.Fields, schema.Field{Name: js.Fields[i].Field, Index: i, Schema: fs})
		}
	case schema.TypeArray:
		if js.Items == nil {
			return nil, fmt.Errorf("array schema has no items")
		}
		elem, err := js.Items.toSchema()
		if err != nil {
			return nil, err
		}
		s.Elem = elem
	case schema.TypeMap:
		if js.Keys == nil || js.Values == nil {
			return nil, fmt.Errorf("map schema needs keys and values")
		}
		key, err := js.Keys.toSchema()
		if err != nil {
			return nil, err
		}
		val, err := js.Values.toSchema()
		if err != nil {
			return nil, err
		}
		s.Key, s.Elem = key, val
	}

	if !isNull(js.Default) {
		raw, err := decodeJSON(js.Default)
		if err != nil {
			return nil, fmt.Errorf("invalid default: %w", err)
		}
		dv, err := convertValue(s, raw, "default")
		if err != nil {
			return nil, err
		}
		s.Default = dv
	}

	return s, nil
}

func convertValue(s *schema.Schema, raw any, path string) (any, error) {
	if raw == nil {
		if s.Optional || s.Default != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: null value for required field", path)
	}

	switch s.Logical {
	case schema.LogicalDecimal:
		return decodeDecimal(s, raw, path)
	case schema.LogicalDate:
		days, err := toInt(raw, 32, path)
		if err != nil {
			return nil, err
		}
		return time.Unix(days*86400, 0).UTC(), nil
	case schema.LogicalTime:
		ms, err := toInt(raw, 32, path)
		if err != nil {
			return nil, err
		}
		return time.UnixMilli(ms).UTC(), nil
	case schema.LogicalTimestamp:
		ms, err := toInt(raw, 64, path)
		if err != nil {
			return nil, err
		}
		return time.UnixMilli(ms).UTC(), nil
	}

	switch s.Type {
	case schema.TypeInt8:
		n, err := toInt(raw, 8, path)
		return int8(n), err
	case schema.TypeInt16:
		n, err := toInt(raw, 16, path)
		return int16(n), err
	case schema.TypeInt32:
		n, err := toInt(raw, 32, path)
		return int32(n), err
	case schema.TypeInt64:
		return toInt(raw, 64, path)
	case schema.TypeFloat32:
		f, err := toFloat(raw, path)
		return float32(f), err
	case schema.TypeFloat64:
		return toFloat(raw, path)
	case schema.TypeBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("%s: expected boolean, got %T", path, raw)
		}
		return b, nil
	case schema.TypeString:
		str, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%s: expected string, got %T", path, raw)
		}
		return str, nil
	case schema.TypeBytes:
		str, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%s: expected base64 string, got %T", path, raw)
		}
		b, err := base64.StdEncoding.DecodeString(str)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid base64: %w", path, err)
		}
		return b, nil
	case schema.TypeArray:
		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("%s: expected array, got %T", path, raw)
		}
		out := make([]any, len(items))
		for i, item := range items {
			v, err := convertValue(s.Elem, item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case schema.TypeMap:
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: only maps with string keys are supported, got %T", path, raw)
		}
		out := make(map[string]any, len(obj))
		for k, item := range obj {
			v, err := convertValue(s.Elem, item, path+"."+k)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	case schema.TypeStruct:
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: expected object, got %T", path, raw)
		}
		st := schema.NewStruct(s)
		for _, f := range s.Fields {
			v, err := convertValue(f.Schema, obj[f.Name], path+"."+f.Name)
			if err != nil {
				return nil, err
			}
			if v == nil {
				continue
			}
			if err := st.Put(f.Name, v); err != nil {
				return nil, err
			}
		}
		return st, nil
	}

	return nil, fmt.Errorf("%s: unsupported schema type %s", path, s.Type)
}

func decodeDecimal(s *schema.Schema, raw any, path string) (any, error) {
	scale, err := s.Scale()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	switch v := raw.(type) {
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return nil, fmt.Errorf("%s: invalid decimal: %w", path, err)
		}
		return d, nil
	case string:
		b, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid base64 decimal: %w", path, err)
		}
		return decimal.NewFromBigInt(unscaledFromBytes(b), -scale), nil
	default:
		return nil, fmt.Errorf("%s: expected decimal, got %T", path, raw)
	}
}

// unscaledFromBytes читает big-endian дополнительный код
func unscaledFromBytes(b []byte) *big.Int {
	n := new(big.Int).SetBytes(b)
	if len(b) > 0 && b[0]&0x80 != 0 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(len(b)*8)))
	}
	return n
}

func toInt(raw any, bits int, path string) (int64, error) {
	num, ok := raw.(json.Number)
	if !ok {
		return 0, fmt.Errorf("%s: expected integer, got %T", path, raw)
	}
	n, err := strconv.ParseInt(num.String(), 10, bits)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid int%d: %w", path, bits, err)
	}
	return n, nil
}

func toFloat(raw any, path string) (float64, error) {
	num, ok := raw.(json.Number)
	if !ok {
		return 0, fmt.Errorf("%s: expected number, got %T", path, raw)
	}
	f, err := num.Float64()
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number: %w", path, err)
	}
	return f, nil
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// normalizeNumbers заменяет json.Number на int64 или float64
func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = normalizeNumbers(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = normalizeNumbers(x[k])
		}
		return x
	default:
		return v
	}
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}
