package schema

import (
	"fmt"
	"strconv"
)

// Type представляет базовый тип поля записи
type Type string

// Поддерживаемые типы записей
const (
	TypeInt8    Type = "INT8"
	TypeInt16   Type = "INT16"
	TypeInt32   Type = "INT32"
	TypeInt64   Type = "INT64"
	TypeFloat32 Type = "FLOAT32"
	TypeFloat64 Type = "FLOAT64"
	TypeBoolean Type = "BOOLEAN"
	TypeString  Type = "STRING"
	TypeBytes   Type = "BYTES"
	TypeArray   Type = "ARRAY"
	TypeMap     Type = "MAP"
	TypeStruct  Type = "STRUCT"
)

// LogicalType - закрытый набор логических типов поверх базовых.
// Сравнивается только по значению.
type LogicalType int

const (
	LogicalNone LogicalType = iota
	LogicalDecimal
	LogicalDate
	LogicalTime
	LogicalTimestamp
)

// Канонические имена логических типов в схемах записей
const (
	DecimalName   = "org.apache.kafka.connect.data.Decimal"
	DateName      = "org.apache.kafka.connect.data.Date"
	TimeName      = "org.apache.kafka.connect.data.Time"
	TimestampName = "org.apache.kafka.connect.data.Timestamp"

	// ScaleParam - параметр схемы Decimal с масштабом
	ScaleParam = "scale"
)

// String возвращает каноническое имя логического типа
func (l LogicalType) String() string {
	switch l {
	case LogicalDecimal:
		return DecimalName
	case LogicalDate:
		return DateName
	case LogicalTime:
		return TimeName
	case LogicalTimestamp:
		return TimestampName
	default:
		return ""
	}
}

// ParseLogicalType определяет логический тип по имени схемы.
// Неизвестные имена дают LogicalNone.
func ParseLogicalType(name string) LogicalType {
	switch name {
	case DecimalName:
		return LogicalDecimal
	case DateName:
		return LogicalDate
	case TimeName:
		return LogicalTime
	case TimestampName:
		return LogicalTimestamp
	default:
		return LogicalNone
	}
}

// Schema описывает ключ или значение записи
type Schema struct {
	Type     Type
	Name     string
	Logical  LogicalType
	Optional bool
	Default  any
	Version  int
	Params   map[string]string

	// Fields - поля структуры (только для STRUCT)
	Fields []Field

	// Elem - схема элементов (ARRAY) или значений (MAP)
	Elem *Schema
	// Key - схема ключей (MAP)
	Key *Schema
}

// Field - поле структуры
type Field struct {
	Name   string
	Index  int
	Schema *Schema
}

// Field ищет поле структуры по имени
func (s *Schema) Field(name string) (Field, bool) {
	if s == nil {
		return Field{}, false
	}
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// IsPrimitive проверяет что схема не составная
func (s *Schema) IsPrimitive() bool {
	switch s.Type {
	case TypeArray, TypeMap, TypeStruct:
		return false
	default:
		return true
	}
}

// Scale возвращает масштаб Decimal схемы
func (s *Schema) Scale() (int32, error) {
	raw, ok := s.Params[ScaleParam]
	if !ok {
		return 0, fmt.Errorf("decimal schema %q has no %s parameter", s.Name, ScaleParam)
	}
	scale, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid decimal scale %q: %w", raw, err)
	}
	return int32(scale), nil
}

// AsOptional возвращает копию схемы с признаком Optional
func (s *Schema) AsOptional() *Schema {
	c := *s
	c.Optional = true
	return &c
}

// WithDefault возвращает копию схемы со значением по умолчанию
func (s *Schema) WithDefault(v any) *Schema {
	c := *s
	c.Default = v
	return &c
}

// Equal сравнивает схемы структурно (имя, тип, параметры, поля)
func (s *Schema) Equal(o *Schema) bool {
	if s == o {
		return true
	}
	if s == nil || o == nil {
		return false
	}
	if s.Type != o.Type || s.Name != o.Name || s.Logical != o.Logical ||
		s.Optional != o.Optional || s.Version != o.Version {
		return false
	}
	if len(s.Params) != len(o.Params) {
		return false
	}
	for k, v := range s.Params {
		if o.Params[k] != v {
			return false
		}
	}
	if len(s.Fields) != len(o.Fields) {
		return false
	}
	for i := range s.Fields {
		if s.Fields[i].Name != o.Fields[i].Name || !s.Fields[i].Schema.Equal(o.Fields[i].Schema) {
			return false
		}
	}
	return s.Elem.Equal(o.Elem) && s.Key.Equal(o.Key)
}

// ValidationError ошибка валидации значения
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Примитивные схемы

func Int8() *Schema    { return &Schema{Type: TypeInt8} }
func Int16() *Schema   { return &Schema{Type: TypeInt16} }
func Int32() *Schema   { return &Schema{Type: TypeInt32} }
func Int64() *Schema   { return &Schema{Type: TypeInt64} }
func Float32() *Schema { return &Schema{Type: TypeFloat32} }
func Float64() *Schema { return &Schema{Type: TypeFloat64} }
func Boolean() *Schema { return &Schema{Type: TypeBoolean} }
func String() *Schema  { return &Schema{Type: TypeString} }
func Bytes() *Schema   { return &Schema{Type: TypeBytes} }

// Decimal создает схему Decimal с заданным масштабом
func Decimal(scale int) *Schema {
	return &Schema{
		Type:    TypeBytes,
		Name:    DecimalName,
		Logical: LogicalDecimal,
		Version: 1,
		Params:  map[string]string{ScaleParam: strconv.Itoa(scale)},
	}
}

// Date - дни от эпохи
func Date() *Schema {
	return &Schema{Type: TypeInt32, Name: DateName, Logical: LogicalDate, Version: 1}
}

// Time - миллисекунды от начала суток
func Time() *Schema {
	return &Schema{Type: TypeInt32, Name: TimeName, Logical: LogicalTime, Version: 1}
}

// Timestamp - миллисекунды от эпохи
func Timestamp() *Schema {
	return &Schema{Type: TypeInt64, Name: TimestampName, Logical: LogicalTimestamp, Version: 1}
}

// Array создает схему массива
func Array(elem *Schema) *Schema {
	return &Schema{Type: TypeArray, Elem: elem}
}

// Map создает схему словаря
func Map(key, value *Schema) *Schema {
	return &Schema{Type: TypeMap, Key: key, Elem: value}
}

// FromType создает схему по базовому типу и имени логического типа
func FromType(t Type, name string) *Schema {
	s := &Schema{Type: t, Name: name, Logical: ParseLogicalType(name)}
	if s.Logical != LogicalNone {
		s.Version = 1
	}
	return s
}
