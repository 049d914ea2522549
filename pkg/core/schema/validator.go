package schema

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ValidateValue проверяет что значение соответствует схеме.
// nil допустим только для Optional схем или схем со значением по умолчанию.
func ValidateValue(field string, s *Schema, v any) error {
	if s == nil {
		return &ValidationError{Field: field, Message: "schema is nil"}
	}
	if v == nil {
		if s.Optional || s.Default != nil {
			return nil
		}
		return &ValidationError{Field: field, Message: "field is not optional"}
	}

	ok := false
	switch s.Logical {
	case LogicalDecimal:
		_, ok = v.(decimal.Decimal)
	case LogicalDate, LogicalTime, LogicalTimestamp:
		_, ok = v.(time.Time)
	default:
		switch s.Type {
		case TypeInt8:
			_, ok = v.(int8)
		case TypeInt16:
			_, ok = v.(int16)
		case TypeInt32:
			_, ok = v.(int32)
		case TypeInt64:
			_, ok = v.(int64)
		case TypeFloat32:
			_, ok = v.(float32)
		case TypeFloat64:
			_, ok = v.(float64)
		case TypeBoolean:
			_, ok = v.(bool)
		case TypeString:
			_, ok = v.(string)
		case TypeBytes:
			_, ok = v.([]byte)
		case TypeArray:
			var items []any
			items, ok = v.([]any)
			for i, item := range items {
				if err := ValidateValue(fmt.Sprintf("%s[%d]", field, i), s.Elem, item); err != nil {
					return err
				}
			}
		case TypeMap:
			_, ok = v.(map[string]any)
		case TypeStruct:
			var st *Struct
			st, ok = v.(*Struct)
			if ok && !st.Schema().Equal(s) {
				return &ValidationError{Field: field, Message: "struct schema does not match field schema"}
			}
		}
	}

	if !ok {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("value of type %T is not valid for schema type %s", v, s.Type),
		}
	}
	return nil
}
