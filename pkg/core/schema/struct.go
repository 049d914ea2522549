package schema

import "fmt"

// Struct - значение структуры, привязанное к схеме
type Struct struct {
	schema *Schema
	values []any
}

// NewStruct создает пустую структуру для схемы STRUCT
func NewStruct(s *Schema) *Struct {
	return &Struct{
		schema: s,
		values: make([]any, len(s.Fields)),
	}
}

// Schema возвращает схему структуры
func (s *Struct) Schema() *Schema {
	return s.schema
}

// Put устанавливает значение поля с проверкой типа
func (s *Struct) Put(name string, v any) error {
	f, ok := s.schema.Field(name)
	if !ok {
		return fmt.Errorf("%s is not a valid field name", name)
	}
	if err := ValidateValue(name, f.Schema, v); err != nil {
		return err
	}
	s.values[f.Index] = v
	return nil
}

// MustPut как Put, но паникует при ошибке
func (s *Struct) MustPut(name string, v any) *Struct {
	if err := s.Put(name, v); err != nil {
		panic(err)
	}
	return s
}

// Get возвращает значение поля или значение по умолчанию из схемы
func (s *Struct) Get(name string) (any, error) {
	f, ok := s.schema.Field(name)
	if !ok {
		return nil, fmt.Errorf("%s is not a valid field name", name)
	}
	v := s.values[f.Index]
	if v == nil {
		return f.Schema.Default, nil
	}
	return v, nil
}

// GetString возвращает строковое значение поля.
// Ошибка если поля нет, оно пустое (nil) или не строкового типа.
func (s *Struct) GetString(name string) (string, error) {
	v, err := s.Get(name)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", fmt.Errorf("field %s is null", name)
	}
	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %s is %T, not a string", name, v)
	}
	return str, nil
}

// Validate проверяет что все обязательные поля заполнены
func (s *Struct) Validate() error {
	for _, f := range s.schema.Fields {
		if err := ValidateValue(f.Name, f.Schema, s.values[f.Index]); err != nil {
			return err
		}
	}
	return nil
}
