package schema

import "fmt"

// Builder помогает строить схемы структур
type Builder struct {
	name     string
	optional bool
	fields   []Field
	err      error
}

// NewBuilder создает новый builder структуры
func NewBuilder(name string) *Builder {
	return &Builder{
		name:   name,
		fields: []Field{},
	}
}

// Optional помечает структуру как необязательную
func (b *Builder) Optional() *Builder {
	b.optional = true
	return b
}

// AddField добавляет поле. Повторное имя поля - ошибка Build.
func (b *Builder) AddField(name string, s *Schema) *Builder {
	if b.err != nil {
		return b
	}
	if name == "" {
		b.err = fmt.Errorf("field at index %d has empty name", len(b.fields))
		return b
	}
	for _, f := range b.fields {
		if f.Name == name {
			b.err = fmt.Errorf("duplicate field name: %s", name)
			return b
		}
	}
	b.fields = append(b.fields, Field{
		Name:   name,
		Index:  len(b.fields),
		Schema: s,
	})
	return b
}

// Build возвращает готовую схему
func (b *Builder) Build() (*Schema, error) {
	if b.err != nil {
		return nil, b.err
	}
	return &Schema{
		Type:     TypeStruct,
		Name:     b.name,
		Optional: b.optional,
		Fields:   b.fields,
	}, nil
}

// MustBuild как Build, но паникует при ошибке.
// Используется для статических схем.
func (b *Builder) MustBuild() *Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}
