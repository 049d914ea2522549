package sink

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ruslano69/tdtp-sink/pkg/core/record"
	"github.com/ruslano69/tdtp-sink/pkg/dialect"
)

var placeholderPattern = regexp.MustCompile(`\$\{(.*?)\}`)

// Resolver определяет таблицу назначения записи по шаблонам имен
type Resolver struct {
	tableFormat  string
	schemaFormat string
	dialect      dialect.Dialect
}

// NewResolver создает Resolver. Пустой tableFormat заменяется на ${topic}.
func NewResolver(tableFormat, schemaFormat string, d dialect.Dialect) *Resolver {
	if tableFormat == "" {
		tableFormat = TopicPlaceholder
	}
	return &Resolver{
		tableFormat:  tableFormat,
		schemaFormat: schemaFormat,
		dialect:      d,
	}
}

// ResolveTableName подставляет топик записи в шаблон имени таблицы
func (r *Resolver) ResolveTableName(rec record.SinkRecord) (string, error) {
	name := strings.ReplaceAll(r.tableFormat, TopicPlaceholder, rec.Topic)
	if strings.TrimSpace(name) == "" {
		return "", ErrEmptyDestination
	}
	return name, nil
}

// ResolveSchemaName строит имя схемы из полей ключа записи.
// Результат в нижнем регистре; пустой шаблон дает пустое имя.
func (r *Resolver) ResolveSchemaName(rec record.SinkRecord) (string, error) {
	if r.schemaFormat == "" {
		return "", nil
	}

	matches := placeholderPattern.FindAllStringSubmatchIndex(r.schemaFormat, -1)
	if len(matches) == 0 {
		return strings.ToLower(r.schemaFormat), nil
	}

	key, ok := rec.KeyStruct()
	if !ok {
		return "", fmt.Errorf("%w: schema name format %q needs a struct key, got %T", ErrMalformedKey, r.schemaFormat, rec.Key)
	}

	var sb strings.Builder
	last := 0
	for _, m := range matches {
		sb.WriteString(r.schemaFormat[last:m[0]])
		value, err := key.GetString(r.schemaFormat[m[2]:m[3]])
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedKey, err)
		}
		sb.WriteString(value)
		last = m[1]
	}
	sb.WriteString(r.schemaFormat[last:])

	return strings.ToLower(sb.String()), nil
}

// Resolve возвращает идентификатор таблицы назначения.
// Точки в имени делят его на catalog/schema/name, в том числе точки из топика.
// Ошибки оборачиваются в *ResolutionError.
func (r *Resolver) Resolve(rec record.SinkRecord) (dialect.TableID, error) {
	table, err := r.ResolveTableName(rec)
	if err != nil {
		return dialect.TableID{}, &ResolutionError{Record: rec.String(), Err: err}
	}

	schemaName, err := r.ResolveSchemaName(rec)
	if err != nil {
		return dialect.TableID{}, &ResolutionError{Record: rec.String(), Err: err}
	}
	if schemaName != "" {
		table = schemaName + "." + table
	}

	return r.dialect.ParseTableID(table), nil
}
