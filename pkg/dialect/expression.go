package dialect

import (
	"fmt"
	"strconv"
	"strings"
)

// QuoteMethod определяет, заключать ли идентификаторы в кавычки
type QuoteMethod string

const (
	QuoteAlways QuoteMethod = "always"
	QuoteNever  QuoteMethod = "never"
)

// ParseQuoteMethod разбирает значение из конфигурации
func ParseQuoteMethod(s string) (QuoteMethod, error) {
	switch QuoteMethod(strings.ToLower(s)) {
	case "", QuoteAlways:
		return QuoteAlways, nil
	case QuoteNever:
		return QuoteNever, nil
	default:
		return "", fmt.Errorf("invalid quote method: %s (supported: always, never)", s)
	}
}

// PlaceholderStyle - синтаксис параметров запроса
type PlaceholderStyle int

const (
	// PlaceholderQuestion - ?
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar - $1, $2 ...
	PlaceholderDollar
	// PlaceholderAtP - @p1, @p2 ...
	PlaceholderAtP
)

// Rules - правила квотирования и литералов СУБД
type Rules struct {
	OpenQuote   string
	CloseQuote  string
	Placeholder PlaceholderStyle
	// NationalLiterals - строковые литералы с префиксом N (N'...')
	NationalLiterals bool
}

// ExpressionBuilder накапливает текст SQL.
// SQL не проверяется, только квотирование и экранирование.
type ExpressionBuilder struct {
	sb       strings.Builder
	rules    Rules
	quoting  QuoteMethod
	argIndex int
}

// NewExpressionBuilder создает builder с правилами СУБД
func NewExpressionBuilder(rules Rules, quoting QuoteMethod) *ExpressionBuilder {
	if quoting == "" {
		quoting = QuoteAlways
	}
	return &ExpressionBuilder{rules: rules, quoting: quoting}
}

// Append добавляет значение: строки как есть, TableID по правилам идентификаторов
func (b *ExpressionBuilder) Append(v any) *ExpressionBuilder {
	switch x := v.(type) {
	case string:
		b.sb.WriteString(x)
	case TableID:
		b.AppendTable(x)
	default:
		fmt.Fprint(&b.sb, x)
	}
	return b
}

// AppendIdentifier добавляет имя колонки/таблицы с квотированием
func (b *ExpressionBuilder) AppendIdentifier(name string) *ExpressionBuilder {
	if b.quoting == QuoteNever || b.rules.OpenQuote == "" {
		b.sb.WriteString(name)
		return b
	}
	b.sb.WriteString(b.rules.OpenQuote)
	b.sb.WriteString(strings.ReplaceAll(name, b.rules.CloseQuote, b.rules.CloseQuote+b.rules.CloseQuote))
	b.sb.WriteString(b.rules.CloseQuote)
	return b
}

// AppendTable добавляет квалифицированное имя таблицы
func (b *ExpressionBuilder) AppendTable(t TableID) *ExpressionBuilder {
	if t.Catalog != "" {
		b.AppendIdentifier(t.Catalog).Append(".")
	}
	if t.Schema != "" {
		b.AppendIdentifier(t.Schema).Append(".")
	}
	return b.AppendIdentifier(t.Name)
}

// AppendQuotedLiteral добавляет строковый литерал, удваивая одинарные кавычки
func (b *ExpressionBuilder) AppendQuotedLiteral(s string) *ExpressionBuilder {
	if b.rules.NationalLiterals {
		b.sb.WriteByte('N')
	}
	b.sb.WriteByte('\'')
	b.sb.WriteString(strings.ReplaceAll(s, "'", "''"))
	b.sb.WriteByte('\'')
	return b
}

// AppendPlaceholder добавляет следующий параметр запроса
func (b *ExpressionBuilder) AppendPlaceholder() *ExpressionBuilder {
	b.argIndex++
	switch b.rules.Placeholder {
	case PlaceholderDollar:
		b.sb.WriteString("$" + strconv.Itoa(b.argIndex))
	case PlaceholderAtP:
		b.sb.WriteString("@p" + strconv.Itoa(b.argIndex))
	default:
		b.sb.WriteByte('?')
	}
	return b
}

// AppendList добавляет n элементов через разделитель
func (b *ExpressionBuilder) AppendList(sep string, n int, fn func(i int)) *ExpressionBuilder {
	for i := 0; i < n; i++ {
		if i > 0 {
			b.sb.WriteString(sep)
		}
		fn(i)
	}
	return b
}

// String возвращает накопленный текст
func (b *ExpressionBuilder) String() string {
	return b.sb.String()
}
