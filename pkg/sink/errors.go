package sink

import (
	"errors"
	"fmt"

	"github.com/ruslano69/tdtp-sink/pkg/dialect"
)

var (
	// ErrEmptyDestination - имя таблицы назначения пустое после подстановки
	ErrEmptyDestination = errors.New("destination table name is empty")

	// ErrMalformedKey - шаблон схемы ссылается на поля ключа, но ключ не структура
	// или в нем нет строкового поля
	ErrMalformedKey = errors.New("malformed record key")
)

// ResolutionError - не удалось определить таблицу назначения записи.
// Не повторяется автоматически.
type ResolutionError struct {
	Record string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve destination of record %s: %v", e.Record, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// RecordError - запись нельзя записать в таблицу (нет схемы, неверный ключ...)
type RecordError struct {
	Record string
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("invalid record %s: %v", e.Record, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// TableAlterOrCreateError - ошибка уровня схемы: таблицу нельзя создать или расширить
type TableAlterOrCreateError struct {
	Table dialect.TableID
	Msg   string
	Err   error
}

func (e *TableAlterOrCreateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("table %s: %s: %v", e.Table, e.Msg, e.Err)
	}
	return fmt.Sprintf("table %s: %s", e.Table, e.Msg)
}

func (e *TableAlterOrCreateError) Unwrap() error { return e.Err }

// WriteError - ошибка уровня данных при выполнении DML
type WriteError struct {
	Table  dialect.TableID
	Record string
	Err    error
}

func (e *WriteError) Error() string {
	if e.Table == (dialect.TableID{}) {
		return fmt.Sprintf("failed to write batch: %v", e.Err)
	}
	if e.Record != "" {
		return fmt.Sprintf("failed to write record %s to %s: %v", e.Record, e.Table, e.Err)
	}
	return fmt.Sprintf("failed to write to %s: %v", e.Table, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ConnectionError - соединение не получено после всех попыток
type ConnectionError struct {
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to database after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// RollbackError - откат транзакции не удался. Всегда возвращается
// вместе с исходной ошибкой через errors.Join.
type RollbackError struct {
	Err error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback failed: %v", e.Err)
}

func (e *RollbackError) Unwrap() error { return e.Err }

// IsRetryable сообщает, имеет ли смысл повторить батч целиком.
// Повторяются ошибки данных и соединения; ошибки маршрутизации,
// записей и схемы - нет.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var (
		resErr    *ResolutionError
		recErr    *RecordError
		schemaErr *TableAlterOrCreateError
		writeErr  *WriteError
		connErr   *ConnectionError
	)
	switch {
	case errors.As(err, &resErr), errors.As(err, &recErr), errors.As(err, &schemaErr):
		return false
	case errors.As(err, &writeErr), errors.As(err, &connErr):
		return true
	default:
		return false
	}
}
