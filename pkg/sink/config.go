// Package sink записывает батчи записей в реляционные таблицы.
//
// Writer маршрутизирует записи батча по таблицам назначения, готовит
// таблицы (создание и расширение через dialect.Dialect), буферизует
// записи по таблицам и фиксирует весь батч одной транзакцией на
// единственном кэшированном соединении.
package sink

import (
	"fmt"
	"time"
)

// InsertMode - способ записи значений
type InsertMode string

const (
	InsertModeInsert InsertMode = "insert"
	InsertModeUpsert InsertMode = "upsert"
	InsertModeUpdate InsertMode = "update"
)

// PKMode - источник первичного ключа таблицы
type PKMode string

const (
	// PKModeNone - без первичного ключа
	PKModeNone PKMode = "none"
	// PKModeKafka - координаты записи (topic, partition, offset)
	PKModeKafka PKMode = "kafka"
	// PKModeRecordKey - поля ключа записи
	PKModeRecordKey PKMode = "record_key"
	// PKModeRecordValue - поля значения записи
	PKModeRecordValue PKMode = "record_value"
)

// TopicPlaceholder подставляется в шаблон имени таблицы
const TopicPlaceholder = "${topic}"

// Config - уже разобранная конфигурация записи
type Config struct {
	// TableNameFormat - шаблон имени таблицы, ${topic} заменяется именем топика
	TableNameFormat string
	// SchemaNameFormat - шаблон схемы с ${field} из полей ключа; пустой - без схемы
	SchemaNameFormat string

	InsertMode      InsertMode
	PKMode          PKMode
	PKFields        []string
	FieldsWhitelist []string

	AutoCreate    bool
	AutoEvolve    bool
	DeleteEnabled bool

	// BatchSize - досрочный flush буфера таблицы при накоплении (0 - без ограничения)
	BatchSize int

	// ConnectionAttempts - попытки установить соединение (включая первую)
	ConnectionAttempts int
	// ConnectionBackoff - фиксированная задержка между попытками соединения
	ConnectionBackoff time.Duration

	// MaxRetries - повторы батча после retryable ошибок
	MaxRetries int
	// RetryBackoff - задержка между повторами батча
	RetryBackoff time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		TableNameFormat:    TopicPlaceholder,
		InsertMode:         InsertModeInsert,
		PKMode:             PKModeNone,
		BatchSize:          3000,
		ConnectionAttempts: 3,
		ConnectionBackoff:  10 * time.Second,
		MaxRetries:         10,
		RetryBackoff:       3 * time.Second,
	}
}

// Validate проверяет согласованность параметров
func (c *Config) Validate() error {
	if c.TableNameFormat == "" {
		return fmt.Errorf("table name format is required")
	}

	switch c.InsertMode {
	case InsertModeInsert, InsertModeUpsert, InsertModeUpdate:
	default:
		return fmt.Errorf("invalid insert mode: %s (supported: insert, upsert, update)", c.InsertMode)
	}

	switch c.PKMode {
	case PKModeNone:
		if len(c.PKFields) > 0 {
			return fmt.Errorf("pk fields must be empty when pk mode is none")
		}
	case PKModeKafka:
		if len(c.PKFields) != 0 && len(c.PKFields) != 3 {
			return fmt.Errorf("pk mode kafka needs exactly 3 pk fields (topic, partition, offset), got %d", len(c.PKFields))
		}
	case PKModeRecordKey, PKModeRecordValue:
	default:
		return fmt.Errorf("invalid pk mode: %s (supported: none, kafka, record_key, record_value)", c.PKMode)
	}

	if c.InsertMode != InsertModeInsert && c.PKMode == PKModeNone {
		return fmt.Errorf("insert mode %s requires a primary key (pk mode is none)", c.InsertMode)
	}
	if c.DeleteEnabled && c.PKMode != PKModeRecordKey {
		return fmt.Errorf("delete enabled requires pk mode record_key, got %s", c.PKMode)
	}

	if c.BatchSize < 0 {
		return fmt.Errorf("batch size must be >= 0, got %d", c.BatchSize)
	}
	if c.ConnectionAttempts < 1 {
		return fmt.Errorf("connection attempts must be >= 1, got %d", c.ConnectionAttempts)
	}
	if c.ConnectionBackoff < 0 || c.RetryBackoff < 0 {
		return fmt.Errorf("backoff must be >= 0")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0, got %d", c.MaxRetries)
	}
	return nil
}
