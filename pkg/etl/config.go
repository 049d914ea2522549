// Package etl связывает источник сообщений, преобразования и sink
// в один конвейер, настраиваемый YAML файлом.
package etl

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ruslano69/tdtp-sink/pkg/brokers"
	"github.com/ruslano69/tdtp-sink/pkg/dialect"
	"github.com/ruslano69/tdtp-sink/pkg/resultlog"
	"github.com/ruslano69/tdtp-sink/pkg/sink"
)

// SinkConfig содержит полную конфигурацию sink
type SinkConfig struct {
	Name            string           `yaml:"name"`
	Connection      ConnectionConfig `yaml:"connection"`
	Table           TableConfig      `yaml:"table"`
	InsertMode      string           `yaml:"insert_mode"` // insert, upsert, update
	PK              PKConfig         `yaml:"pk"`
	FieldsWhitelist []string         `yaml:"fields_whitelist"`
	AutoCreate      bool             `yaml:"auto_create"`
	AutoEvolve      bool             `yaml:"auto_evolve"`
	DeleteEnabled   bool             `yaml:"delete_enabled"`
	BatchSize       int              `yaml:"batch_size"`
	MaxRetries      int              `yaml:"max_retries"`
	RetryBackoff    time.Duration    `yaml:"retry_backoff"`
	Source          SourceConfig     `yaml:"source"`
	Transforms      []string         `yaml:"transforms"`
	ResultLog       resultlog.Config `yaml:"result_log"`
	Metrics         MetricsConfig    `yaml:"metrics"`
	DLQ             DLQConfig        `yaml:"dlq"`
}

// ConnectionConfig определяет подключение к базе назначения
type ConnectionConfig struct {
	Dialect          string        `yaml:"dialect"`           // postgres, timescale, mysql, mssql, sqlite
	URL              string        `yaml:"url"`               // DSN драйвера
	Attempts         int           `yaml:"attempts"`          // Попытки соединения (включая первую)
	Backoff          time.Duration `yaml:"backoff"`           // Задержка между попытками
	Timezone         string        `yaml:"timezone"`          // Зона для TIMESTAMP (по умолчанию UTC)
	QuoteIdentifiers string        `yaml:"quote_identifiers"` // always, never
}

// TableConfig определяет шаблоны имен таблиц
type TableConfig struct {
	NameFormat       string `yaml:"name_format"`        // ${topic} заменяется именем топика
	SchemaNameFormat string `yaml:"schema_name_format"` // ${field} из полей ключа
}

// PKConfig определяет первичный ключ таблиц
type PKConfig struct {
	Mode   string   `yaml:"mode"` // none, kafka, record_key, record_value
	Fields []string `yaml:"fields"`
}

// SourceConfig определяет брокер и формат сообщений
type SourceConfig struct {
	brokers.Config `yaml:",inline"`
	SchemasEnable  bool          `yaml:"schemas_enable"` // JSON с конвертом {schema, payload}
	PollRecords    int           `yaml:"poll_records"`   // Максимум сообщений в батче
	PollWait       time.Duration `yaml:"poll_wait"`      // Максимальное ожидание батча
}

// MetricsConfig определяет HTTP endpoint метрик
type MetricsConfig struct {
	Addr string `yaml:"addr"` // пустой - endpoint не запускается
}

// DLQConfig определяет файл батчей, не записанных после всех повторов
type DLQConfig struct {
	Enabled  bool   `yaml:"enabled"`
	FilePath string `yaml:"file_path"`
	MaxSize  int    `yaml:"max_size"`
}

// DefaultSinkConfig возвращает конфигурацию со значениями по умолчанию.
// LoadConfig накладывает YAML поверх нее, поэтому явный 0 в файле сохраняется.
func DefaultSinkConfig() *SinkConfig {
	def := sink.DefaultConfig()
	return &SinkConfig{
		Connection: ConnectionConfig{
			Attempts: def.ConnectionAttempts,
			Backoff:  def.ConnectionBackoff,
		},
		InsertMode:   string(def.InsertMode),
		PK:           PKConfig{Mode: string(def.PKMode)},
		BatchSize:    def.BatchSize,
		MaxRetries:   def.MaxRetries,
		RetryBackoff: def.RetryBackoff,
	}
}

// LoadConfig загружает конфигурацию из YAML файла
func LoadConfig(path string) (*SinkConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig разбирает YAML конфигурацию
func ParseConfig(data []byte) (*SinkConfig, error) {
	config := DefaultSinkConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.SetDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// SetDefaults устанавливает значения по умолчанию для необязательных полей
func (c *SinkConfig) SetDefaults() {
	c.Connection.Dialect = strings.ToLower(c.Connection.Dialect)
	c.InsertMode = strings.ToLower(c.InsertMode)
	c.PK.Mode = strings.ToLower(c.PK.Mode)
	c.Source.Type = strings.ToLower(c.Source.Type)

	if c.Table.NameFormat == "" {
		c.Table.NameFormat = sink.TopicPlaceholder
	}
	if c.Connection.Timezone == "" {
		c.Connection.Timezone = "UTC"
	}
	if c.Source.PollRecords == 0 {
		c.Source.PollRecords = 500
	}
	if c.Source.PollWait == 0 {
		c.Source.PollWait = 5 * time.Second
	}

	if c.ResultLog.Enabled {
		if c.ResultLog.Name == "" {
			c.ResultLog.Name = c.Name
		}
		if c.ResultLog.TTL == 0 {
			c.ResultLog.TTL = 3600
		}
	}

	if c.DLQ.Enabled {
		if c.DLQ.FilePath == "" {
			c.DLQ.FilePath = "./dlq.json"
		}
		if c.DLQ.MaxSize == 0 {
			c.DLQ.MaxSize = 10000
		}
	}
}

// Validate проверяет корректность конфигурации
func (c *SinkConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("sink name is required")
	}

	if err := c.Connection.Validate(); err != nil {
		return fmt.Errorf("connection: %w", err)
	}

	wc := c.WriterConfig()
	if err := wc.Validate(); err != nil {
		return err
	}

	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}

	if c.ResultLog.Enabled && c.ResultLog.Address == "" {
		return fmt.Errorf("result_log: address is required when enabled")
	}

	return nil
}

// Validate проверяет параметры подключения
func (cc *ConnectionConfig) Validate() error {
	if cc.Dialect == "" {
		return fmt.Errorf("dialect is required")
	}
	if cc.URL == "" {
		return fmt.Errorf("url is required")
	}
	if _, err := time.LoadLocation(cc.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cc.Timezone, err)
	}
	if _, err := dialect.ParseQuoteMethod(cc.QuoteIdentifiers); err != nil {
		return err
	}
	return nil
}

// Validate проверяет параметры источника
func (s *SourceConfig) Validate() error {
	switch s.Type {
	case "kafka":
		if len(s.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required")
		}
		if len(s.Topics) == 0 {
			return fmt.Errorf("kafka topics are required")
		}
	case "rabbitmq":
		if s.Queue == "" {
			return fmt.Errorf("rabbitmq queue is required")
		}
	default:
		return fmt.Errorf("unsupported source type '%s', must be one of: kafka, rabbitmq", s.Type)
	}

	if s.PollRecords < 1 {
		return fmt.Errorf("poll_records must be >= 1, got %d", s.PollRecords)
	}
	return nil
}

// WriterConfig преобразует конфигурацию в sink.Config
func (c *SinkConfig) WriterConfig() sink.Config {
	return sink.Config{
		TableNameFormat:    c.Table.NameFormat,
		SchemaNameFormat:   c.Table.SchemaNameFormat,
		InsertMode:         sink.InsertMode(c.InsertMode),
		PKMode:             sink.PKMode(c.PK.Mode),
		PKFields:           c.PK.Fields,
		FieldsWhitelist:    c.FieldsWhitelist,
		AutoCreate:         c.AutoCreate,
		AutoEvolve:         c.AutoEvolve,
		DeleteEnabled:      c.DeleteEnabled,
		BatchSize:          c.BatchSize,
		ConnectionAttempts: c.Connection.Attempts,
		ConnectionBackoff:  c.Connection.Backoff,
		MaxRetries:         c.MaxRetries,
		RetryBackoff:       c.RetryBackoff,
	}
}

// DialectConfig возвращает параметры диалекта
func (c *SinkConfig) DialectConfig() (dialect.Config, error) {
	loc, err := time.LoadLocation(c.Connection.Timezone)
	if err != nil {
		return dialect.Config{}, fmt.Errorf("invalid timezone %q: %w", c.Connection.Timezone, err)
	}
	quote, err := dialect.ParseQuoteMethod(c.Connection.QuoteIdentifiers)
	if err != nil {
		return dialect.Config{}, err
	}
	return dialect.Config{QuoteIdentifiers: quote, TimeZone: loc}, nil
}
