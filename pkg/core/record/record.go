// Package record описывает записи, поступающие в sink из потока:
// topic/partition/offset, ключ и значение со схемами.
package record

import (
	"fmt"
	"time"

	"github.com/ruslano69/tdtp-sink/pkg/core/schema"
)

// SinkRecord - одна запись потока
type SinkRecord struct {
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time

	KeySchema *schema.Schema
	Key       any

	ValueSchema *schema.Schema
	Value       any
}

// NewRecord создает копию записи с новыми ключом и значением.
// Координаты (topic, partition, offset) сохраняются.
func (r SinkRecord) NewRecord(keySchema *schema.Schema, key any, valueSchema *schema.Schema, value any) SinkRecord {
	return SinkRecord{
		Topic:       r.Topic,
		Partition:   r.Partition,
		Offset:      r.Offset,
		Timestamp:   r.Timestamp,
		KeySchema:   keySchema,
		Key:         key,
		ValueSchema: valueSchema,
		Value:       value,
	}
}

// IsTombstone - запись без значения (удаление по ключу)
func (r SinkRecord) IsTombstone() bool {
	return r.Value == nil
}

// KeyStruct возвращает ключ как структуру, если он структурный
func (r SinkRecord) KeyStruct() (*schema.Struct, bool) {
	st, ok := r.Key.(*schema.Struct)
	return st, ok
}

// ValueStruct возвращает значение как структуру, если оно структурное
func (r SinkRecord) ValueStruct() (*schema.Struct, bool) {
	st, ok := r.Value.(*schema.Struct)
	return st, ok
}

// String возвращает координаты записи для логов и ошибок
func (r SinkRecord) String() string {
	return fmt.Sprintf("%s-%d@%d", r.Topic, r.Partition, r.Offset)
}
