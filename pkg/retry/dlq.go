package retry

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// BatchRef - диапазон offset одного topic/partition в батче
type BatchRef struct {
	Topic       string `json:"topic"`
	Partition   int    `json:"partition"`
	FirstOffset int64  `json:"first_offset"`
	LastOffset  int64  `json:"last_offset"`
	Records     int    `json:"records"`
}

// DLQEntry - батч, не записанный после всех попыток
type DLQEntry struct {
	ID        string     `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	Attempts  int        `json:"attempts"`
	LastError string     `json:"last_error"`
	Batches   []BatchRef `json:"batches"`
}

// DLQ хранит записи в памяти и сохраняет их в JSON файл после каждого изменения.
// Сообщения не копируются: по координатам батч перечитывается из брокера.
type DLQ struct {
	mu      sync.RWMutex
	config  DLQConfig
	entries []DLQEntry
	counter int
}

// NewDLQ создает DLQ, загружая существующий файл
func NewDLQ(config DLQConfig) (*DLQ, error) {
	d := &DLQ{config: config}

	data, err := os.ReadFile(config.FilePath)
	switch {
	case os.IsNotExist(err):
		return d, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read DLQ file: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &d.entries); err != nil {
			return nil, fmt.Errorf("failed to unmarshal DLQ: %w", err)
		}
	}
	d.counter = len(d.entries)
	return d, nil
}

// Add добавляет запись и сохраняет файл
func (d *DLQ) Add(entry DLQEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.counter++
	entry.ID = fmt.Sprintf("batch-%d-%d", entry.Timestamp.Unix(), d.counter)
	d.entries = append(d.entries, entry)

	if d.config.MaxSize > 0 && len(d.entries) > d.config.MaxSize {
		d.entries = d.entries[len(d.entries)-d.config.MaxSize:]
	}

	if err := d.saveLocked(); err != nil {
		log.Error().Err(err).Str("path", d.config.FilePath).Msg("Failed to persist DLQ")
	}
	log.Warn().
		Str("id", entry.ID).
		Int("attempts", entry.Attempts).
		Str("error", entry.LastError).
		Msg("Batch moved to DLQ")
}

// Get возвращает копию записей
func (d *DLQ) Get() []DLQEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]DLQEntry, len(d.entries))
	copy(result, d.entries)
	return result
}

// Remove удаляет запись после повторной обработки батча
func (d *DLQ) Remove(id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.entries {
		if d.entries[i].ID == id {
			d.entries = append(d.entries[:i], d.entries[i+1:]...)
			return true, d.saveLocked()
		}
	}
	return false, nil
}

// Size возвращает количество записей
func (d *DLQ) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Save сохраняет DLQ в файл
func (d *DLQ) Save() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saveLocked()
}

func (d *DLQ) saveLocked() error {
	data, err := json.MarshalIndent(d.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ: %w", err)
	}
	if err := os.WriteFile(d.config.FilePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write DLQ file: %w", err)
	}
	return nil
}
