// Package transforms преобразует записи перед записью в базу.
package transforms

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ruslano69/tdtp-sink/pkg/core/record"
)

// Transformation преобразует одну запись
type Transformation interface {
	Apply(rec record.SinkRecord) (record.SinkRecord, error)
}

// Chain применяет преобразования по порядку
type Chain []Transformation

// Apply применяет все преобразования цепочки
func (c Chain) Apply(rec record.SinkRecord) (record.SinkRecord, error) {
	for _, t := range c {
		var err error
		rec, err = t.Apply(rec)
		if err != nil {
			return record.SinkRecord{}, err
		}
	}
	return rec, nil
}

// Constructor создает преобразование
type Constructor func() Transformation

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{
		KeyToValueName: func() Transformation { return KeyToValue{} },
	}
)

// Register регистрирует преобразование под именем конфигурации
func Register(name string, c Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = c
}

// Names возвращает имена зарегистрированных преобразований
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewChain создает цепочку по именам из конфигурации
func NewChain(names []string) (Chain, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	chain := make(Chain, 0, len(names))
	for _, name := range names {
		c, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown transform: %s (available transforms: %v)", name, sortedKeys(registry))
		}
		chain = append(chain, c())
	}
	return chain, nil
}

func sortedKeys(m map[string]Constructor) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
