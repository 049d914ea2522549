package dialect

import (
	"fmt"
	"sort"
	"sync"
)

// Constructor создает экземпляр диалекта с конфигурацией
type Constructor func(cfg Config) Dialect

// Factory - реестр диалектов по имени
type Factory struct {
	registry map[string]Constructor
	mu       sync.RWMutex
}

// NewFactory создает пустую фабрику
func NewFactory() *Factory {
	return &Factory{
		registry: make(map[string]Constructor),
	}
}

// Register регистрирует конструктор диалекта
func (f *Factory) Register(name string, constructor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registry[name] = constructor
}

// IsRegistered проверяет, зарегистрирован ли диалект
func (f *Factory) IsRegistered(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.registry[name]
	return ok
}

// Names возвращает отсортированный список зарегистрированных диалектов
func (f *Factory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.registry))
	for name := range f.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New создает диалект по имени
func (f *Factory) New(name string, cfg Config) (Dialect, error) {
	f.mu.RLock()
	constructor, ok := f.registry[name]
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown dialect: %s (available dialects: %v)", name, f.Names())
	}
	return constructor(cfg), nil
}

// ========== Global Factory ==========

var globalFactory = NewFactory()

// Register регистрирует диалект в глобальной фабрике.
// Вызывается в init() пакетов диалектов.
func Register(name string, constructor Constructor) {
	globalFactory.Register(name, constructor)
}

// New создает диалект из глобальной фабрики
func New(name string, cfg Config) (Dialect, error) {
	return globalFactory.New(name, cfg)
}

// IsRegistered проверяет регистрацию в глобальной фабрике
func IsRegistered(name string) bool {
	return globalFactory.IsRegistered(name)
}

// RegisteredNames возвращает имена диалектов глобальной фабрики
func RegisteredNames() []string {
	return globalFactory.Names()
}
