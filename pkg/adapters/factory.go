package adapters

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Constructor возвращает новый, не подключенный адаптер
type Constructor func() Adapter

// Registry - типы целевых БД и их конструкторы
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry создает пустой реестр
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register добавляет тип БД. Повторная регистрация заменяет конструктор.
func (r *Registry) Register(dbType string, constructor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[dbType] = constructor
}

func (r *Registry) IsRegistered(dbType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[dbType]
	return ok
}

// RegisteredTypes - типы БД по алфавиту, для сообщений об ошибках конфигурации
func (r *Registry) RegisteredTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.constructors))
	for dbType := range r.constructors {
		types = append(types, dbType)
	}
	sort.Strings(types)
	return types
}

// Lookup создает адаптер типа dbType без подключения
func (r *Registry) Lookup(dbType string) (Adapter, error) {
	r.mu.RLock()
	constructor, ok := r.constructors[dbType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported target type %q (registered: %v)", dbType, r.RegisteredTypes())
	}
	return constructor(), nil
}

// Open создает адаптер cfg.Type и подключает его к cfg.DSN
func (r *Registry) Open(ctx context.Context, cfg Config) (Adapter, error) {
	adapter, err := r.Lookup(cfg.Type)
	if err != nil {
		return nil, err
	}
	if err := adapter.Connect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Type, err)
	}
	return adapter, nil
}

var defaultRegistry = NewRegistry()

// Register вызывается из init() пакетов sqlite, postgres, mysql и mssql
func Register(dbType string, constructor Constructor) {
	defaultRegistry.Register(dbType, constructor)
}

func IsRegistered(dbType string) bool {
	return defaultRegistry.IsRegistered(dbType)
}

func RegisteredTypes() []string {
	return defaultRegistry.RegisteredTypes()
}

// New открывает адаптер целевой БД. Пакет адаптера должен быть импортирован,
// cmd/tdtpexport импортирует все четыре.
func New(ctx context.Context, cfg Config) (Adapter, error) {
	return defaultRegistry.Open(ctx, cfg)
}
