package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
)

// manager caches one instance per provider + config hash so every session
// against the same store shares a client.
type manager struct {
	providers map[string]func(config map[string]interface{}) (VectorStore, error)
	instances map[string]VectorStore
	mu        sync.RWMutex
}

var defaultManager = &manager{
	providers: make(map[string]func(config map[string]interface{}) (VectorStore, error)),
	instances: make(map[string]VectorStore),
}

// GetManager gets the default vector store manager
func GetManager() Manager {
	return defaultManager
}

func getConfigHash(config map[string]interface{}) string {
	if config == nil {
		return "nil"
	}
	jsonBytes, err := json.Marshal(config)
	if err != nil {
		return "error"
	}
	hash := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(hash[:])
}

func (m *manager) GetVectorStore(provider string, config map[string]interface{}) (VectorStore, error) {
	m.mu.RLock()
	factory, exists := m.providers[provider]
	m.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported vector store provider: %s", provider)
	}

	cacheKey := provider + ":" + getConfigHash(config)

	m.mu.RLock()
	if instance, cached := m.instances[cacheKey]; cached {
		m.mu.RUnlock()
		return instance, nil
	}
	m.mu.RUnlock()

	instance, err := factory(config)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.instances[cacheKey] = instance
	m.mu.Unlock()

	return instance, nil
}

func (m *manager) ClearCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances = make(map[string]VectorStore)
}

func (m *manager) RegisterProvider(name string, factory func(config map[string]interface{}) (VectorStore, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[name] = factory
}

func (m *manager) ListProviders() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	providers := make([]string, 0, len(m.providers))
	for name := range m.providers {
		providers = append(providers, name)
	}
	return providers
}

// GetVectorStoreByProvider convenience method on the default manager
func GetVectorStoreByProvider(provider string, config map[string]interface{}) (VectorStore, error) {
	return defaultManager.GetVectorStore(provider, config)
}

// RegisterVectorStoreProvider convenience method on the default manager
func RegisterVectorStoreProvider(name string, factory func(config map[string]interface{}) (VectorStore, error)) {
	defaultManager.RegisterProvider(name, factory)
}
