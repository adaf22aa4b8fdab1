package storage

import (
	"sync"
	"time"
)

// HealthData is the last observed state of a storage backend
type HealthData struct {
	LastCheck time.Time `json:"last_check"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
}

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthManager manages storage health status in memory
type HealthManager struct {
	mu     sync.RWMutex
	health map[string]*HealthData
}

// NewHealthManager creates a new health manager
func NewHealthManager() *HealthManager {
	return &HealthManager{
		health: make(map[string]*HealthData),
	}
}

// Record stores the outcome of a storage operation.
func (hm *HealthManager) Record(storageType string, err error) {
	h := &HealthData{LastCheck: time.Now(), Status: StatusHealthy}
	if err != nil {
		h.Status = StatusUnhealthy
		h.Error = err.Error()
	}
	hm.UpdateHealth(storageType, h)
}

// UpdateHealth updates the health status for a storage backend
func (hm *HealthManager) UpdateHealth(storageType string, health *HealthData) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	// Clone the health data to avoid concurrent modification
	healthCopy := *health
	hm.health[storageType] = &healthCopy
}

// GetHealth retrieves the health status for a specific storage backend
func (hm *HealthManager) GetHealth(storageType string) (*HealthData, bool) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	health, exists := hm.health[storageType]
	if !exists {
		return nil, false
	}

	// Return a copy to avoid concurrent modification
	healthCopy := *health
	return &healthCopy, true
}

// GetAllHealth retrieves all storage health statuses
func (hm *HealthManager) GetAllHealth() map[string]*HealthData {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	result := make(map[string]*HealthData, len(hm.health))
	for k, v := range hm.health {
		healthCopy := *v
		result[k] = &healthCopy
	}

	return result
}

// IsHealthy checks if a storage backend is healthy
func (hm *HealthManager) IsHealthy(storageType string, maxAge time.Duration) bool {
	health, exists := hm.GetHealth(storageType)
	if !exists {
		return false
	}

	// Check if health data is stale
	if time.Since(health.LastCheck) > maxAge {
		return false
	}

	return health.Status == StatusHealthy
}
