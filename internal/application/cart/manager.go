package cart

import (
	"sync"
	"time"

	"github.com/bookwell/cartsync/internal/domain/catalog"
	"github.com/bookwell/cartsync/internal/domain/event"
	"github.com/bookwell/cartsync/internal/observability"
)

// Manager hands out one engine per owner, created lazily on first use and
// kept for the life of the process so repeated requests for the same owner
// hit the same mirror.
type Manager struct {
	remote    RemoteStore
	resolver  catalog.Resolver
	publisher event.Publisher
	tel       observability.Observability
	timeout   time.Duration

	mu      sync.RWMutex
	engines map[string]*Service
}

func NewManager(remote RemoteStore, resolver catalog.Resolver, publisher event.Publisher, tel observability.Observability, timeout time.Duration) *Manager {
	return &Manager{
		remote:    remote,
		resolver:  resolver,
		publisher: publisher,
		tel:       tel,
		timeout:   timeout,
		engines:   make(map[string]*Service),
	}
}

// ForOwner returns the owner's engine, creating it when absent.
func (m *Manager) ForOwner(ownerID string) *Service {
	m.mu.RLock()
	svc, ok := m.engines[ownerID]
	m.mu.RUnlock()
	if ok {
		return svc
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if svc, ok := m.engines[ownerID]; ok {
		return svc
	}
	svc = NewService(ownerID, m.remote, m.resolver, m.publisher, m.tel, m.timeout)
	m.engines[ownerID] = svc
	return svc
}

// ForEach visits every live engine; used by the snapshot refresher.
func (m *Manager) ForEach(fn func(*Service)) {
	m.mu.RLock()
	engines := make([]*Service, 0, len(m.engines))
	for _, svc := range m.engines {
		engines = append(engines, svc)
	}
	m.mu.RUnlock()

	for _, svc := range engines {
		fn(svc)
	}
}
