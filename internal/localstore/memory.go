package localstore

import (
	"context"
	"sync"
	"time"
)

// MemoryProvider keeps device stores in process. A device exists only once a
// key was written to it and is dropped when it was not written for ttl.
type MemoryProvider struct {
	mu        sync.Mutex
	devices   map[string]*memoryDevice
	ttl       time.Duration
	now       func() time.Time
	nextSweep time.Time
}

type memoryDevice struct {
	values  map[string]string
	written time.Time
}

func NewMemoryProvider(ttl time.Duration) *MemoryProvider {
	return &MemoryProvider{devices: make(map[string]*memoryDevice), ttl: ttl, now: time.Now}
}

func (p *MemoryProvider) Device(id string) Store {
	return &deviceStore{p: p, id: id}
}

// Len reports the number of devices currently held.
func (p *MemoryProvider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.devices)
}

func (p *MemoryProvider) expired(d *memoryDevice, now time.Time) bool {
	return p.ttl > 0 && now.Sub(d.written) >= p.ttl
}

// lookup must be called with mu held.
func (p *MemoryProvider) lookup(id string) *memoryDevice {
	d, ok := p.devices[id]
	if !ok {
		return nil
	}
	if p.expired(d, p.now()) {
		delete(p.devices, id)
		return nil
	}
	return d
}

// sweep must be called with mu held.
func (p *MemoryProvider) sweep(now time.Time) {
	if p.ttl <= 0 || now.Before(p.nextSweep) {
		return
	}
	for id, d := range p.devices {
		if p.expired(d, now) {
			delete(p.devices, id)
		}
	}
	p.nextSweep = now.Add(p.ttl / 4)
}

type deviceStore struct {
	p  *MemoryProvider
	id string
}

func (s *deviceStore) Get(_ context.Context, key string) (string, error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	d := s.p.lookup(s.id)
	if d == nil {
		return "", ErrNotFound
	}
	v, ok := d.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *deviceStore) Set(_ context.Context, key, value string) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	now := s.p.now()
	s.p.sweep(now)
	d := s.p.lookup(s.id)
	if d == nil {
		d = &memoryDevice{values: make(map[string]string)}
		s.p.devices[s.id] = d
	}
	d.values[key] = value
	d.written = now
	return nil
}

func (s *deviceStore) Delete(_ context.Context, keys ...string) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	d := s.p.lookup(s.id)
	if d == nil {
		return nil
	}
	for _, k := range keys {
		delete(d.values, k)
	}
	if len(d.values) == 0 {
		delete(s.p.devices, s.id)
	}
	return nil
}

// MemoryStore is a standalone store for callers that keep no device.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.values, k)
	}
	s.mu.Unlock()
	return nil
}
