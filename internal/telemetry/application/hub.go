package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	masterdata "greengauge/internal/masterdata/domain"
	telemetry "greengauge/internal/telemetry/domain"
)

const subscriberBuffer = 4

// Hub owns one poller per watched device. The first subscriber starts the
// poller and the last one to leave stops it.
type Hub struct {
	catalog  *masterdata.Catalog
	source   telemetry.Source
	interval time.Duration
	lookback time.Duration
	clock    Clock
	logger   *log.Logger

	mu      sync.Mutex
	entries map[string]*hubEntry
}

// Lock order is Hub.mu, then Poller.mu, then hubEntry.mu.
type hubEntry struct {
	poller *Poller

	mu          sync.Mutex
	closed      bool
	subscribers map[chan Snapshot]struct{}
}

func (e *hubEntry) add(ch chan Snapshot, latest Snapshot, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers[ch] = struct{}{}
	if ok {
		ch <- latest
	}
}

// remove drops ch and reports whether it was the last subscriber.
func (e *hubEntry) remove(ch chan Snapshot) (removed, last bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.subscribers[ch]; !ok {
		return false, false
	}
	delete(e.subscribers, ch)
	close(ch)
	if len(e.subscribers) == 0 {
		e.closed = true
		return true, true
	}
	return true, false
}

func (e *hubEntry) closeAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	for ch := range e.subscribers {
		delete(e.subscribers, ch)
		close(ch)
	}
}

func (e *hubEntry) fanout(snapshot Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	for ch := range e.subscribers {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// HubConfig configures a Hub.
type HubConfig struct {
	Interval time.Duration
	Lookback time.Duration
	Clock    Clock
	Logger   *log.Logger
}

// NewHub constructs a hub.
func NewHub(catalog *masterdata.Catalog, source telemetry.Source, cfg HubConfig) (*Hub, error) {
	if catalog == nil {
		return nil, errors.New("hub: nil catalog")
	}
	if source == nil {
		return nil, errors.New("hub: nil source")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	return &Hub{
		catalog:  catalog,
		source:   source,
		interval: cfg.Interval,
		lookback: cfg.Lookback,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		entries:  make(map[string]*hubEntry),
	}, nil
}

// Subscription delivers committed snapshots for one device.
type Subscription struct {
	C <-chan Snapshot

	once  sync.Once
	close func()
}

// Close leaves the device. It is safe to call more than once.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(s.close)
}

// Subscribe watches deviceKey, starting its poller when needed. The latest
// committed snapshot, if any, is delivered first.
func (h *Hub) Subscribe(ctx context.Context, deviceKey string) (*Subscription, error) {
	device, err := h.catalog.Get(deviceKey)
	if err != nil {
		return nil, err
	}

	ch := make(chan Snapshot, subscriberBuffer)
	h.mu.Lock()
	entry, ok := h.entries[device.Key]
	if !ok {
		entry = &hubEntry{subscribers: make(map[chan Snapshot]struct{})}
		poller, err := NewPoller(device, h.source, PollerConfig{
			Interval: h.interval,
			Lookback: h.lookback,
			Clock:    h.clock,
			Logger:   h.logger,
			OnCommit: entry.fanout,
		})
		if err != nil {
			h.mu.Unlock()
			return nil, err
		}
		entry.poller = poller
		h.entries[device.Key] = entry
		// Pollers outlive the request that started them.
		if err := poller.Start(context.WithoutCancel(ctx)); err != nil {
			delete(h.entries, device.Key)
			h.mu.Unlock()
			return nil, err
		}
		if h.logger != nil {
			h.logger.Printf("hub: poller started device=%s", device.Key)
		}
	}
	entry.poller.withLatest(func(latest Snapshot, ok bool) { entry.add(ch, latest, ok) })
	h.mu.Unlock()

	sub := &Subscription{C: ch}
	sub.close = func() { h.release(device.Key, entry, ch) }
	return sub, nil
}

func (h *Hub) release(key string, entry *hubEntry, ch chan Snapshot) {
	h.mu.Lock()
	removed, last := entry.remove(ch)
	if !removed {
		h.mu.Unlock()
		return
	}
	if last && h.entries[key] == entry {
		delete(h.entries, key)
	}
	h.mu.Unlock()

	if last {
		entry.poller.Stop()
		if h.logger != nil {
			h.logger.Printf("hub: poller released device=%s", key)
		}
	}
}

// Snapshot returns the live snapshot for deviceKey, or a fresh uncommitted
// fetch when no poller has committed one yet.
func (h *Hub) Snapshot(ctx context.Context, deviceKey string) (masterdata.Device, Snapshot, error) {
	device, err := h.catalog.Get(deviceKey)
	if err != nil {
		return masterdata.Device{}, Snapshot{}, err
	}
	h.mu.Lock()
	entry := h.entries[device.Key]
	h.mu.Unlock()
	if entry != nil {
		if latest, ok := entry.poller.Latest(); ok {
			return device, latest, nil
		}
	}
	return device, Load(ctx, h.source, device, h.lookback, h.clock.Now()), nil
}

// Watching reports whether deviceKey has a running poller.
func (h *Hub) Watching(deviceKey string) bool {
	h.mu.Lock()
	entry := h.entries[deviceKey]
	h.mu.Unlock()
	return entry != nil && entry.poller.Running()
}

// Close stops every poller.
func (h *Hub) Close() {
	h.mu.Lock()
	entries := h.entries
	h.entries = make(map[string]*hubEntry)
	for _, entry := range entries {
		entry.closeAll()
	}
	h.mu.Unlock()
	for _, entry := range entries {
		entry.poller.Stop()
	}
}
