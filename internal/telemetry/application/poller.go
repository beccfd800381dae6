package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	masterdata "greengauge/internal/masterdata/domain"
	"greengauge/internal/observability/metrics"
	telemetry "greengauge/internal/telemetry/domain"
)

const (
	// DefaultPollInterval is the period between live fetches.
	DefaultPollInterval = 10 * time.Second
	// DefaultLookback is the relative range requested from the source.
	DefaultLookback = 7 * 24 * time.Hour
)

// ErrPollerStopped is returned when a stopped poller is restarted.
var ErrPollerStopped = errors.New("poller: stopped")

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Snapshot is the committed result of one fetch.
type Snapshot struct {
	Device     string               `json:"device"`
	Generation uint64               `json:"generation"`
	FetchedAt  time.Time            `json:"fetched_at"`
	Records    []telemetry.Record   `json:"-"`
	Stats      telemetry.GroupStats `json:"stats"`
	Err        error                `json:"-"`
}

// CommitFunc receives every committed snapshot. It runs while the poller
// holds its commit lock and must not call back into the poller.
type CommitFunc func(Snapshot)

// PollerConfig configures a Poller.
type PollerConfig struct {
	Interval time.Duration
	Lookback time.Duration
	Clock    Clock
	Logger   *log.Logger
	OnCommit CommitFunc
}

// Poller re-fetches one device on a fixed interval. Every fetch carries a
// generation and only the latest issued generation may commit.
type Poller struct {
	device   masterdata.Device
	source   telemetry.Source
	interval time.Duration
	lookback time.Duration
	clock    Clock
	logger   *log.Logger
	onCommit CommitFunc

	mu        sync.Mutex
	issued    uint64
	latest    Snapshot
	hasLatest bool
	running   bool
	stopped   bool
	cancel    context.CancelFunc
	loopDone  chan struct{}
	inflight  sync.WaitGroup
}

// NewPoller constructs a poller for device.
func NewPoller(device masterdata.Device, source telemetry.Source, cfg PollerConfig) (*Poller, error) {
	if source == nil {
		return nil, errors.New("poller: nil source")
	}
	if err := device.Validate(); err != nil {
		return nil, err
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
	return &Poller{
		device:   device,
		source:   source,
		interval: cfg.Interval,
		lookback: cfg.Lookback,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		onCommit: cfg.OnCommit,
	}, nil
}

// Start issues the first fetch immediately and then one per interval until
// Stop or ctx is done.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrPollerStopped
	}
	if p.running {
		p.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.running = true
	p.cancel = cancel
	p.loopDone = make(chan struct{})
	done := p.loopDone
	p.mu.Unlock()

	metrics.AddActivePollers(1)
	go p.loop(loopCtx, done)
	return nil
}

// Stop cancels the loop. Fetches still in flight finish in the background
// and their results are discarded.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.stopped = true
		p.mu.Unlock()
		return
	}
	p.running = false
	p.stopped = true
	cancel := p.cancel
	done := p.loopDone
	p.mu.Unlock()

	cancel()
	<-done
	metrics.AddActivePollers(-1)
	if p.logger != nil {
		p.logger.Printf("poller: stopped device=%s", p.device.Key)
	}
}

// Wait blocks until every issued fetch has returned.
func (p *Poller) Wait() {
	p.inflight.Wait()
}

// Latest returns the last committed snapshot.
func (p *Poller) Latest() (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest, p.hasLatest
}

// withLatest runs fn with the latest snapshot while holding the commit lock,
// so no commit can land between reading it and fn returning.
func (p *Poller) withLatest(fn func(Snapshot, bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.latest, p.hasLatest)
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick issues one fetch in its own goroutine so a slow source never delays
// the next tick.
func (p *Poller) tick(ctx context.Context) {
	gen, ok := p.issue()
	if !ok {
		return
	}
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		started := time.Now()
		snapshot := Load(ctx, p.source, p.device, p.lookback, p.clock.Now())
		snapshot.Generation = gen
		result := metrics.ResultSuccess
		if snapshot.Err != nil {
			result = metrics.ResultError
		}
		metrics.ObservePoll(p.device.Key, result, time.Since(started))
		p.commit(snapshot)
	}()
}

func (p *Poller) issue() (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return 0, false
	}
	p.issued++
	return p.issued, true
}

// commit applies snapshot if it is still the latest issued generation and
// the poller is running.
func (p *Poller) commit(snapshot Snapshot) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running || snapshot.Generation != p.issued {
		metrics.IncStaleResult(p.device.Key)
		return false
	}
	p.latest = snapshot
	p.hasLatest = true
	if snapshot.Err != nil && p.logger != nil {
		p.logger.Printf("poller: fetch failed device=%s gen=%d err=%v", p.device.Key, snapshot.Generation, snapshot.Err)
	}
	if p.onCommit != nil {
		p.onCommit(snapshot)
	}
	return true
}

// Load fetches and groups one device's telemetry without committing it
// anywhere.
func Load(ctx context.Context, source telemetry.Source, device masterdata.Device, lookback time.Duration, now time.Time) Snapshot {
	snapshot := Snapshot{Device: device.Key, FetchedAt: now}
	observations, err := source.Fetch(ctx, device.SourceID, lookback)
	if err != nil {
		var fetchErr *telemetry.FetchError
		if !errors.As(err, &fetchErr) {
			err = &telemetry.FetchError{SourceID: device.SourceID, Err: err}
		}
		snapshot.Err = err
		snapshot.Records = []telemetry.Record{}
		return snapshot
	}
	records, stats := telemetry.GroupWithStats(observations)
	snapshot.Records = records
	snapshot.Stats = stats
	recordStats(device.Key, stats)
	return snapshot
}

func recordStats(device string, stats telemetry.GroupStats) {
	metrics.AddDroppedObservations(device, metrics.ReasonInvalidTimestamp, stats.DroppedTimestamps)
	metrics.AddDroppedObservations(device, metrics.ReasonUnknownField, stats.DroppedFields)
	for field, count := range stats.CoercedByField {
		metrics.AddCoercedValues(device, string(field), count)
	}
}
