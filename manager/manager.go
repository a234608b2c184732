package manager

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dreamsxin/telemetry-sampler/metrics"
	"github.com/dreamsxin/telemetry-sampler/monitor"
	"github.com/dreamsxin/telemetry-sampler/types"
	"github.com/dreamsxin/telemetry-sampler/util"
)

// DefaultStreamBuffer is used when Subscribe is called with a non-positive buffer.
const DefaultStreamBuffer = 16

// TelemetryManager runs one sampler with its metrics exporter and fans samples
// out to stream subscribers.
type TelemetryManager struct {
	sampler  *monitor.Sampler
	exporter *metrics.Exporter
	logger   *zap.Logger

	mu      sync.RWMutex
	streams map[uint64]chan types.Sample
	nextID  uint64
	closed  bool

	unsubscribe func()
	shutdown    chan struct{}
	once        sync.Once
}

// NewTelemetryManager creates a manager. A nil registerer gets a private registry,
// a nil logger discards output. Extra sampler options are applied last.
func NewTelemetryManager(cfg types.SamplerConfig, reg prometheus.Registerer, logger *zap.Logger, opts ...monitor.Option) (*TelemetryManager, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	id := util.NewInstanceID()
	exporter := metrics.New(reg, prometheus.Labels{"sampler_id": id})

	base := []monitor.Option{
		monitor.WithID(id),
		monitor.WithLogger(logger),
		monitor.WithObserver(exporter),
	}
	sampler := monitor.NewSampler(cfg, append(base, opts...)...)

	if err := exporter.Watch(sampler); err != nil {
		return nil, fmt.Errorf("failed to register sample collector: %w", err)
	}

	tm := &TelemetryManager{
		sampler:  sampler,
		exporter: exporter,
		logger:   logger.With(zap.String("sampler_id", sampler.ID())),
		streams:  make(map[uint64]chan types.Sample),
		shutdown: make(chan struct{}),
	}
	tm.unsubscribe = sampler.Subscribe(tm.broadcast)
	return tm, nil
}

// ID returns the sampler instance id
func (tm *TelemetryManager) ID() string {
	return tm.sampler.ID()
}

// Config returns the resolved sampler configuration
func (tm *TelemetryManager) Config() types.SamplerConfig {
	return tm.sampler.Config()
}

// Capacity returns the history capacity
func (tm *TelemetryManager) Capacity() int {
	return tm.sampler.Capacity()
}

// Sampler exposes the underlying sampler
func (tm *TelemetryManager) Sampler() *monitor.Sampler {
	return tm.sampler
}

// Start begins sampling. It is a no-op after Shutdown.
func (tm *TelemetryManager) Start() {
	select {
	case <-tm.shutdown:
		return
	default:
	}
	tm.sampler.Start()
}

// Run starts sampling and blocks until ctx is done, then shuts down.
func (tm *TelemetryManager) Run(ctx context.Context) {
	tm.Start()
	select {
	case <-ctx.Done():
	case <-tm.shutdown:
	}
	tm.Shutdown()
}

// Done is closed once Shutdown has completed.
func (tm *TelemetryManager) Done() <-chan struct{} {
	return tm.shutdown
}

// Latest returns the newest sample
func (tm *TelemetryManager) Latest() (types.Sample, bool) {
	return tm.sampler.Latest()
}

// History returns the samples of the last hours hours
func (tm *TelemetryManager) History(hours int) []types.Sample {
	return tm.sampler.History(hours)
}

// Subscribe registers a stream of new samples. Slow readers miss samples
// rather than stall the sampler. The cancel func closes the channel.
func (tm *TelemetryManager) Subscribe(buffer int) (<-chan types.Sample, func()) {
	if buffer <= 0 {
		buffer = DefaultStreamBuffer
	}
	ch := make(chan types.Sample, buffer)

	tm.mu.Lock()
	if tm.closed {
		tm.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := tm.nextID
	tm.nextID++
	tm.streams[id] = ch
	tm.mu.Unlock()

	tm.logger.Debug("stream subscribed", zap.Uint64("stream", id))

	return ch, func() {
		tm.mu.Lock()
		defer tm.mu.Unlock()
		if c, ok := tm.streams[id]; ok {
			delete(tm.streams, id)
			close(c)
		}
	}
}

// Streams returns the number of open subscriptions
func (tm *TelemetryManager) Streams() int {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return len(tm.streams)
}

// Shutdown stops sampling and closes every stream. Safe to call more than once.
func (tm *TelemetryManager) Shutdown() {
	tm.once.Do(func() {
		tm.logger.Info("shutting down telemetry manager")
		tm.sampler.Stop()
		tm.unsubscribe()

		tm.mu.Lock()
		tm.closed = true
		for id, ch := range tm.streams {
			delete(tm.streams, id)
			close(ch)
		}
		tm.mu.Unlock()

		close(tm.shutdown)
		tm.logger.Info("telemetry manager shutdown complete")
	})
}

// broadcast runs on the sampling goroutine and must not block.
func (tm *TelemetryManager) broadcast(sample types.Sample) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	for id, ch := range tm.streams {
		select {
		case ch <- sample.Clone():
		default:
			tm.exporter.StreamDropped()
			tm.logger.Debug("stream full, dropping sample", zap.Uint64("stream", id))
		}
	}
}
