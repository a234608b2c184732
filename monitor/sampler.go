package monitor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dreamsxin/telemetry-sampler/system"
	"github.com/dreamsxin/telemetry-sampler/types"
	"github.com/dreamsxin/telemetry-sampler/util"
)

// Option 采样器选项
type Option func(*Sampler)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(s *Sampler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProbe 替换平台探针
func WithProbe(p system.Probe) Option {
	return func(s *Sampler) {
		if p != nil {
			s.probe = p
		}
	}
}

// WithClock 替换时钟
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithObserver 设置采样观察者
func WithObserver(o Observer) Option {
	return func(s *Sampler) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithID 指定实例ID
func WithID(id string) Option {
	return func(s *Sampler) {
		if id != "" {
			s.id = id
		}
	}
}

// Sampler 周期采样器
//
// 每个周期读取探针、计算增量、读取调度延迟，组装成一条 Sample 追加到历史记录。
// 采样之间不会重叠；Stop 返回后不会再追加新的采样。
// 调度延迟从 Start 开始测量，因此每次 Start 后的第一条采样延迟字段为 nil。
type Sampler struct {
	id       string
	cfg      types.SamplerConfig
	probe    system.Probe
	calc     *Calculator
	lag      *LagMonitor
	history  *History
	logger   *zap.Logger
	observer Observer
	now      func() time.Time

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	tickMu sync.Mutex

	subMu   sync.RWMutex
	subs    map[uint64]func(types.Sample)
	nextSub uint64
}

// NewSampler 创建采样器，配置在创建时确定
func NewSampler(cfg types.SamplerConfig, opts ...Option) *Sampler {
	cfg = cfg.Normalize()
	s := &Sampler{
		id:       util.NewInstanceID(),
		cfg:      cfg,
		probe:    system.NewHostProbe(),
		calc:     NewCalculator(),
		lag:      NewLagMonitor(cfg.LagResolution),
		history:  NewHistory(cfg.Capacity()),
		logger:   zap.NewNop(),
		observer: nopObserver{},
		now:      time.Now,
		subs:     make(map[uint64]func(types.Sample)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("sampler_id", s.id))
	return s
}

// ID 实例ID
func (s *Sampler) ID() string {
	return s.id
}

// Config 采样配置
func (s *Sampler) Config() types.SamplerConfig {
	return s.cfg
}

// Capacity 历史记录容量
func (s *Sampler) Capacity() int {
	return s.history.Capacity()
}

// Running 是否正在采样
func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start 立即同步采样一次，然后按间隔周期采样
func (s *Sampler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.ctx = ctx
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	s.lag.Start()
	s.collect(ctx)
	go s.loop(ctx, s.done)

	s.logger.Info("sampler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Float64("retention_hours", s.cfg.RetentionHours),
		zap.Int("capacity", s.history.Capacity()))
}

// Stop 停止周期采样，等待进行中的采样结束并丢弃其结果
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	<-s.done
	// 等待进行中的 CollectNow 结束
	s.tickMu.Lock()
	s.tickMu.Unlock()
	s.lag.Stop()
	s.running = false
	s.ctx = nil
	s.cancel = nil

	s.logger.Info("sampler stopped", zap.Int("history_len", s.history.Len()))
}

// CollectNow 运行中手动执行一次采样，与周期采样互斥
//
// 未启动或已停止时不采样，返回 false。
func (s *Sampler) CollectNow() (types.Sample, bool) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		return types.Sample{}, false
	}
	return s.collect(ctx)
}

// Latest 最近一次采样
func (s *Sampler) Latest() (types.Sample, bool) {
	return s.history.Latest()
}

// History 最近 hours 小时的采样
func (s *Sampler) History(hours int) []types.Sample {
	return s.history.Window(hours, s.now())
}

// Subscribe 注册采样回调，返回取消函数
//
// 回调在采样 goroutine 中同步执行，不能在回调里调用 Stop。
func (s *Sampler) Subscribe(fn func(types.Sample)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

// loop 采样循环
func (s *Sampler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.collect(ctx)
		}
	}
}

// collect 执行一次采样，ctx 已取消时丢弃结果
func (s *Sampler) collect(ctx context.Context) (types.Sample, bool) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	started := time.Now()
	sample := s.assemble(ctx)
	if ctx.Err() != nil {
		s.logger.Debug("discarding sample collected during stop")
		return sample, false
	}

	n := s.history.Append(sample)
	s.observer.TickCompleted(time.Since(started), n)
	s.notify(sample)
	return sample.Clone(), true
}

func (s *Sampler) notify(sample types.Sample) {
	s.subMu.RLock()
	subs := make([]func(types.Sample), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range subs {
		s.deliver(fn, sample.Clone())
	}
}

func (s *Sampler) deliver(fn func(types.Sample), sample types.Sample) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("sample subscriber panicked", zap.Any("panic", r))
		}
	}()
	fn(sample)
}

// assemble 组装一条采样，任何单项失败只影响对应字段
func (s *Sampler) assemble(ctx context.Context) types.Sample {
	now := s.now()

	ts := now.UnixMilli()
	if last, ok := s.history.Latest(); ok && last.Timestamp > ts {
		ts = last.Timestamp
	}
	sample := types.Sample{
		Timestamp: ts,
		UptimeSec: util.Round2(now.Sub(s.probe.StartTime()).Seconds()),
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.Interval)
	defer cancel()

	cores := runtime.NumCPU()
	s.guard("cpu", func() error {
		t, err := s.probe.CPUTimes(probeCtx)
		if err != nil {
			return err
		}
		if t.Cores > 0 {
			cores = t.Cores
		}
		sample.SystemCPUPercent = s.calc.SystemCPUPercent(t)
		return nil
	})

	s.guard("process_cpu", func() error {
		d, err := s.probe.ProcessCPUTime(probeCtx)
		if err != nil {
			s.calc.DropProcessCPU()
			return err
		}
		sample.ProcessCPUPercent = s.calc.ProcessCPUPercent(d, now, cores)
		return nil
	})

	s.guard("process_memory", func() error {
		rss, err := s.probe.ProcessRSS(probeCtx)
		if err != nil {
			return err
		}
		sample.RSSMB = types.Float(util.BytesToMB(rss))
		return nil
	})

	s.guard("heap", func() error {
		heap := s.probe.Heap()
		sample.HeapUsedMB = types.Float(util.BytesToMB(heap.Used))
		sample.HeapTotalMB = types.Float(util.BytesToMB(heap.Total))
		return nil
	})

	s.guard("host_memory", func() error {
		m, err := s.probe.HostMemory(probeCtx)
		if err != nil {
			return err
		}
		pct, ok := m.UsedPercent()
		if !ok {
			return fmt.Errorf("invalid host memory total=%d available=%d: %w", m.Total, m.Available, system.ErrUnavailable)
		}
		sample.SystemMemPercent = types.Float(util.Round2(util.ClampPercent(pct)))
		return nil
	})

	s.guard("load", func() error {
		l, err := s.probe.LoadAverage(probeCtx)
		if err != nil {
			return err
		}
		if l < 0 {
			return fmt.Errorf("negative load average %v: %w", l, system.ErrUnavailable)
		}
		sample.Load1 = types.Float(util.Round2(l))
		return nil
	})

	s.guard("lag", func() error {
		sample.LagMeanMs, sample.LagMaxMs = s.lag.ReadAndReset()
		return nil
	})

	s.guard("handles", func() error {
		n, err := s.probe.ActiveHandles(probeCtx)
		if err != nil {
			return err
		}
		sample.ActiveHandles = types.Int(n)
		return nil
	})

	s.guard("goroutines", func() error {
		sample.ActiveRequests = types.Int(s.probe.Goroutines())
		return nil
	})

	s.guard("network", func() error {
		var counters *system.NetCounters
		n, err := s.probe.NetCounters(probeCtx)
		if err == nil {
			counters = &n
		}
		rates := s.calc.NetRates(counters, now)
		sample.NetRxBps, sample.NetTxBps = rates.RxBps, rates.TxBps
		sample.NetRxBytes, sample.NetTxBytes = rates.RxBytes, rates.TxBytes
		return err
	})

	return sample
}

// guard 执行单项读取，错误和 panic 都只记录不中断采样
func (s *Sampler) guard(name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			s.probeFailed(name, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := fn(); err != nil {
		s.probeFailed(name, err)
	}
}

func (s *Sampler) probeFailed(name string, err error) {
	s.observer.ProbeFailed(name)
	if errors.Is(err, system.ErrUnavailable) {
		s.logger.Debug("metric unavailable", zap.String("probe", name), zap.Error(err))
		return
	}
	s.logger.Debug("probe failed", zap.String("probe", name), zap.Error(err))
}

var _ Monitor = (*Sampler)(nil)
