package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/dreamsxin/telemetry-sampler/types"
	"github.com/dreamsxin/telemetry-sampler/util"
)

// LagMonitor 调度延迟监视器
//
// 后台 goroutine 以固定分辨率睡眠，记录实际唤醒比预期晚的时间。
// 每次读取后清零，只反映上次读取以来的区间。
type LagMonitor struct {
	resolution time.Duration

	mu    sync.Mutex
	count int64
	sum   time.Duration
	max   time.Duration

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLagMonitor 创建延迟监视器
func NewLagMonitor(resolution time.Duration) *LagMonitor {
	if resolution <= 0 {
		resolution = types.DefaultLagResolution
	}
	return &LagMonitor{resolution: resolution}
}

// Start 启动后台测量，重复调用无副作用
func (l *LagMonitor) Start() {
	l.runMu.Lock()
	defer l.runMu.Unlock()

	if l.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})
	l.reset()
	go l.run(ctx, l.done)
}

// Stop 停止后台测量并等待 goroutine 退出
func (l *LagMonitor) Stop() {
	l.runMu.Lock()
	defer l.runMu.Unlock()

	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
	l.cancel = nil
	l.done = nil
}

// ReadAndReset 返回区间内延迟的均值和最大值（毫秒，两位小数）并清零
//
// 区间内没有测量值时返回 nil。
func (l *LagMonitor) ReadAndReset() (mean, max *float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count == 0 {
		return nil, nil
	}
	meanMs := float64(l.sum) / float64(l.count) / float64(time.Millisecond)
	maxMs := float64(l.max) / float64(time.Millisecond)
	l.count, l.sum, l.max = 0, 0, 0
	return types.Float(util.Round2(meanMs)), types.Float(util.Round2(maxMs))
}

func (l *LagMonitor) record(delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	l.mu.Lock()
	l.count++
	l.sum += delay
	if delay > l.max {
		l.max = delay
	}
	l.mu.Unlock()
}

func (l *LagMonitor) reset() {
	l.mu.Lock()
	l.count, l.sum, l.max = 0, 0, 0
	l.mu.Unlock()
}

func (l *LagMonitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(l.resolution)
	defer timer.Stop()
	armed := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			woke := time.Now()
			l.record(woke.Sub(armed) - l.resolution)
			armed = time.Now()
			timer.Reset(l.resolution)
		}
	}
}
