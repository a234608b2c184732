package monitor

import (
	"time"

	"github.com/dreamsxin/telemetry-sampler/system"
	"github.com/dreamsxin/telemetry-sampler/types"
	"github.com/dreamsxin/telemetry-sampler/util"
)

// cpuSnapshot 上一次的系统CPU时间
type cpuSnapshot struct {
	idle  float64
	total float64
}

// processSnapshot 上一次的进程CPU时间
type processSnapshot struct {
	cpuTime time.Duration
	at      time.Time
}

// netSnapshot 上一次的网卡累计计数
type netSnapshot struct {
	rx uint64
	tx uint64
	at time.Time
}

// NetRates 网络速率（字节/秒）与累计字节数
type NetRates struct {
	RxBps   *float64
	TxBps   *float64
	RxBytes *uint64
	TxBytes *uint64
}

// Calculator 根据前后两次累计计数计算使用率和速率
//
// 只应由采样循环调用，不是并发安全的。
type Calculator struct {
	cpu  *cpuSnapshot
	proc *processSnapshot
	net  *netSnapshot
}

// NewCalculator 创建增量计算器
func NewCalculator() *Calculator {
	return &Calculator{}
}

// SystemCPUPercent 系统CPU使用率，首次调用或时间差非正时返回 nil
func (c *Calculator) SystemCPUPercent(now system.CPUTimes) *float64 {
	prev := c.cpu
	c.cpu = &cpuSnapshot{idle: now.Idle, total: now.Total}
	if prev == nil {
		return nil
	}

	totalDiff := now.Total - prev.total
	if totalDiff <= 0 {
		return nil
	}
	idleDiff := now.Idle - prev.idle

	pct := (1 - idleDiff/totalDiff) * 100
	return types.Float(util.Round2(util.ClampPercent(pct)))
}

// ProcessCPUPercent 进程CPU使用率，按核心数归一化
//
// 每次调用都会刷新快照，保证下一个区间的耗时准确。
func (c *Calculator) ProcessCPUPercent(cpuTime time.Duration, at time.Time, cores int) *float64 {
	prev := c.proc
	c.proc = &processSnapshot{cpuTime: cpuTime, at: at}
	if prev == nil {
		return nil
	}

	elapsed := at.Sub(prev.at).Microseconds()
	if elapsed <= 0 {
		return nil
	}
	if cores < 1 {
		cores = 1
	}

	used := (cpuTime - prev.cpuTime).Microseconds()
	pct := float64(used) / float64(elapsed) * 100 / float64(cores)
	return types.Float(util.Round2(util.ClampPercent(pct)))
}

// DropProcessCPU 丢弃进程CPU快照，下一次读取重新作为首次调用
func (c *Calculator) DropProcessCPU() {
	c.proc = nil
}

// NetRates 网络收发速率
//
// counters 为 nil 时四个字段均不可用，且保留上一次快照。
// 计数回退（网卡重启）时对应速率不可用，但累计值照常更新。
func (c *Calculator) NetRates(counters *system.NetCounters, at time.Time) NetRates {
	if counters == nil {
		return NetRates{}
	}

	prev := c.net
	c.net = &netSnapshot{rx: counters.RxBytes, tx: counters.TxBytes, at: at}

	rates := NetRates{
		RxBytes: types.Uint(counters.RxBytes),
		TxBytes: types.Uint(counters.TxBytes),
	}
	if prev == nil {
		return rates
	}

	dt := at.Sub(prev.at)
	if dt < time.Second {
		dt = time.Second
	}
	secs := dt.Seconds()

	if counters.RxBytes >= prev.rx {
		rates.RxBps = types.Float(util.Round2(float64(counters.RxBytes-prev.rx) / secs))
	}
	if counters.TxBytes >= prev.tx {
		rates.TxBps = types.Float(util.Round2(float64(counters.TxBytes-prev.tx) / secs))
	}
	return rates
}
