package monitor

import (
	"time"

	"github.com/dreamsxin/telemetry-sampler/types"
)

// DefaultHistoryHours 未指定时查询的历史窗口
const DefaultHistoryHours = 24

// Reader 只读查询接口
type Reader interface {
	// 最近一次采样，没有数据时返回 false
	Latest() (types.Sample, bool)

	// 最近 hours 小时内的采样，hours 限制在 [1,24]
	History(hours int) []types.Sample
}

// Monitor 采样器接口
type Monitor interface {
	Reader

	// 启动采样，重复调用无副作用
	Start()

	// 停止采样，未启动时调用无副作用
	Stop()
}

// Observer 采样过程观察者
type Observer interface {
	TickCompleted(d time.Duration, historyLen int)
	ProbeFailed(probe string)
}

type nopObserver struct{}

func (nopObserver) TickCompleted(time.Duration, int) {}
func (nopObserver) ProbeFailed(string) {}
