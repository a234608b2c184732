package monitor

import (
	"sort"
	"sync"
	"time"

	"github.com/dreamsxin/telemetry-sampler/types"
)

const (
	minWindowHours = 1
	maxWindowHours = 24
	msPerHour      = int64(time.Hour / time.Millisecond)
)

// History 按时间排序的有界采样记录
type History struct {
	mu       sync.RWMutex
	samples  []types.Sample
	capacity int
}

// NewHistory 创建容量为 capacity 的历史记录
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = types.MinCapacity
	}
	return &History{
		samples:  make([]types.Sample, 0, capacity),
		capacity: capacity,
	}
}

// Append 追加采样，超出容量时一次性从头部裁剪到容量大小，返回当前长度
func (h *History) Append(s types.Sample) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples = append(h.samples, s)
	if excess := len(h.samples) - h.capacity; excess > 0 {
		h.samples = h.samples[excess:]
	}
	return len(h.samples)
}

// Latest 最近一次采样
func (h *History) Latest() (types.Sample, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.samples) == 0 {
		return types.Sample{}, false
	}
	return h.samples[len(h.samples)-1].Clone(), true
}

// Window 返回 timestamp >= now - hours 小时的采样副本
//
// 记录按时间有序，结果是一个后缀，用二分查找定位起点。
func (h *History) Window(hours int, now time.Time) []types.Sample {
	cutoff := now.UnixMilli() - int64(ClampHours(hours))*msPerHour

	h.mu.RLock()
	defer h.mu.RUnlock()

	start := sort.Search(len(h.samples), func(i int) bool {
		return h.samples[i].Timestamp >= cutoff
	})
	result := make([]types.Sample, 0, len(h.samples)-start)
	for _, s := range h.samples[start:] {
		result = append(result, s.Clone())
	}
	return result
}

// Len 当前记录数
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.samples)
}

// Capacity 最大记录数
func (h *History) Capacity() int {
	return h.capacity
}

// ClampHours 将查询窗口限制在 [1,24] 小时
func ClampHours(hours int) int {
	if hours < minWindowHours {
		return minWindowHours
	}
	if hours > maxWindowHours {
		return maxWindowHours
	}
	return hours
}
