package types

import (
	"math"
	"time"
)

const (
	DefaultSampleInterval = 10 * time.Second
	DefaultRetentionHours = 24.0
	DefaultLagResolution  = 10 * time.Millisecond

	// MinCapacity 历史记录容量下限
	MinCapacity = 60
)

// SamplerConfig 采样配置
type SamplerConfig struct {
	Interval       time.Duration `json:"interval"`
	RetentionHours float64       `json:"retention_hours"`
	LagResolution  time.Duration `json:"lag_resolution"`
}

// DefaultSamplerConfig 返回默认采样配置
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		Interval:       DefaultSampleInterval,
		RetentionHours: DefaultRetentionHours,
		LagResolution:  DefaultLagResolution,
	}
}

// Normalize 用默认值替换非正数配置项
func (c SamplerConfig) Normalize() SamplerConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultSampleInterval
	}
	if c.RetentionHours <= 0 {
		c.RetentionHours = DefaultRetentionHours
	}
	if c.LagResolution <= 0 {
		c.LagResolution = DefaultLagResolution
	}
	return c
}

// Capacity 历史记录容量: max(60, ceil(retentionHours*3600000/intervalMs))
func (c SamplerConfig) Capacity() int {
	return Capacity(c.Interval, c.RetentionHours)
}

// Capacity 根据采样间隔和保留时长计算历史记录容量
func Capacity(interval time.Duration, retentionHours float64) int {
	intervalMs := float64(interval.Milliseconds())
	if intervalMs <= 0 || retentionHours <= 0 {
		return MinCapacity
	}
	n := int(math.Ceil(retentionHours * 3_600_000 / intervalMs))
	if n < MinCapacity {
		return MinCapacity
	}
	return n
}
