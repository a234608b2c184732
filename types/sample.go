package types

// Sample 一次采样的遥测记录，创建后不再修改
//
// 指针字段为 nil 表示该指标本次不可用（JSON 中为 null），与数值 0 区分。
type Sample struct {
	Timestamp         int64    `json:"timestamp"` // 毫秒时间戳
	UptimeSec         float64  `json:"uptime_sec"`
	ProcessCPUPercent *float64 `json:"process_cpu_percent"`
	SystemCPUPercent  *float64 `json:"system_cpu_percent"`
	RSSMB             *float64 `json:"rss_mb"`
	HeapUsedMB        *float64 `json:"heap_used_mb"`
	HeapTotalMB       *float64 `json:"heap_total_mb"`
	SystemMemPercent  *float64 `json:"system_mem_percent"`
	Load1             *float64 `json:"load_1"`
	LagMeanMs         *float64 `json:"lag_mean_ms"`
	LagMaxMs          *float64 `json:"lag_max_ms"`
	ActiveHandles     *int     `json:"active_handles,omitempty"`
	ActiveRequests    *int     `json:"active_requests,omitempty"`
	NetRxBps          *float64 `json:"net_rx_bps"`
	NetTxBps          *float64 `json:"net_tx_bps"`
	NetRxBytes        *uint64  `json:"net_rx_bytes"`
	NetTxBytes        *uint64  `json:"net_tx_bytes"`
}

// Float 返回指向 v 的指针
func Float(v float64) *float64 { return &v }

// Int 返回指向 v 的指针
func Int(v int) *int { return &v }

// Uint 返回指向 v 的指针
func Uint(v uint64) *uint64 { return &v }

// Clone 深拷贝采样，返回值与原记录不共享任何指针
func (s Sample) Clone() Sample {
	c := s
	c.ProcessCPUPercent = clonePtr(s.ProcessCPUPercent)
	c.SystemCPUPercent = clonePtr(s.SystemCPUPercent)
	c.RSSMB = clonePtr(s.RSSMB)
	c.HeapUsedMB = clonePtr(s.HeapUsedMB)
	c.HeapTotalMB = clonePtr(s.HeapTotalMB)
	c.SystemMemPercent = clonePtr(s.SystemMemPercent)
	c.Load1 = clonePtr(s.Load1)
	c.LagMeanMs = clonePtr(s.LagMeanMs)
	c.LagMaxMs = clonePtr(s.LagMaxMs)
	c.ActiveHandles = clonePtr(s.ActiveHandles)
	c.ActiveRequests = clonePtr(s.ActiveRequests)
	c.NetRxBps = clonePtr(s.NetRxBps)
	c.NetTxBps = clonePtr(s.NetTxBps)
	c.NetRxBytes = clonePtr(s.NetRxBytes)
	c.NetTxBytes = clonePtr(s.NetTxBytes)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
