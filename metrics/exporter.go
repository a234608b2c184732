package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dreamsxin/telemetry-sampler/monitor"
	"github.com/dreamsxin/telemetry-sampler/types"
)

// Exporter publishes sampler activity and the latest sample as Prometheus metrics.
type Exporter struct {
	reg           prometheus.Registerer
	constLabels   prometheus.Labels
	ticks         prometheus.Counter
	tickDuration  prometheus.Histogram
	probeFailures *prometheus.CounterVec
	historyLen    prometheus.Gauge
	streamDrops   prometheus.Counter
}

// New creates the exporter and registers its counters with reg.
func New(reg prometheus.Registerer, constLabels prometheus.Labels) *Exporter {
	e := &Exporter{
		reg:         reg,
		constLabels: constLabels,
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "telemetry_ticks_total",
			Help:        "Samples appended to the history.",
			ConstLabels: constLabels,
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "telemetry_tick_duration_seconds",
			Help:        "Time spent collecting one sample.",
			Buckets:     prometheus.ExponentialBuckets(0.0005, 2, 12),
			ConstLabels: constLabels,
		}),
		probeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "telemetry_probe_failures_total",
			Help:        "Metric reads that came back unavailable, by probe.",
			ConstLabels: constLabels,
		}, []string{"probe"}),
		historyLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "telemetry_history_length",
			Help:        "Samples currently retained in memory.",
			ConstLabels: constLabels,
		}),
		streamDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "telemetry_stream_dropped_total",
			Help:        "Samples not delivered to slow stream subscribers.",
			ConstLabels: constLabels,
		}),
	}

	reg.MustRegister(e.ticks, e.tickDuration, e.probeFailures, e.historyLen, e.streamDrops)
	return e
}

// Watch registers a collector that reports the reader's latest sample at scrape time.
func (e *Exporter) Watch(r monitor.Reader) error {
	return e.reg.Register(newSampleCollector(r, e.constLabels))
}

// TickCompleted records one appended sample and the resulting history length.
func (e *Exporter) TickCompleted(d time.Duration, historyLen int) {
	e.ticks.Inc()
	e.tickDuration.Observe(d.Seconds())
	e.historyLen.Set(float64(historyLen))
}

// ProbeFailed counts a metric read that came back unavailable.
func (e *Exporter) ProbeFailed(probe string) {
	e.probeFailures.WithLabelValues(probe).Inc()
}

// StreamDropped counts samples skipped for a slow subscriber.
func (e *Exporter) StreamDropped() {
	e.streamDrops.Inc()
}

var _ monitor.Observer = (*Exporter)(nil)

// sampleGauge maps one Sample field to a gauge.
type sampleGauge struct {
	desc  *prometheus.Desc
	value func(types.Sample) *float64
}

type sampleCollector struct {
	reader monitor.Reader
	gauges []sampleGauge
}

func newSampleCollector(r monitor.Reader, constLabels prometheus.Labels) *sampleCollector {
	gauge := func(name, help string, value func(types.Sample) *float64) sampleGauge {
		return sampleGauge{
			desc:  prometheus.NewDesc(name, help, nil, constLabels),
			value: value,
		}
	}

	return &sampleCollector{
		reader: r,
		gauges: []sampleGauge{
			gauge("telemetry_uptime_seconds", "Process uptime at the latest sample.",
				func(s types.Sample) *float64 { return &s.UptimeSec }),
			gauge("telemetry_process_cpu_percent", "Process CPU usage normalized by core count.",
				func(s types.Sample) *float64 { return s.ProcessCPUPercent }),
			gauge("telemetry_system_cpu_percent", "System-wide CPU usage.",
				func(s types.Sample) *float64 { return s.SystemCPUPercent }),
			gauge("telemetry_process_rss_megabytes", "Process resident memory.",
				func(s types.Sample) *float64 { return s.RSSMB }),
			gauge("telemetry_heap_used_megabytes", "Go heap in use.",
				func(s types.Sample) *float64 { return s.HeapUsedMB }),
			gauge("telemetry_heap_total_megabytes", "Go heap obtained from the OS.",
				func(s types.Sample) *float64 { return s.HeapTotalMB }),
			gauge("telemetry_system_memory_used_percent", "Host memory in use.",
				func(s types.Sample) *float64 { return s.SystemMemPercent }),
			gauge("telemetry_load1", "One minute load average.",
				func(s types.Sample) *float64 { return s.Load1 }),
			gauge("telemetry_scheduling_lag_mean_milliseconds", "Mean scheduling delay over the last interval.",
				func(s types.Sample) *float64 { return s.LagMeanMs }),
			gauge("telemetry_scheduling_lag_max_milliseconds", "Max scheduling delay over the last interval.",
				func(s types.Sample) *float64 { return s.LagMaxMs }),
			gauge("telemetry_active_handles", "Open file descriptors or handles.",
				func(s types.Sample) *float64 { return intValue(s.ActiveHandles) }),
			gauge("telemetry_goroutines", "Live goroutines.",
				func(s types.Sample) *float64 { return intValue(s.ActiveRequests) }),
			gauge("telemetry_network_receive_bytes_per_second", "Receive throughput excluding loopback.",
				func(s types.Sample) *float64 { return s.NetRxBps }),
			gauge("telemetry_network_transmit_bytes_per_second", "Transmit throughput excluding loopback.",
				func(s types.Sample) *float64 { return s.NetTxBps }),
			gauge("telemetry_network_receive_bytes", "Cumulative bytes received excluding loopback.",
				func(s types.Sample) *float64 { return uintValue(s.NetRxBytes) }),
			gauge("telemetry_network_transmit_bytes", "Cumulative bytes sent excluding loopback.",
				func(s types.Sample) *float64 { return uintValue(s.NetTxBytes) }),
		},
	}
}

// Describe sends the descriptor of every sample gauge.
func (c *sampleCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, g := range c.gauges {
		ch <- g.desc
	}
}

// Collect skips unavailable fields instead of reporting zero.
func (c *sampleCollector) Collect(ch chan<- prometheus.Metric) {
	sample, ok := c.reader.Latest()
	if !ok {
		return
	}
	for _, g := range c.gauges {
		if v := g.value(sample); v != nil {
			ch <- prometheus.MustNewConstMetric(g.desc, prometheus.GaugeValue, *v)
		}
	}
}

func intValue(v *int) *float64 {
	if v == nil {
		return nil
	}
	return types.Float(float64(*v))
}

func uintValue(v *uint64) *float64 {
	if v == nil {
		return nil
	}
	return types.Float(float64(*v))
}
