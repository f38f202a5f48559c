package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tauraamui/zedcv/pkg/framebuffer"
	"github.com/tauraamui/zedcv/pkg/relay/ingest"
	"github.com/tauraamui/zedcv/pkg/relayerr"
)

const namespace = "zedcv"

// BufferObserver is the read only view of the frame buffer which is
// exported as metrics.
type BufferObserver interface {
	Len() int
	Cap() int
	Stats() framebuffer.Stats
}

// Metrics holds the relay's counters and the Prometheus registry they are
// exported through.
type Metrics struct {
	UploadsReceived atomic.Uint64
	UploadsRejected atomic.Uint64
	JobsCompleted   atomic.Uint64
	JobsFailed      atomic.Uint64
	FramesExtracted atomic.Uint64
	PartsStreamed   atomic.Uint64
	IdlePartsSent   atomic.Uint64
	BytesStreamed   atomic.Uint64
	ActiveViewers   atomic.Int64

	buffer          BufferObserver
	failedJobs      *prometheus.CounterVec
	rejectedUploads *prometheus.CounterVec
	registry        *prometheus.Registry
}

type Snapshot struct {
	BufferLength    int    `json:"buffer_length"`
	BufferCapacity  int    `json:"buffer_capacity"`
	FramesPushed    uint64 `json:"frames_pushed"`
	FramesDropped   uint64 `json:"frames_dropped"`
	FramesPopped    uint64 `json:"frames_popped"`
	UploadsReceived uint64 `json:"uploads_received"`
	UploadsRejected uint64 `json:"uploads_rejected"`
	JobsCompleted   uint64 `json:"jobs_completed"`
	JobsFailed      uint64 `json:"jobs_failed"`
	ActiveViewers   int64  `json:"active_viewers"`
}

func New(buffer BufferObserver) *Metrics {
	m := &Metrics{
		buffer:   buffer,
		registry: prometheus.NewRegistry(),
		failedJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_failed_total",
			Help:      "Upload jobs which failed, by error kind",
		}, []string{"kind"}),
		rejectedUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_rejected_total",
			Help:      "Upload requests rejected before processing, by error kind",
		}, []string{"kind"}),
	}
	m.register()
	return m
}

func (m *Metrics) register() {
	m.registry.MustRegister(m.failedJobs, m.rejectedUploads)

	counters := []struct {
		name, help string
		value      func() float64
	}{
		{"frames_pushed_total", "Frames accepted into the frame buffer", func() float64 { return float64(m.buffer.Stats().Pushed) }},
		{"frames_dropped_total", "Frames discarded because the frame buffer was full", func() float64 { return float64(m.buffer.Stats().Dropped) }},
		{"frames_popped_total", "Frames taken from the frame buffer by viewers", func() float64 { return float64(m.buffer.Stats().Popped) }},
		{"uploads_received_total", "Uploaded segments accepted for processing", func() float64 { return float64(m.UploadsReceived.Load()) }},
		{"jobs_completed_total", "Upload jobs which extracted every frame", func() float64 { return float64(m.JobsCompleted.Load()) }},
		{"frames_extracted_total", "Frames decoded and resized from uploads", func() float64 { return float64(m.FramesExtracted.Load()) }},
		{"parts_streamed_total", "JPEG parts written to viewers", func() float64 { return float64(m.PartsStreamed.Load()) }},
		{"idle_parts_streamed_total", "Idle placeholder parts written to viewers", func() float64 { return float64(m.IdlePartsSent.Load()) }},
		{"bytes_streamed_total", "JPEG bytes written to viewers", func() float64 { return float64(m.BytesStreamed.Load()) }},
	}
	for _, c := range counters {
		m.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Namespace: namespace, Name: c.name, Help: c.help},
			c.value,
		))
	}

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: namespace, Name: "buffer_length", Help: "Frames currently held in the frame buffer"},
		func() float64 { return float64(m.buffer.Len()) },
	))
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: namespace, Name: "buffer_capacity", Help: "Maximum frames the frame buffer holds"},
		func() float64 { return float64(m.buffer.Cap()) },
	))
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: namespace, Name: "active_viewers", Help: "Viewers currently connected to the video stream"},
		func() float64 { return float64(m.ActiveViewers.Load()) },
	))
}

// JobDone records the outcome of one ingestion job, it matches
// ingest.DoneFunc.
func (m *Metrics) JobDone(_ *ingest.Job, result ingest.Result, err error) {
	m.FramesExtracted.Add(uint64(result.Frames))
	if err == nil {
		m.JobsCompleted.Add(1)
		return
	}
	m.JobsFailed.Add(1)
	m.failedJobs.WithLabelValues(string(relayerr.KindOf(err))).Inc()
}

// UploadRejected records an upload turned away before it became a job.
func (m *Metrics) UploadRejected(err error) {
	m.UploadsRejected.Add(1)
	m.rejectedUploads.WithLabelValues(string(relayerr.KindOf(err))).Inc()
}

// PartStreamed matches the stream emitter's part callback.
func (m *Metrics) PartStreamed(size int, idle bool) {
	m.PartsStreamed.Add(1)
	m.BytesStreamed.Add(uint64(size))
	if idle {
		m.IdlePartsSent.Add(1)
	}
}

func (m *Metrics) Snapshot() Snapshot {
	stats := m.buffer.Stats()
	return Snapshot{
		BufferLength:    m.buffer.Len(),
		BufferCapacity:  m.buffer.Cap(),
		FramesPushed:    stats.Pushed,
		FramesDropped:   stats.Dropped,
		FramesPopped:    stats.Popped,
		UploadsReceived: m.UploadsReceived.Load(),
		UploadsRejected: m.UploadsRejected.Load(),
		JobsCompleted:   m.JobsCompleted.Load(),
		JobsFailed:      m.JobsFailed.Load(),
		ActiveViewers:   m.ActiveViewers.Load(),
	}
}

// Handler returns the Prometheus exposition handler for this instance.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
