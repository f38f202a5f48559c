package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matryer/is"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/tauraamui/zedcv/pkg/framebuffer"
	"github.com/tauraamui/zedcv/pkg/relay/ingest"
	"github.com/tauraamui/zedcv/pkg/relayerr"
	"github.com/tauraamui/zedcv/pkg/video/videoframe"
)

type nopFrame struct{}

func (nopFrame) DataRef() interface{} { return nil }

func (nopFrame) Dimensions() videoframe.Dimensions { return videoframe.Dimensions{} }

func (nopFrame) Close() {}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("unable to read metrics body: %v", err)
	}
	return string(body)
}

func TestMetricsExposeBufferStats(t *testing.T) {
	is := is.New(t)
	buffer := framebuffer.New(2)
	defer buffer.Close()
	for i := 0; i < 3; i++ {
		buffer.Push(nopFrame{})
	}

	body := scrape(t, New(buffer))
	is.True(strings.Contains(body, "zedcv_frames_pushed_total 2"))
	is.True(strings.Contains(body, "zedcv_frames_dropped_total 1"))
	is.True(strings.Contains(body, "zedcv_buffer_length 2"))
	is.True(strings.Contains(body, "zedcv_buffer_capacity 2"))
}

func TestJobDoneCountsFailuresByKind(t *testing.T) {
	is := is.New(t)
	buffer := framebuffer.New(1)
	defer buffer.Close()
	m := New(buffer)

	m.JobDone(&ingest.Job{}, ingest.Result{Frames: 3}, nil)
	m.JobDone(&ingest.Job{}, ingest.Result{}, relayerr.Decode(errors.New("bad header")))
	m.JobDone(&ingest.Job{}, ingest.Result{Frames: 2}, relayerr.Processing(errors.New("bad packet")))
	m.JobDone(&ingest.Job{}, ingest.Result{}, relayerr.Decode(errors.New("truncated")))

	is.Equal(m.JobsCompleted.Load(), uint64(1))
	is.Equal(m.JobsFailed.Load(), uint64(3))
	is.Equal(m.FramesExtracted.Load(), uint64(5))
	is.Equal(testutil.ToFloat64(m.failedJobs.WithLabelValues("decode")), float64(2))
	is.Equal(testutil.ToFloat64(m.failedJobs.WithLabelValues("processing")), float64(1))
}

func TestPartStreamedAndSnapshot(t *testing.T) {
	is := is.New(t)
	buffer := framebuffer.New(4)
	defer buffer.Close()
	buffer.Push(nopFrame{})

	m := New(buffer)
	m.UploadsReceived.Add(2)
	m.UploadsRejected.Add(1)
	m.ActiveViewers.Add(1)
	m.PartStreamed(100, false)
	m.PartStreamed(40, true)

	is.Equal(m.PartsStreamed.Load(), uint64(2))
	is.Equal(m.IdlePartsSent.Load(), uint64(1))
	is.Equal(m.BytesStreamed.Load(), uint64(140))

	is.Equal(m.Snapshot(), Snapshot{
		BufferLength:    1,
		BufferCapacity:  4,
		FramesPushed:    1,
		UploadsReceived: 2,
		UploadsRejected: 1,
		ActiveViewers:   1,
	})
	is.True(strings.Contains(scrape(t, m), "zedcv_active_viewers 1"))
}

func TestUploadRejectedCountsByKind(t *testing.T) {
	is := is.New(t)
	buffer := framebuffer.New(1)
	defer buffer.Close()
	m := New(buffer)

	m.UploadRejected(relayerr.Validation("No file part"))
	m.UploadRejected(relayerr.Validation("No selected file"))

	is.Equal(m.UploadsRejected.Load(), uint64(2))
	is.Equal(testutil.ToFloat64(m.rejectedUploads.WithLabelValues("validation")), float64(2))
	is.True(strings.Contains(scrape(t, m), `zedcv_uploads_rejected_total{kind="validation"} 2`))
}
