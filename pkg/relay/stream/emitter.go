package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tauraamui/xerror"
	"github.com/tauraamui/zedcv/pkg/log"
	"github.com/tauraamui/zedcv/pkg/video/videobackend"
	"github.com/tauraamui/zedcv/pkg/video/videoframe"
)

const (
	Boundary    = "frame"
	ContentType = "multipart/x-mixed-replace; boundary=" + Boundary

	partHeader = "--" + Boundary + "\r\nContent-Type: image/jpeg\r\n\r\n"
)

var ErrStreamingUnsupported = xerror.New("response writer does not support streaming")

// FrameSource hands out frames one at a time, blocking until one is ready.
type FrameSource interface {
	Pop(context.Context) (videoframe.Frame, error)
}

// Quality is a JPEG quality shared between emitters, it can be
// changed while streams are running.
type Quality struct {
	value int32
}

func NewQuality(q int) *Quality {
	quality := Quality{}
	quality.Set(q)
	return &quality
}

func (q *Quality) Set(v int) {
	if v < 1 {
		v = 1
	}
	if v > 100 {
		v = 100
	}
	atomic.StoreInt32(&q.value, int32(v))
}

func (q *Quality) Get() int {
	return int(atomic.LoadInt32(&q.value))
}

type Settings struct {
	Quality        *Quality
	IdleAfter      time.Duration
	IdleDimensions videoframe.Dimensions
	// OnPart is called with the size of every JPEG part written.
	OnPart func(size int, idle bool)
}

type Emitter struct {
	id       string
	source   FrameSource
	backend  videobackend.Backend
	settings Settings
}

func NewEmitter(source FrameSource, backend videobackend.Backend, settings Settings) *Emitter {
	if settings.Quality == nil {
		settings.Quality = NewQuality(95)
	}
	return &Emitter{
		id:       uuid.NewString(),
		source:   source,
		backend:  backend,
		settings: settings,
	}
}

func (e *Emitter) UUID() string {
	return e.id
}

// Serve writes frames taken from the source to w as an MJPEG multipart
// stream until ctx is done, the source is closed or a write fails. A
// finished ctx is a normal disconnect and returns nil.
func (e *Emitter) Serve(ctx context.Context, w http.ResponseWriter) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return ErrStreamingUnsupported
	}

	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log.Debug("Viewer [%s] connected", e.id)
	defer log.Debug("Viewer [%s] disconnected", e.id)

	for {
		data, idle, err := e.next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if data == nil {
			continue
		}

		if err := writePart(w, data); err != nil {
			log.Debug("Viewer [%s] write failed: %v", e.id, err)
			return err
		}
		flusher.Flush()

		if e.settings.OnPart != nil {
			e.settings.OnPart(len(data), idle)
		}
	}
}

func (e *Emitter) next(ctx context.Context) ([]byte, bool, error) {
	if e.settings.IdleAfter <= 0 {
		frame, err := e.source.Pop(ctx)
		if err != nil {
			return nil, false, err
		}
		return e.encode(frame), false, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, e.settings.IdleAfter)
	defer cancel()
	frame, err := e.source.Pop(waitCtx)
	if err == nil {
		return e.encode(frame), false, nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return e.idleFrame(), true, nil
	}
	return nil, false, err
}

func (e *Emitter) encode(frame videoframe.Frame) []byte {
	defer frame.Close()
	data, err := e.backend.EncodeJPEG(frame, e.settings.Quality.Get())
	if err != nil {
		log.Warn("Viewer [%s] skipped frame: %v", e.id, err)
		return nil
	}
	return data
}

func (e *Emitter) idleFrame() []byte {
	label := fmt.Sprintf("NO FRAMES FOR %s", e.settings.IdleAfter)
	img, err := videobackend.RenderIdleImage(e.settings.IdleDimensions, label, time.Now())
	if err != nil {
		log.Warn("Unable to render idle frame: %v", err)
		return nil
	}
	frame, err := e.backend.FrameFromImage(img)
	if err != nil {
		log.Warn("Unable to convert idle frame: %v", err)
		return nil
	}
	return e.encode(frame)
}

func writePart(w http.ResponseWriter, data []byte) error {
	if _, err := w.Write([]byte(partHeader)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}
