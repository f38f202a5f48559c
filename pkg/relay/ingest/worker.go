package ingest

import (
	"context"
	"errors"
	"io"

	"github.com/tauraamui/zedcv/pkg/log"
	"github.com/tauraamui/zedcv/pkg/relayerr"
	"github.com/tauraamui/zedcv/pkg/video/videobackend"
	"github.com/tauraamui/zedcv/pkg/video/videoframe"
)

// FrameSink accepts ready frames, reporting false when a frame was
// discarded instead of retained.
type FrameSink interface {
	Push(videoframe.Frame) bool
}

type Result struct {
	Frames   int
	Accepted int
	Dropped  int
}

type Worker struct {
	backend videobackend.Backend
	sink    FrameSink
	target  videoframe.Dimensions
}

func NewWorker(backend videobackend.Backend, sink FrameSink, target videoframe.Dimensions) *Worker {
	return &Worker{backend: backend, sink: sink, target: target}
}

// Process extracts every frame of job, resizes it to the worker's target
// dimensions and pushes it into the sink. Frames pushed before a failure
// stay pushed. The job's temp file is released on every path.
func (w *Worker) Process(ctx context.Context, job *Job) (Result, error) {
	defer job.Release()

	result := Result{}
	dec, err := w.backend.Open(ctx, job.Path)
	if err != nil {
		return result, err
	}
	defer dec.Close()

	log.Debug("Extracting frames from upload [%s] with decoder [%s]", job.ID, dec.UUID())
	for {
		frame := w.backend.NewFrame()
		err := dec.Read(frame)
		if errors.Is(err, io.EOF) {
			frame.Close()
			return result, nil
		}
		if err != nil {
			frame.Close()
			return result, asProcessingErr(err)
		}

		resized, err := w.backend.Resize(frame, w.target)
		frame.Close()
		if err != nil {
			return result, relayerr.Processing(err)
		}

		result.Frames++
		if w.sink.Push(resized) {
			result.Accepted++
			continue
		}
		result.Dropped++
		log.Debug("Frame buffer full, dropped frame %d of upload [%s]", result.Frames, job.ID)
	}
}

func asProcessingErr(err error) error {
	if errors.Is(err, relayerr.ErrProcessing) {
		return err
	}
	return relayerr.Processing(err)
}
