package ingest

import (
	"context"
	"sync"

	"github.com/tauraamui/xerror"
	"github.com/tauraamui/zedcv/pkg/log"
	"github.com/tauraamui/zedcv/pkg/relay/process"
)

var ErrDispatcherStopped = xerror.New("upload dispatcher is stopped")

// DoneFunc is invoked once per job after extraction finished or failed.
type DoneFunc func(job *Job, result Result, err error)

// Dispatcher runs one ingestion task per job. With maxConcurrent above zero
// at most that many jobs extract frames at once and the rest wait for a
// slot, zero leaves concurrency unbounded.
type Dispatcher struct {
	worker   *Worker
	slots    chan struct{}
	onDone   DoneFunc
	mu       sync.Mutex
	stopping bool
	inFlight sync.WaitGroup
}

func NewDispatcher(worker *Worker, maxConcurrent int, onDone DoneFunc) *Dispatcher {
	d := Dispatcher{worker: worker, onDone: onDone}
	if maxConcurrent > 0 {
		d.slots = make(chan struct{}, maxConcurrent)
	}
	return &d
}

func (d *Dispatcher) Setup() process.Process { return d }

func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopping = false
}

// Dispatch hands job to a background task and returns straight away.
func (d *Dispatcher) Dispatch(job *Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopping {
		job.Release()
		return ErrDispatcherStopped
	}

	d.inFlight.Add(1)
	go func() {
		defer d.inFlight.Done()
		d.run(job)
	}()
	return nil
}

// Run processes job on the calling goroutine, still honouring the
// concurrency limit.
func (d *Dispatcher) Run(job *Job) (Result, error) {
	d.mu.Lock()
	if d.stopping {
		d.mu.Unlock()
		job.Release()
		return Result{}, ErrDispatcherStopped
	}
	d.inFlight.Add(1)
	d.mu.Unlock()
	defer d.inFlight.Done()

	return d.run(job)
}

func (d *Dispatcher) run(job *Job) (Result, error) {
	if d.slots != nil {
		d.slots <- struct{}{}
		defer func() { <-d.slots }()
	}

	log.Info("Processing upload [%s] (%s, %d bytes)...", job.ID, job.Filename, job.Size)
	result, err := d.worker.Process(context.Background(), job)
	if err != nil {
		log.Error("Unable to process upload [%s]: %v", job.ID, err)
	} else {
		log.Info("Upload [%s] produced %d frames, %d dropped", job.ID, result.Frames, result.Dropped)
	}

	if d.onDone != nil {
		d.onDone(job, result, err)
	}
	return result, err
}

// Stop refuses any further jobs, jobs already dispatched run to completion.
func (d *Dispatcher) Stop() {
	log.Info("Stopping upload dispatcher...")
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopping = true
}

func (d *Dispatcher) Wait() {
	d.inFlight.Wait()
}
