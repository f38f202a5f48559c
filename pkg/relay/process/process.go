// Package process runs the relay's long lived background tasks, such as
// the config watcher, behind a common start and stop lifecycle.
package process

import (
	"context"
	"sync"

	"github.com/tauraamui/xerror"
	"github.com/tauraamui/zedcv/pkg/log"
)

type Process interface {
	Setup() Process
	Start()
	Stop()
	Wait()
}

type Settings struct {
	// Name is used in lifecycle logs, "config watcher" logs as
	// "Stopping config watcher...".
	Name string
	// Run starts the task and returns channels which close once it has
	// fully stopped after ctx is cancelled.
	Run func(context.Context) ([]chan interface{}, error)
	// OnError receives a failure to start, it defaults to a warning log.
	OnError func(error)
}

func New(settings Settings) Process {
	onError := settings.OnError
	if onError == nil {
		onError = func(err error) { log.Warn("%v", err) }
	}
	return &process{
		name:    settings.Name,
		run:     settings.Run,
		onError: onError,
	}
}

type process struct {
	mu        sync.Mutex
	name      string
	run       func(context.Context) ([]chan interface{}, error)
	onError   func(error)
	running   bool
	canceller context.CancelFunc
	signals   []chan interface{}
}

func (p *process) Setup() Process { return p }

// Start runs the task once, a failed start cancels its context and is
// reported through OnError instead of being retried.
func (p *process) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}

	if len(p.name) > 0 {
		log.Debug("Starting %s...", p.name)
	}
	ctx, canceller := context.WithCancel(context.Background())
	signals, err := p.run(ctx)
	if err != nil {
		canceller()
		p.onError(xerror.Errorf("unable to start %s: %w", p.name, err))
		return
	}
	p.running = true
	p.canceller = canceller
	p.signals = signals
}

func (p *process) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	if len(p.name) > 0 {
		log.Info("Stopping %s...", p.name)
	}
	p.canceller()
	p.running = false
}

func (p *process) Wait() {
	p.mu.Lock()
	signals := p.signals
	p.mu.Unlock()
	for _, sig := range signals {
		<-sig
	}
}
