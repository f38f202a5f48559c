package relay

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tauraamui/xerror"
	"github.com/tauraamui/zedcv/pkg/configdef"
	"github.com/tauraamui/zedcv/pkg/framebuffer"
	"github.com/tauraamui/zedcv/pkg/log"
	"github.com/tauraamui/zedcv/pkg/metrics"
	"github.com/tauraamui/zedcv/pkg/relay/ingest"
	"github.com/tauraamui/zedcv/pkg/relay/process"
	"github.com/tauraamui/zedcv/pkg/relay/stream"
	"github.com/tauraamui/zedcv/pkg/relayerr"
	"github.com/tauraamui/zedcv/pkg/video/videobackend"
	"github.com/tauraamui/zedcv/pkg/video/videoframe"
)

const shutdownTimeout = 5 * time.Second

// Server accepts uploaded video segments, feeds their frames into one
// shared frame buffer and streams that buffer back out to viewers.
type Server struct {
	mu           sync.Mutex
	config       configdef.Values
	backend      videobackend.Backend
	buffer       *framebuffer.Buffer
	dispatcher   *ingest.Dispatcher
	metrics      *metrics.Metrics
	quality      *stream.Quality
	upgrader     websocket.Upgrader
	processes    []process.Process
	httpServer   *http.Server
	listener     net.Listener
	cancelServe  context.CancelFunc
	wsConns      map[*websocket.Conn]struct{}
	closing      bool
	shutdownOnce sync.Once
	shutdownDone chan interface{}
}

// NewServer resolves the configuration and builds the relay around it. A
// nil backend selects the one named by the configuration.
func NewServer(cr configdef.Resolver, backend videobackend.Backend) (*Server, error) {
	cfg, err := cr.Resolve()
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.RunValidate(); err != nil {
		return nil, relayerr.Config(err)
	}

	if backend == nil {
		backend = videobackend.Resolve(cfg.VideoBackend)
	}
	if cfg.Debug {
		log.SetLevel("debug")
	}

	buffer := framebuffer.New(cfg.BufferCapacity)
	m := metrics.New(buffer)
	worker := ingest.NewWorker(backend, buffer, videoframe.Dimensions{W: cfg.FrameWidth, H: cfg.FrameHeight})

	return &Server{
		config:     cfg,
		backend:    backend,
		buffer:     buffer,
		metrics:    m,
		dispatcher: ingest.NewDispatcher(worker, cfg.MaxConcurrentUploads, m.JobDone),
		quality:    stream.NewQuality(cfg.JPEGQuality),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		wsConns:      map[*websocket.Conn]struct{}{},
		shutdownDone: make(chan interface{}),
	}, nil
}

func (s *Server) Config() configdef.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// Start begins accepting ingestion jobs and serving HTTP on the configured
// address. It returns once the listener is bound.
func (s *Server) Start() error {
	cfg := s.Config()
	listener, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return xerror.Errorf("unable to listen on %s: %w", cfg.Addr(), err)
	}
	return s.Serve(listener)
}

// Serve is Start with a listener supplied by the caller.
func (s *Server) Serve(listener net.Listener) error {
	s.dispatcher.Setup().Start()

	serveCtx, cancel := context.WithCancel(context.Background())
	cfg := s.Config()
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return serveCtx },
	}

	s.mu.Lock()
	s.httpServer = srv
	s.listener = listener
	s.cancelServe = cancel
	s.mu.Unlock()

	go func() {
		var err error
		if cfg.TLSEnabled() {
			log.Info("Serving HTTPS on %s...", listener.Addr())
			err = srv.ServeTLS(listener, cfg.TLSCert, cfg.TLSKey)
		} else {
			log.Info("Serving HTTP on %s...", listener.Addr())
			err = srv.Serve(listener)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server stopped: %v", err)
		}
	}()
	return nil
}

// Addr reports the bound listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// WatchConfig keeps the hot reloadable settings in sync with the config
// source until shutdown.
func (s *Server) WatchConfig(watcher configdef.Watcher) {
	proc := process.New(process.Settings{
		Name: "config watcher",
		Run: func(ctx context.Context) ([]chan interface{}, error) {
			stopped, err := watcher.Watch(ctx, s.applyConfig)
			if err != nil {
				return nil, err
			}
			return []chan interface{}{stopped}, nil
		},
		OnError: func(err error) {
			log.Warn("Config changes will not be picked up: %v", err)
		},
	})
	proc.Setup().Start()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.processes = append(s.processes, proc)
}

func (s *Server) applyConfig(cfg configdef.Values) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.Debug != s.config.Debug {
		if cfg.Debug {
			log.SetLevel("debug")
		} else {
			log.SetLevel("warn")
		}
		s.config.Debug = cfg.Debug
	}

	if cfg.JPEGQuality != s.config.JPEGQuality {
		log.Info("JPEG quality changed from %d to %d", s.config.JPEGQuality, cfg.JPEGQuality)
		s.quality.Set(cfg.JPEGQuality)
		s.config.JPEGQuality = cfg.JPEGQuality
	}
}

// trackConn registers an upgraded websocket so shutdown can close it, it
// reports false once shutdown has begun.
func (s *Server) trackConn(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.wsConns[conn] = struct{}{}
	return true
}

func (s *Server) untrackConn(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.wsConns, conn)
}

// closeConns closes every open websocket, http.Server.Shutdown does not
// see connections once they are hijacked.
func (s *Server) closeConns() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.wsConns))
	for conn := range s.wsConns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	if len(conns) > 0 {
		log.Info("Closing %d websocket uploads...", len(conns))
	}
	deadline := time.Now().Add(wsWriteWait)
	for _, conn := range conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), deadline)
		conn.Close()
	}
}

func (s *Server) shutdown() {
	s.mu.Lock()
	srv, cancel, procs := s.httpServer, s.cancelServe, s.processes
	s.closing = true
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if srv != nil {
		log.Info("Closing HTTP listener...")
		ctx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn("HTTP server did not close cleanly: %v", err)
		}
		done()
	}
	s.closeConns()

	wg := sync.WaitGroup{}
	procs = append(procs, s.dispatcher)
	wg.Add(len(procs))
	for _, proc := range procs {
		go func(proc process.Process) {
			defer wg.Done()
			proc.Stop()
			proc.Wait()
		}(proc)
	}
	wg.Wait()

	log.Info("Releasing %d buffered frames...", s.buffer.Len())
	s.buffer.Close()
	close(s.shutdownDone)
}

// Shutdown stops serving, lets in-flight uploads finish and releases every
// buffered frame. The returned channel closes once all of that is done.
func (s *Server) Shutdown() chan interface{} {
	s.shutdownOnce.Do(func() { go s.shutdown() })
	return s.shutdownDone
}
