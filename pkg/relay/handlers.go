package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tauraamui/zedcv/pkg/log"
	"github.com/tauraamui/zedcv/pkg/relay/ingest"
	"github.com/tauraamui/zedcv/pkg/relay/stream"
	"github.com/tauraamui/zedcv/pkg/relayerr"
	"github.com/tauraamui/zedcv/pkg/video/videoframe"
)

const (
	capturePath     = "/"
	viewerPath      = "/view_video"
	uploadPath      = "/upload"
	streamPath      = "/video"
	wsUploadPath    = "/ws/upload"
	metricsPath     = "/metrics"
	healthPath      = "/healthz"
	uploadFieldName = "file"

	receivedMsg = "received"

	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

// Handler returns every route the relay serves, wrapped to allow cross
// origin requests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(viewerPath, renderPage("view_video.html"))
	mux.HandleFunc(uploadPath, s.handleUpload)
	mux.HandleFunc(streamPath, s.handleStream)
	mux.HandleFunc(wsUploadPath, s.handleWSUpload)
	mux.Handle(metricsPath, s.metrics.Handler())
	mux.HandleFunc(healthPath, s.handleHealth)
	capture := renderPage("index.html")
	mux.HandleFunc(capturePath, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != capturePath {
			http.NotFound(w, r)
			return
		}
		capture(w, r)
	})
	return allowCORS(mux)
}

func allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions && len(r.Header.Get("Access-Control-Request-Method")) > 0 {
			w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, POST, OPTIONS")
			if headers := r.Header.Get("Access-Control-Request-Headers"); len(headers) > 0 {
				w.Header().Set("Access-Control-Allow-Headers", headers)
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

func (s *Server) reject(w http.ResponseWriter, msg string, code int) {
	err := relayerr.Validation(msg)
	s.metrics.UploadRejected(err)
	log.Debug("Rejected upload: %v", err)
	http.Error(w, msg, code)
}

var (
	errNoFilePart     = errors.New("no file part")
	errNoSelectedFile = errors.New("no selected file")
)

// nextUploadPart walks the form until the file field. Only a part which
// carries a filename counts as a file, a plain text field sharing the
// name is skipped.
func nextUploadPart(r *http.Request) (*multipart.Part, string, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, "", errNoFilePart
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, "", errNoFilePart
		}
		if err != nil {
			return nil, "", err
		}
		if part.FormName() != uploadFieldName {
			continue
		}
		_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
		if err != nil {
			continue
		}
		filename, ok := params["filename"]
		if !ok {
			continue
		}
		if len(filename) == 0 {
			return nil, "", errNoSelectedFile
		}
		return part, filepath.Base(filename), nil
	}
}

// readErrRecorder keeps the last read error so it can still be matched
// after being wrapped by errors which do not unwrap.
type readErrRecorder struct {
	r   io.Reader
	err error
}

func (rr *readErrRecorder) Read(p []byte) (int, error) {
	n, err := rr.r.Read(p)
	if err != nil && err != io.EOF {
		rr.err = err
	}
	return n, err
}

func (s *Server) rejectTooLarge(w http.ResponseWriter, err error) bool {
	var tooLarge *http.MaxBytesError
	if !errors.As(err, &tooLarge) {
		return false
	}
	s.reject(w, fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
	return true
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	cfg := s.Config()
	r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)
	part, filename, err := nextUploadPart(r)
	if err != nil {
		switch {
		case s.rejectTooLarge(w, err):
		case errors.Is(err, errNoSelectedFile):
			s.reject(w, "No selected file", http.StatusBadRequest)
		default:
			s.reject(w, "No file part", http.StatusBadRequest)
		}
		return
	}
	defer part.Close()

	body := readErrRecorder{r: part}
	job, err := ingest.NewJob(cfg.TempDir, filename, &body)
	if err != nil {
		if s.rejectTooLarge(w, body.err) {
			return
		}
		log.Error("Unable to accept upload %s: %v", filename, err)
		http.Error(w, fmt.Sprintf("Error in upload: %v", err), http.StatusInternalServerError)
		return
	}
	s.metrics.UploadsReceived.Add(1)
	log.Debug("Received upload [%s] %s (%d bytes)", job.ID, job.Filename, job.Size)

	if cfg.SyncDecode {
		if _, err := s.dispatcher.Run(job); err != nil {
			http.Error(w, fmt.Sprintf("Failed to process video: %v", err), http.StatusInternalServerError)
			return
		}
	} else if err := s.dispatcher.Dispatch(job); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(receivedMsg))
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	cfg := s.Config()
	emitter := stream.NewEmitter(s.buffer, s.backend, stream.Settings{
		Quality:        s.quality,
		IdleAfter:      time.Duration(cfg.IdleFrameSeconds) * time.Second,
		IdleDimensions: videoframe.Dimensions{W: cfg.FrameWidth, H: cfg.FrameHeight},
		OnPart:         s.metrics.PartStreamed,
	})

	s.metrics.ActiveViewers.Add(1)
	defer s.metrics.ActiveViewers.Add(-1)
	log.Info("Viewer [%s] connected from %s", emitter.UUID(), r.RemoteAddr)
	if err := emitter.Serve(r.Context(), w); err != nil {
		log.Debug("Viewer [%s] stream ended: %v", emitter.UUID(), err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.metrics.Snapshot()); err != nil {
		log.Warn("Unable to write health response: %v", err)
	}
}

// handleWSUpload accepts a stream of segments over one websocket, each
// binary message is one segment and is answered with a text message.
func (s *Server) handleWSUpload(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	if !s.trackConn(conn) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(wsWriteWait))
		return
	}
	defer s.untrackConn(conn)

	cfg := s.Config()
	conn.SetReadLimit(cfg.MaxUploadBytes)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	writes := make(chan string, 8)
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case msg := <-writes:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
					conn.Close()
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	reply := func(msg string) {
		select {
		case writes <- msg:
		case <-done:
		}
	}

	for seq := 0; ; seq++ {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("Websocket upload closed: %v", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		if messageType != websocket.BinaryMessage {
			continue
		}
		if len(payload) == 0 {
			err := relayerr.Validation("No selected file")
			s.metrics.UploadRejected(err)
			log.Debug("Rejected websocket upload: %v", err)
			reply("No selected file")
			continue
		}

		job, err := ingest.NewJob(cfg.TempDir, fmt.Sprintf("ws-segment-%d.webm", seq), bytes.NewReader(payload))
		if err != nil {
			log.Error("Unable to accept websocket upload: %v", err)
			reply(fmt.Sprintf("Error in upload: %v", err))
			continue
		}
		s.metrics.UploadsReceived.Add(1)

		if cfg.SyncDecode {
			if _, err := s.dispatcher.Run(job); err != nil {
				reply(fmt.Sprintf("Failed to process video: %v", err))
				continue
			}
		} else if err := s.dispatcher.Dispatch(job); err != nil {
			reply(err.Error())
			return
		}
		reply(receivedMsg)
	}
}
