// Package status serves a read-only HTTP view of the monitor
package status

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/henhouse/pkg/www"
	"github.com/cyclopcam/henhouse/server/counter"
	"github.com/cyclopcam/henhouse/server/monitor"
	"github.com/cyclopcam/logs"
	"github.com/julienschmidt/httprouter"
)

// Requests per minute, per client IP
const RateLimitPerMinute = 60

type StatusProvider interface {
	Status() monitor.Status
}

type Server struct {
	Log        logs.Log
	provider   StatusProvider
	httpServer *http.Server
}

type statusJSON struct {
	State       monitor.State    `json:"state"`
	Cycle       int64            `json:"cycle"`
	LastError   string           `json:"lastError,omitempty"`
	LastCycle   *time.Time       `json:"lastCycle,omitempty"`
	Counts      counter.CountMap `json:"counts,omitempty"`
	NObjects    int              `json:"objects"`
	Detection   string           `json:"detection,omitempty"`
	DetectErr   string           `json:"detectionError,omitempty"`
	ImageWidth  int              `json:"imageWidth,omitempty"`
	ImageHeight int              `json:"imageHeight,omitempty"`
}

func NewServer(log logs.Log, provider StatusProvider) *Server {
	return &Server{
		Log:      log,
		provider: provider,
	}
}

// Handler returns the router, wrapped in a rate limiter
func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	www.Handle(s.Log, router, "GET", "/api/status", s.httpStatus)
	www.Handle(s.Log, router, "GET", "/api/snapshot.jpg", s.httpSnapshot)
	return www.RateLimit(router, RateLimitPerMinute, time.Minute)
}

// ListenAndServe starts serving in the background. Returns an error if we can't bind to addr.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.Log.Infof("Status server listening on %v", ln.Addr())
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Log.Errorf("Status server stopped: %v", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown() {
	if s.httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.Log.Warnf("Status server shutdown: %v", err)
	}
}

func (s *Server) httpStatus(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	st := s.provider.Status()
	j := statusJSON{
		State:     st.State,
		Cycle:     st.Cycle,
		LastError: st.LastError,
	}
	if last := st.Last; last != nil {
		j.LastCycle = &last.Time
		j.Counts = last.Counts
		j.NObjects = last.NObjects
		j.Detection = last.Detection
		j.DetectErr = last.Error
		if last.Image != nil {
			j.ImageWidth = last.Image.Width
			j.ImageHeight = last.Image.Height
		}
	}
	www.CacheNever(w)
	www.SendJSON(w, &j)
}

func (s *Server) httpSnapshot(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	last := s.provider.Status().Last
	if last == nil || last.Image == nil {
		www.PanicNotFound()
	}
	jpg, err := cimg.Compress(last.Image, cimg.MakeCompressParams(cimg.Sampling420, 85, 0))
	if err != nil {
		www.PanicServerErrorf("Failed to encode snapshot: %v", err)
	}
	www.CacheNever(w)
	www.SendBytes(w, "image/jpeg", jpg)
}
