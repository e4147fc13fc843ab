// Package webhook receives change notifications from the CMS over HTTP and
// applies each one as a webhook sync.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/core/ports/driving"
	"github.com/custodia-labs/contentsync/internal/core/services"
	"github.com/custodia-labs/contentsync/internal/logger"
)

const (
	// Path receives webhook deliveries.
	Path = "/webhook"

	// HealthPath reports liveness.
	HealthPath = "/healthz"

	// SecretHeader carries the shared secret.
	SecretHeader = "X-Webhook-Secret"

	// maxBody bounds a delivery.
	maxBody = 1 << 20

	// retryAfterSeconds is suggested to the sender while a cycle is running.
	retryAfterSeconds = "5"
)

// Response is the JSON body returned for a delivery.
type Response struct {
	RunID   string `json:"runId,omitempty"`
	Mode    string `json:"mode,omitempty"`
	Updated int    `json:"updated"`
	Deleted int    `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

// Server is the webhook HTTP server.
type Server struct {
	mu       sync.Mutex
	addr     string
	secret   string
	sync     driving.SyncService
	server   *http.Server
	listener net.Listener
	errChan  chan error
}

// NewServer creates a webhook server. An empty secret accepts every
// delivery.
func NewServer(addr, secret string, syncService driving.SyncService) *Server {
	return &Server{
		addr:    addr,
		secret:  secret,
		sync:    syncService,
		errChan: make(chan error, 1),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handleWebhook)
	mux.HandleFunc(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener
	s.addr = listener.Addr().String()

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case s.errChan <- err:
			default:
			}
		}
	}()

	logger.Info("Webhook receiver listening on %s", s.addr)
	return nil
}

// Err returns a channel that receives a serve failure.
func (s *Server) Err() <-chan error {
	return s.errChan
}

// Stop shuts down the server.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	s.server = nil
	return err
}

// Addr returns the listen address, resolved once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// URL returns the delivery URL.
func (s *Server) URL() string {
	return "http://" + s.Addr() + Path
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, Response{Error: "method not allowed"})
		return
	}
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, Response{Error: "invalid secret"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: "reading body"})
		return
	}
	if len(body) > maxBody {
		writeJSON(w, http.StatusRequestEntityTooLarge, Response{Error: "payload too large"})
		return
	}

	payload, err := services.ParseWebhook(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: err.Error()})
		return
	}
	logger.Debug("webhook %s %s %s", payload.Operation, payload.TypeName, payload.ID)

	run, err := s.sync.Sync(r.Context(), driving.SyncRequest{Webhook: payload})
	switch {
	case errors.Is(err, domain.ErrSyncInProgress):
		w.Header().Set("Retry-After", retryAfterSeconds)
		writeJSON(w, http.StatusServiceUnavailable, Response{Error: err.Error()})
	case err != nil:
		logger.Warn("webhook sync failed: %v", err)
		resp := runResponse(run)
		resp.Error = err.Error()
		writeJSON(w, http.StatusBadGateway, resp)
	default:
		writeJSON(w, http.StatusOK, runResponse(run))
	}
}

func (s *Server) authorized(r *http.Request) bool {
	if s.secret == "" {
		return true
	}
	got := r.Header.Get(SecretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) == 1
}

func runResponse(run *domain.SyncRun) Response {
	if run == nil {
		return Response{}
	}
	return Response{
		RunID:   run.ID,
		Mode:    string(run.Mode),
		Updated: run.Updated,
		Deleted: run.Deleted,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
