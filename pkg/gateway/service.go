package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"fetchbot/pkg/bus"
	"fetchbot/pkg/channel"
	"fetchbot/pkg/config"
	"fetchbot/pkg/download"
	"fetchbot/pkg/links"
	"fetchbot/pkg/storage"

	"golang.org/x/sync/errgroup"
)

const (
	defaultHTTPHost   = "0.0.0.0"
	defaultHTTPPort   = 8443
	eventBufferSize   = 256
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// Service routes inbound chat messages into download batches and serves
// health endpoints plus adapter webhooks on one listener.
type Service struct {
	cfg       *config.Config
	log       *slog.Logger
	runner    *download.Runner
	extractor links.Extractor
	store     *storage.Store
	events    *bus.MessageBus
	channels  []channel.Adapter
	batches   *batchTracker
	stats     *batchStats
	inflight  sync.WaitGroup

	mu            sync.RWMutex
	startedAt     time.Time
	channelStates map[string]channelState
}

type channelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status        string                  `json:"status"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	Channels      map[string]channelState `json:"channels"`
	Batches       statsSnapshot           `json:"batches"`
}

// NewService wires the download pipeline for the given adapters. client is
// shared by every batch and is owned by the caller.
func NewService(cfg *config.Config, client *http.Client, adapters []channel.Adapter, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if len(adapters) == 0 {
		return nil, errors.New("at least one channel adapter is required")
	}
	if client == nil {
		return nil, errors.New("http client is required")
	}
	if log == nil {
		log = slog.Default()
	}

	runner, err := download.NewRunner(client, download.Options{
		UserAgent: cfg.Download.UserAgent,
		Timeout:   cfg.Download.Timeout(),
		Delay:     cfg.Download.Delay(),
	}, log)
	if err != nil {
		return nil, fmt.Errorf("initialize download runner: %w", err)
	}

	store, err := storage.NewStore(cfg.Download.Root)
	if err != nil {
		return nil, fmt.Errorf("initialize download root: %w", err)
	}

	channelStates := make(map[string]channelState, len(adapters))
	for _, adapter := range adapters {
		channelStates[adapter.Name()] = channelState{}
	}

	return &Service{
		cfg:           cfg,
		log:           log.With("component", "gateway.service"),
		runner:        runner,
		extractor:     links.NewExtractor(cfg.Download.Extensions, cfg.Download.TrustedDomains),
		store:         store,
		events:        bus.NewMessageBus(),
		channels:      adapters,
		batches:       newBatchTracker(),
		stats:         &batchStats{},
		channelStates: channelStates,
	}, nil
}

// Run blocks until ctx ends or a channel adapter or the listener fails.
// In-flight batches are canceled and allowed to post their summaries before
// Run returns.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	events, unsubscribe := s.events.SubscribeEvents(ctx, eventBufferSize)
	defer unsubscribe()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		s.stats.consume(groupCtx, events)
		return nil
	})

	group.Go(func() error {
		return s.serveHTTP(groupCtx)
	})

	for _, adapter := range s.channels {
		s.setChannelState(adapter.Name(), channelState{Running: true})

		group.Go(func() error {
			err := adapter.Run(groupCtx, s.handleInbound)
			s.setChannelState(adapter.Name(), channelState{Running: false, Error: errorString(err)})
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("run %s channel: %w", adapter.Name(), err)
			}
			return nil
		})
	}

	err := group.Wait()

	s.inflight.Wait()
	s.events.Close()

	return err
}

func (s *Service) serveHTTP(ctx context.Context) error {
	host := strings.TrimSpace(s.cfg.Gateway.Host)
	if host == "" {
		host = defaultHTTPHost
	}

	port := s.cfg.Gateway.Port
	if port <= 0 {
		port = defaultHTTPPort
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	server := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway HTTP server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start http server: %w", err)
	}

	return nil
}

func (s *Service) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	for _, adapter := range s.channels {
		if registrar, ok := adapter.(channel.RouteRegistrar); ok {
			registrar.RegisterRoutes(mux)
		}
	}

	return mux
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	batches := s.stats.snapshot()
	batches.ActiveBatches = s.batches.active()

	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	channels := make(map[string]channelState, len(s.channelStates))
	for name, state := range s.channelStates {
		channels[name] = state
	}

	return statusResponse{
		Status:        status,
		UptimeSeconds: uptime,
		Channels:      channels,
		Batches:       batches,
	}
}

// isReady reports whether at least one channel adapter is receiving messages.
func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, state := range s.channelStates {
		if state.Running {
			return true
		}
	}

	return false
}

func (s *Service) setChannelState(name string, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelStates[name] = state
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
