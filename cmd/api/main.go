package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"request-radar/common"
	"request-radar/internal/config"
	"request-radar/internal/store"
)

type server struct {
	store store.StatusStore
}

func newServer(store store.StatusStore) *server {
	return &server{store: store}
}

func main() {
	_ = godotenv.Load()
	redisAddr := common.GetEnv("STATUS_REDIS_ADDR", "localhost:6379")
	prefix := common.GetEnv("STATUS_KEY_PREFIX", config.DefaultStatusKeyPrefix)
	addr := common.GetEnv("API_ADDR", ":8080")

	statusStore := store.NewRedisStatusStore(redisAddr, prefix, config.DefaultStatusTTLSeconds*time.Second)
	defer func() {
		if err := statusStore.Close(); err != nil {
			log.Printf("failed to close status store: %v", err)
		}
	}()

	srv := newServer(statusStore)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("api listening on %s status_redis=%s", addr, redisAddr)
	if err := httpServer.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleLatestStatus)
	mux.HandleFunc("/status/", s.handleCycleStatus)
	mux.HandleFunc("/metrics", s.handleMetrics)
	return mux
}

// handleLatestStatus returns the summary of the most recently started or
// finished cycle.
//
// Method: GET
// Path:   /status
// Example:
//
//	curl "http://localhost:8080/status"
func (s *server) handleLatestStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status, ok, err := s.store.LatestStatus(r.Context())
	if err != nil {
		http.Error(w, "failed to load status", http.StatusBadGateway)
		return
	}
	if !ok {
		http.Error(w, "no cycle has run yet", http.StatusNotFound)
		return
	}

	writeJSON(w, status, http.StatusOK)
}

// handleCycleStatus returns the summary of one cycle.
//
// Method: GET
// Path:   /status/{cycleID}
func (s *server) handleCycleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cycleID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/status/"), "/")
	if cycleID == "" {
		s.handleLatestStatus(w, r)
		return
	}

	status, ok, err := s.store.GetStatus(r.Context(), cycleID)
	if err != nil {
		http.Error(w, "failed to load status", http.StatusBadGateway)
		return
	}
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	writeJSON(w, status, http.StatusOK)
}

// handleMetrics exposes a minimal Prometheus-compatible endpoint.
func (s *server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("request_radar_api_up 1\n"))
}

func writeJSON(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
