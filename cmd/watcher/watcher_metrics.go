package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"request-radar/internal/fetch"
	"request-radar/internal/models"
	"request-radar/internal/pipeline"
)

var (
	// Cycle outcomes exposed on /metrics.
	watcherCyclesStarted   uint64
	watcherCyclesCompleted uint64
	watcherCyclesAborted   uint64
	watcherCyclesRunning   int64 // gauge: overlapping cycles show up as > 1

	// Per-request outcomes, summed over cycles.
	watcherRequestsParsed    uint64
	watcherRequestsKnown     uint64
	watcherRequestsSkipped   uint64
	watcherRequestsInserted  uint64
	watcherRequestsConflicts uint64

	watcherNotifySent   uint64
	watcherNotifyFailed uint64

	watcherListingErrors uint64
	watcherDetailErrors  uint64
	// HTTP 429 from the site; one increment per fetch.
	watcherRateLimitHitsTotal uint64

	// Unix seconds of the last completed cycle; 0 until one completes.
	watcherLastSuccessUnix int64

	// Histogram buckets for detail fetch latency (seconds). +Inf is implicit.
	fetchLatencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10}
	// Counts per bucket; last slot holds the +Inf bucket.
	fetchLatencyCounts = make([]uint64, len(fetchLatencyBuckets)+1)
	fetchLatencySumNs  uint64
	fetchLatencyCount  uint64
)

// metricsProxyURL is the proxy this watcher uses (set at startup for the proxy label).
var metricsProxyURL string

// metricsObserver feeds the package counters from pipeline callbacks.
type metricsObserver struct{}

var _ pipeline.Observer = metricsObserver{}

func (metricsObserver) ObserveFetch(kind string, took time.Duration, err error) {
	if fetch.IsRateLimited(err) {
		atomic.AddUint64(&watcherRateLimitHitsTotal, 1)
	}
	switch kind {
	case pipeline.FetchListing:
		if err != nil {
			atomic.AddUint64(&watcherListingErrors, 1)
		}
	case pipeline.FetchDetail:
		observeFetchLatency(took)
		if err != nil {
			atomic.AddUint64(&watcherDetailErrors, 1)
		}
	}
}

func (metricsObserver) ObserveNotify(err error) {
	if err != nil {
		atomic.AddUint64(&watcherNotifyFailed, 1)
		return
	}
	atomic.AddUint64(&watcherNotifySent, 1)
}

func (metricsObserver) ObserveCycle(status models.CycleStatus) {
	atomic.AddUint64(&watcherRequestsParsed, uint64(status.Parsed))
	atomic.AddUint64(&watcherRequestsKnown, uint64(status.Known))
	atomic.AddUint64(&watcherRequestsSkipped, uint64(status.Skipped))
	atomic.AddUint64(&watcherRequestsInserted, uint64(status.Inserted))
	atomic.AddUint64(&watcherRequestsConflicts, uint64(status.Conflicts))
	switch status.State {
	case models.CycleCompleted:
		atomic.AddUint64(&watcherCyclesCompleted, 1)
		atomic.StoreInt64(&watcherLastSuccessUnix, status.FinishedAt.Unix())
	case models.CycleAborted:
		atomic.AddUint64(&watcherCyclesAborted, 1)
	}
}

// trackCycle wraps one run with the started counter and running gauge.
func trackCycle(run func()) {
	atomic.AddUint64(&watcherCyclesStarted, 1)
	atomic.AddInt64(&watcherCyclesRunning, 1)
	defer atomic.AddInt64(&watcherCyclesRunning, -1)
	run()
}

func startMetricsServer(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", handleMetrics)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("metrics shutdown error: %v", err)
		}
	}()

	go func() {
		log.Printf("metrics listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	body := fmt.Sprintf(
		"request_radar_watcher_up 1\n"+
			"request_radar_cycles_started_total %d\n"+
			"request_radar_cycles_completed_total %d\n"+
			"request_radar_cycles_aborted_total %d\n"+
			"request_radar_cycles_running %d\n"+
			"request_radar_last_success_timestamp_seconds %d\n",
		atomic.LoadUint64(&watcherCyclesStarted),
		atomic.LoadUint64(&watcherCyclesCompleted),
		atomic.LoadUint64(&watcherCyclesAborted),
		atomic.LoadInt64(&watcherCyclesRunning),
		atomic.LoadInt64(&watcherLastSuccessUnix),
	)
	body += "# HELP request_radar_requests_total Listing candidates by outcome.\n"
	body += "# TYPE request_radar_requests_total counter\n"
	body += fmt.Sprintf(
		"request_radar_requests_total{outcome=\"parsed\"} %d\n"+
			"request_radar_requests_total{outcome=\"known\"} %d\n"+
			"request_radar_requests_total{outcome=\"skipped\"} %d\n"+
			"request_radar_requests_total{outcome=\"inserted\"} %d\n"+
			"request_radar_requests_total{outcome=\"conflict\"} %d\n",
		atomic.LoadUint64(&watcherRequestsParsed),
		atomic.LoadUint64(&watcherRequestsKnown),
		atomic.LoadUint64(&watcherRequestsSkipped),
		atomic.LoadUint64(&watcherRequestsInserted),
		atomic.LoadUint64(&watcherRequestsConflicts),
	)
	body += fmt.Sprintf(
		"request_radar_notifications_total{result=\"sent\"} %d\n"+
			"request_radar_notifications_total{result=\"failed\"} %d\n"+
			"request_radar_fetch_errors_total{kind=\"listing\"} %d\n"+
			"request_radar_fetch_errors_total{kind=\"detail\"} %d\n",
		atomic.LoadUint64(&watcherNotifySent),
		atomic.LoadUint64(&watcherNotifyFailed),
		atomic.LoadUint64(&watcherListingErrors),
		atomic.LoadUint64(&watcherDetailErrors),
	)
	body += "# HELP request_radar_rate_limit_hits_total HTTP 429 responses from the site.\n"
	body += "# TYPE request_radar_rate_limit_hits_total counter\n"
	body += fmt.Sprintf("request_radar_rate_limit_hits_total %d\n", atomic.LoadUint64(&watcherRateLimitHitsTotal))
	if metricsProxyURL != "" {
		body += "# HELP request_radar_proxy_info Proxy URL this watcher uses (1 when set).\n"
		body += "# TYPE request_radar_proxy_info gauge\n"
		body += fmt.Sprintf("request_radar_proxy_info{proxy=%q} 1\n", escapeMetricLabel(metricsProxyURL))
	}

	var histogram strings.Builder
	histogram.WriteString("# HELP request_radar_detail_fetch_latency_seconds Detail page fetch latency.\n")
	histogram.WriteString("# TYPE request_radar_detail_fetch_latency_seconds histogram\n")
	appendHistogram(&histogram, "request_radar_detail_fetch_latency_seconds", fetchLatencyBuckets,
		fetchLatencyCounts, &fetchLatencySumNs, &fetchLatencyCount, "%.2f")

	_, _ = w.Write([]byte(body + histogram.String()))
}

// escapeMetricLabel escapes backslash and double quote for Prometheus label values.
func escapeMetricLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, "\"", "\\\"")
}

// appendHistogram writes a Prometheus histogram (buckets, +Inf, sum, count) to sb.
// counts must have len(buckets)+1 elements.
func appendHistogram(sb *strings.Builder, name string, buckets []float64, counts []uint64, sumNs, count *uint64, leFmt string) {
	var cumulative uint64
	for i, bound := range buckets {
		cumulative += atomic.LoadUint64(&counts[i])
		sb.WriteString(fmt.Sprintf("%s_bucket{le=\"%s\"} %d\n", name, fmt.Sprintf(leFmt, bound), cumulative))
	}
	cumulative += atomic.LoadUint64(&counts[len(buckets)])
	sb.WriteString(fmt.Sprintf("%s_bucket{le=\"+Inf\"} %d\n", name, cumulative))
	sumSeconds := float64(atomic.LoadUint64(sumNs)) / float64(time.Second)
	sb.WriteString(fmt.Sprintf("%s_sum %.6f\n", name, sumSeconds))
	sb.WriteString(fmt.Sprintf("%s_count %d\n", name, atomic.LoadUint64(count)))
}

// observeFetchLatency updates the manual detail fetch histogram.
func observeFetchLatency(duration time.Duration) {
	if duration <= 0 {
		return
	}
	seconds := duration.Seconds()
	bucketIndex := len(fetchLatencyBuckets)
	for i, bound := range fetchLatencyBuckets {
		if seconds <= bound {
			bucketIndex = i
			break
		}
	}
	atomic.AddUint64(&fetchLatencyCounts[bucketIndex], 1)
	atomic.AddUint64(&fetchLatencySumNs, uint64(duration.Nanoseconds()))
	atomic.AddUint64(&fetchLatencyCount, 1)
}
