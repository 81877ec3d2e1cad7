package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"

	"request-radar/common"
	"request-radar/internal/config"
	"request-radar/internal/graph"
	"request-radar/internal/models"
	"request-radar/internal/stream"
)

var (
	// Counters for graph-writer throughput and failures exposed on /metrics.
	// received: events fetched from Kafka; skipped: undecodable payloads; failed: Neo4j write errors.
	graphWriterEventsReceived uint64
	graphWriterEventsWritten  uint64
	graphWriterEventsSkipped  uint64
	graphWriterEventsFailed   uint64
)

type requestWriter interface {
	WriteRequest(ctx context.Context, event models.RequestEvent) error
}

func main() {
	_ = godotenv.Load()
	broker := common.GetEnv("KAFKA_BROKER", "localhost:9092")
	topic := common.GetEnv("KAFKA_EVENTS_TOPIC", config.DefaultEventsTopic)
	group := common.GetEnv("KAFKA_EVENTS_GROUP", "request-radar-graph")
	metricsAddr := common.GetEnv("METRICS_ADDR", ":9091")

	neo4jURI := common.GetEnv("NEO4J_URI", "neo4j://localhost:7687")
	neo4jUser := common.GetEnv("NEO4J_USER", "neo4j")
	neo4jPassword := common.GetEnv("NEO4J_PASSWORD", "neo4j")

	driver, err := graph.NewDriver(neo4jURI, neo4jUser, neo4jPassword)
	if err != nil {
		log.Fatalf("neo4j driver error: %v", err)
	}
	defer func() {
		if err := driver.Close(context.Background()); err != nil {
			log.Printf("neo4j close error: %v", err)
		}
	}()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{broker},
		Topic:   topic,
		GroupID: group,
	})
	defer func() {
		if err := reader.Close(); err != nil {
			log.Printf("events reader close error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		startMetricsServer(ctx, metricsAddr)
	}

	log.Printf("graph-writer consuming topic=%s group=%s broker=%s neo4j=%s", topic, group, broker, neo4jURI)
	consumeEvents(ctx, reader, graph.NewWriter(driver))
}

func consumeEvents(ctx context.Context, reader stream.MessageReader, writer requestWriter) {
	stream.Consume(ctx, "events", reader, func(ctx context.Context, msg kafka.Message) error {
		return handleEvent(ctx, writer, msg.Value)
	}, stream.Hooks{
		Received: func() { atomic.AddUint64(&graphWriterEventsReceived, 1) },
		Handled:  func() { atomic.AddUint64(&graphWriterEventsWritten, 1) },
		Skipped:  func() { atomic.AddUint64(&graphWriterEventsSkipped, 1) },
		Failed:   func() { atomic.AddUint64(&graphWriterEventsFailed, 1) },
	})
}

func handleEvent(ctx context.Context, writer requestWriter, payload []byte) error {
	var event models.RequestEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decode event: %v: %w", err, stream.ErrSkip)
	}
	if event.Request.ID <= 0 {
		return fmt.Errorf("event without request id: %w", stream.ErrSkip)
	}
	return writer.WriteRequest(ctx, event)
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
		"request_radar_graph_writer_up 1\n"+
			"request_radar_graph_writer_events_received_total %d\n"+
			"request_radar_graph_writer_events_written_total %d\n"+
			"request_radar_graph_writer_events_skipped_total %d\n"+
			"request_radar_graph_writer_events_failed_total %d\n",
		atomic.LoadUint64(&graphWriterEventsReceived),
		atomic.LoadUint64(&graphWriterEventsWritten),
		atomic.LoadUint64(&graphWriterEventsSkipped),
		atomic.LoadUint64(&graphWriterEventsFailed),
	)
	_, _ = w.Write([]byte(body))
}
