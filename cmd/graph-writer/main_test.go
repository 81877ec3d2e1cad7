package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/segmentio/kafka-go"

	"request-radar/internal/graph"
	"request-radar/internal/models"
	"request-radar/internal/stream"
	"request-radar/mocks"
)

type recordingWriter struct {
	events []models.RequestEvent
	err    error
}

func (w *recordingWriter) WriteRequest(_ context.Context, event models.RequestEvent) error {
	w.events = append(w.events, event)
	return w.err
}

func resetGraphWriterMetrics() {
	atomic.StoreUint64(&graphWriterEventsReceived, 0)
	atomic.StoreUint64(&graphWriterEventsWritten, 0)
	atomic.StoreUint64(&graphWriterEventsSkipped, 0)
	atomic.StoreUint64(&graphWriterEventsFailed, 0)
}

func eventPayload(t *testing.T, id int64) []byte {
	t.Helper()
	payload, err := models.NewRequestEvent("cycle-1", models.Request{ID: id, Title: "t", Author: "sara"})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	return payload
}

func TestHandleEventWritesRequest(t *testing.T) {
	writer := &recordingWriter{}
	if err := handleEvent(context.Background(), writer, eventPayload(t, 101)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(writer.events) != 1 || writer.events[0].Request.ID != 101 || writer.events[0].CycleID != "cycle-1" {
		t.Fatalf("unexpected events %+v", writer.events)
	}
}

func TestHandleEventSkipsBadPayloads(t *testing.T) {
	writer := &recordingWriter{}
	for _, payload := range [][]byte{[]byte("{not json"), []byte(`{"request":{"id":0}}`)} {
		if err := handleEvent(context.Background(), writer, payload); !errors.Is(err, stream.ErrSkip) {
			t.Fatalf("expected skip for %s, got %v", payload, err)
		}
	}
	if len(writer.events) != 0 {
		t.Fatalf("expected no writes, got %+v", writer.events)
	}
}

func TestHandleEventPropagatesWriteError(t *testing.T) {
	writer := &recordingWriter{err: errors.New("neo4j unavailable")}
	err := handleEvent(context.Background(), writer, eventPayload(t, 5))
	if err == nil || errors.Is(err, stream.ErrSkip) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func TestConsumeEventsWritesThroughNeo4j(t *testing.T) {
	resetGraphWriterMetrics()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	driver := mocks.NewMockDriverSessioner(ctrl)
	session := mocks.NewMockSessionRunner(ctrl)
	driver.EXPECT().NewSession(gomock.Any(), gomock.Any()).Return(session)
	session.EXPECT().ExecuteWrite(gomock.Any(), gomock.Any()).Return(nil, nil)
	session.EXPECT().Close(gomock.Any()).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	good := kafka.Message{Offset: 1, Value: eventPayload(t, 101)}
	bad := kafka.Message{Offset: 2, Value: []byte("garbage")}
	reader := mocks.NewMockMessageReader(ctrl)
	gomock.InOrder(
		reader.EXPECT().FetchMessage(gomock.Any()).Return(good, nil),
		reader.EXPECT().FetchMessage(gomock.Any()).Return(bad, nil),
		reader.EXPECT().FetchMessage(gomock.Any()).DoAndReturn(func(context.Context) (kafka.Message, error) {
			cancel()
			return kafka.Message{}, context.Canceled
		}),
	)
	reader.EXPECT().CommitMessages(gomock.Any(), good).Return(nil)
	reader.EXPECT().CommitMessages(gomock.Any(), bad).Return(nil)

	consumeEvents(ctx, reader, graph.NewWriter(driver))

	if atomic.LoadUint64(&graphWriterEventsReceived) != 2 ||
		atomic.LoadUint64(&graphWriterEventsWritten) != 1 ||
		atomic.LoadUint64(&graphWriterEventsSkipped) != 1 ||
		atomic.LoadUint64(&graphWriterEventsFailed) != 0 {
		t.Fatalf("unexpected counters received=%d written=%d skipped=%d failed=%d",
			graphWriterEventsReceived, graphWriterEventsWritten, graphWriterEventsSkipped, graphWriterEventsFailed)
	}
}

func TestConsumeEventsLeavesFailedWritesUncommitted(t *testing.T) {
	resetGraphWriterMetrics()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := kafka.Message{Offset: 1, Value: eventPayload(t, 101)}
	reader := mocks.NewMockMessageReader(ctrl)
	gomock.InOrder(
		reader.EXPECT().FetchMessage(gomock.Any()).Return(msg, nil),
		reader.EXPECT().FetchMessage(gomock.Any()).DoAndReturn(func(context.Context) (kafka.Message, error) {
			cancel()
			return kafka.Message{}, context.Canceled
		}),
	)
	reader.EXPECT().CommitMessages(gomock.Any(), gomock.Any()).Times(0)

	consumeEvents(ctx, reader, &recordingWriter{err: errors.New("neo4j unavailable")})

	if atomic.LoadUint64(&graphWriterEventsFailed) != 1 {
		t.Fatalf("expected one failed write")
	}
}

func TestHandleMetricsMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	handleMetrics(rec, httptest.NewRequest(http.MethodPost, "/metrics", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}

func TestHandleMetricsOK(t *testing.T) {
	resetGraphWriterMetrics()
	atomic.AddUint64(&graphWriterEventsWritten, 3)

	rec := httptest.NewRecorder()
	handleMetrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "request_radar_graph_writer_up 1") ||
		!strings.Contains(body, "request_radar_graph_writer_events_written_total 3") {
		t.Fatalf("unexpected metrics body: %s", body)
	}
}
