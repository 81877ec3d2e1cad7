package stream_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/segmentio/kafka-go"

	"request-radar/internal/stream"
	"request-radar/mocks"
)

func TestConsumeCommitsHandledAndSkipped(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ok := kafka.Message{Offset: 1, Value: []byte("ok")}
	bad := kafka.Message{Offset: 2, Value: []byte("bad")}
	fail := kafka.Message{Offset: 3, Value: []byte("fail")}

	reader := mocks.NewMockMessageReader(ctrl)
	gomock.InOrder(
		reader.EXPECT().FetchMessage(gomock.Any()).Return(ok, nil),
		reader.EXPECT().FetchMessage(gomock.Any()).Return(bad, nil),
		reader.EXPECT().FetchMessage(gomock.Any()).Return(fail, nil),
		reader.EXPECT().FetchMessage(gomock.Any()).DoAndReturn(func(context.Context) (kafka.Message, error) {
			cancel()
			return kafka.Message{}, context.Canceled
		}),
	)
	reader.EXPECT().CommitMessages(gomock.Any(), ok).Return(nil)
	reader.EXPECT().CommitMessages(gomock.Any(), bad).Return(nil)

	var received, handled, skipped, failed int
	stream.Consume(ctx, "test", reader, func(_ context.Context, msg kafka.Message) error {
		switch string(msg.Value) {
		case "bad":
			return fmt.Errorf("decode: %w", stream.ErrSkip)
		case "fail":
			return errors.New("neo4j unavailable")
		}
		return nil
	}, stream.Hooks{
		Received: func() { received++ },
		Handled:  func() { handled++ },
		Skipped:  func() { skipped++ },
		Failed:   func() { failed++ },
	})

	if received != 3 || handled != 1 || skipped != 1 || failed != 1 {
		t.Fatalf("unexpected hook counts received=%d handled=%d skipped=%d failed=%d", received, handled, skipped, failed)
	}
}

func TestConsumeNilHooks(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := kafka.Message{Offset: 9}
	reader := mocks.NewMockMessageReader(ctrl)
	gomock.InOrder(
		reader.EXPECT().FetchMessage(gomock.Any()).Return(msg, nil),
		reader.EXPECT().FetchMessage(gomock.Any()).DoAndReturn(func(context.Context) (kafka.Message, error) {
			cancel()
			return kafka.Message{}, context.Canceled
		}),
	)
	reader.EXPECT().CommitMessages(gomock.Any(), msg).Return(nil)

	stream.Consume(ctx, "test", reader, func(context.Context, kafka.Message) error { return nil }, stream.Hooks{})
}
