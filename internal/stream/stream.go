// Package stream holds the Kafka plumbing shared by the notifier and the
// event consumers.
package stream

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageReader abstracts kafka.Reader.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageWriter abstracts kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ErrSkip marks a message that can never be handled (bad payload). Consume
// commits it so it is not redelivered after a restart.
var ErrSkip = errors.New("skip message")

// fetchRetryDelay is the pause after a failed fetch.
const fetchRetryDelay = 500 * time.Millisecond

// Hooks observe the consume loop. Any field may be nil.
type Hooks struct {
	Received func()
	Handled  func()
	Skipped  func()
	Failed   func()
}

// Consume fetches messages until ctx is done. A message is committed after
// handle succeeds or returns ErrSkip. Any other error skips the commit, but
// the event is dropped once a later offset on the partition commits.
func Consume(ctx context.Context, name string, reader MessageReader, handle func(context.Context, kafka.Message) error, hooks Hooks) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("%s fetch error: %v", name, err)
			time.Sleep(fetchRetryDelay)
			continue
		}
		call(hooks.Received)

		if err := handle(ctx, msg); err != nil {
			if !errors.Is(err, ErrSkip) {
				call(hooks.Failed)
				log.Printf("%s handle error partition=%d offset=%d: %v", name, msg.Partition, msg.Offset, err)
				continue
			}
			call(hooks.Skipped)
			log.Printf("%s skipped partition=%d offset=%d: %v", name, msg.Partition, msg.Offset, err)
		} else {
			call(hooks.Handled)
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Printf("%s commit error: %v", name, err)
		}
	}
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}
