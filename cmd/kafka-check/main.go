package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"

	"request-radar/common"
	"request-radar/internal/config"
)

var errTopicMissing = errors.New("topic not found")

func main() {
	_ = godotenv.Load()
	broker := common.GetEnv("KAFKA_BROKER", "localhost:9092")
	topic := common.GetEnv("KAFKA_EVENTS_TOPIC", config.DefaultEventsTopic)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to Kafka at %s: %v\n", broker, err)
		os.Exit(1)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read metadata: %v\n", err)
		os.Exit(1)
	}

	summary, err := describeTopic(partitions, topic)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connected to Kafka at %s but %s: %v\n", broker, topic, err)
		os.Exit(1)
	}
	fmt.Printf("connected to Kafka at %s (%d partitions total); %s\n", broker, len(partitions), summary)
}

// describeTopic summarises the partitions of topic found in the cluster metadata.
func describeTopic(partitions []kafka.Partition, topic string) (string, error) {
	var ids []int
	for _, p := range partitions {
		if p.Topic == topic {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return "", errTopicMissing
	}
	sort.Ints(ids)
	return fmt.Sprintf("topic %s has %d partitions %v", topic, len(ids), ids), nil
}
