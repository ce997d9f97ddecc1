package infra

import (
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// NewKafkaWriter returns a writer for the change-event topic, or nil when no
// brokers are configured.
func NewKafkaWriter(brokers, topic string) *kafka.Writer {
	addrs := splitBrokers(brokers)
	if len(addrs) == 0 {
		return nil
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(addrs...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // same entity, same partition
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		WriteTimeout:           5 * time.Second,
	}
}

func splitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
