// Package stream moves envelopes in and out of Kafka. One input topic per
// configured stream, one output topic per stream.
package stream

import (
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/starwit/sae-geo-mapper/config"
	"github.com/starwit/sae-geo-mapper/logger"
)

// Consumer subscribes to the input topics of all configured streams and
// hands raw envelope bytes to the processing loop.
type Consumer struct {
	consumer *kafka.Consumer
}

// NewConsumer connects to the brokers and subscribes to
// <inputTopicPrefix>.<streamID> for every configured camera.
func NewConsumer(cfg *config.KafkaConfig, streamIDs []string) (*Consumer, error) {
	cm := &kafka.ConfigMap{
		"bootstrap.servers":  cfg.BootstrapServers,
		"group.id":           cfg.GroupID,
		"auto.offset.reset":  "latest",
		"enable.auto.commit": true,
	}
	applySecurity(cm, cfg)
	c, err := kafka.NewConsumer(cm)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	topics := make([]string, 0, len(streamIDs))
	for _, id := range streamIDs {
		topics = append(topics, InputTopic(cfg, id))
	}
	if err := c.SubscribeTopics(topics, nil); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("subscribe to %v: %w", topics, err)
	}
	logger.S().Infof("consuming from topics %v", topics)
	return &Consumer{consumer: c}, nil
}

// Poll waits up to timeoutMs for the next envelope. It returns nil when no
// message arrived within the timeout.
func (c *Consumer) Poll(timeoutMs int) []byte {
	ev := c.consumer.Poll(timeoutMs)
	switch e := ev.(type) {
	case *kafka.Message:
		return e.Value
	case kafka.Error:
		// Broker hiccups are retried by the client; just surface them.
		logger.S().Warnf("kafka consumer error: %v", e)
	}
	return nil
}

// Close leaves the consumer group.
func (c *Consumer) Close() {
	if err := c.consumer.Close(); err != nil {
		logger.S().Warnf("kafka consumer close error: %v", err)
	}
}

// InputTopic returns the input topic of a stream.
func InputTopic(cfg *config.KafkaConfig, streamID string) string {
	return fmt.Sprintf("%s.%s", cfg.InputTopicPrefix, streamID)
}

// OutputTopic returns the output topic of a stream.
func OutputTopic(cfg *config.KafkaConfig, streamID string) string {
	return fmt.Sprintf("%s.%s", cfg.OutputTopicPrefix, streamID)
}

func applySecurity(cm *kafka.ConfigMap, cfg *config.KafkaConfig) {
	if cfg.SecurityProtocol != "" {
		_ = cm.SetKey("security.protocol", cfg.SecurityProtocol)
	}
	if cfg.SASLMechanism != "" {
		_ = cm.SetKey("sasl.mechanism", cfg.SASLMechanism)
		_ = cm.SetKey("sasl.username", cfg.SASLUsername)
		_ = cm.SetKey("sasl.password", cfg.SASLPassword)
	}
}
