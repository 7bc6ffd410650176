package stream

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/starwit/sae-geo-mapper/config"
	"github.com/starwit/sae-geo-mapper/logger"
)

// Producer publishes transformed envelopes to the per-stream output topics.
type Producer struct {
	producer     *kafka.Producer
	cfg          *config.KafkaConfig
	deliveryChan chan kafka.Event

	messagesSent   atomic.Int64
	messagesAcked  atomic.Int64
	messagesFailed atomic.Int64

	wg   sync.WaitGroup
	done chan struct{}
}

// NewProducer connects to the brokers and starts the delivery-report
// handler.
func NewProducer(cfg *config.KafkaConfig) (*Producer, error) {
	cm := &kafka.ConfigMap{
		"bootstrap.servers":  cfg.BootstrapServers,
		"enable.idempotence": true,
		"linger.ms":          10,
	}
	applySecurity(cm, cfg)
	p, err := kafka.NewProducer(cm)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	kp := &Producer{
		producer:     p,
		cfg:          cfg,
		deliveryChan: make(chan kafka.Event, 1000),
		done:         make(chan struct{}),
	}
	kp.wg.Add(1)
	go kp.handleDeliveryReports()
	return kp, nil
}

func (kp *Producer) handleDeliveryReports() {
	defer kp.wg.Done()
	for {
		select {
		case <-kp.done:
			return
		case e := <-kp.deliveryChan:
			m, ok := e.(*kafka.Message)
			if !ok {
				continue
			}
			if m.TopicPartition.Error != nil {
				kp.messagesFailed.Add(1)
				logger.S().Warnf("delivery failed: %v (offset: %v)", m.TopicPartition.Error, m.TopicPartition.Offset)
			} else {
				kp.messagesAcked.Add(1)
			}
		}
	}
}

// Publish queues an envelope for the stream's output topic. The stream ID is
// used as partition key so per-stream ordering survives the broker.
func (kp *Producer) Publish(streamID string, payload []byte) error {
	topic := OutputTopic(kp.cfg, streamID)
	message := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(streamID),
		Value: payload,
	}
	if err := kp.producer.Produce(message, kp.deliveryChan); err != nil {
		kp.messagesFailed.Add(1)
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	kp.messagesSent.Add(1)
	return nil
}

// Close flushes pending messages and shuts the producer down.
func (kp *Producer) Close() {
	remaining := kp.producer.Flush(int((10 * time.Second).Milliseconds()))
	if remaining > 0 {
		logger.S().Warnf("%d messages still in queue after flush timeout", remaining)
	}
	close(kp.done)
	kp.wg.Wait()
	kp.producer.Close()
	logger.S().Infof("kafka producer closed: sent=%d acked=%d failed=%d",
		kp.messagesSent.Load(), kp.messagesAcked.Load(), kp.messagesFailed.Load())
}
