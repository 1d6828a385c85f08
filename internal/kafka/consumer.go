// Package kafka ingests check events from a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"alert-router/internal/metrics"
	"alert-router/internal/models"
)

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// DecodeEvent parses one message value.
func DecodeEvent(value []byte) (*models.Event, error) {
	var p models.EventPayload
	if err := json.Unmarshal(value, &p); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return p.Event()
}

// EventQueuer accepts decoded events. notification.Service satisfies it.
type EventQueuer interface {
	QueueEvent(event *models.Event) bool
}

// MessageReader is the subset of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader  MessageReader
	svc     EventQueuer
	logger  *logrus.Entry
	metrics *metrics.Metrics
	cancel  context.CancelFunc
}

func NewConsumer(cfg Config, svc EventQueuer, logger *logrus.Entry, m *metrics.Metrics) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one Kafka broker address is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
	})
	return newConsumer(reader, svc, logger, m), nil
}

func newConsumer(reader MessageReader, svc EventQueuer, logger *logrus.Entry, m *metrics.Metrics) *Consumer {
	return &Consumer{
		reader:  reader,
		svc:     svc,
		logger:  logger.WithField("component", "kafka"),
		metrics: m,
	}
}

// Start runs the consume loop until Close.
func (c *Consumer) Start(wg *sync.WaitGroup) {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Info("Kafka consumer started")
		c.consumeLoop(ctx)
		c.logger.Info("Kafka consumer stopped")
	}()
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			c.logger.WithError(err).Error("read message failed")
			c.metrics.RecordKafka("read_error")
			continue
		}
		c.handle(msg)
	}
}

func (c *Consumer) handle(msg kafka.Message) {
	event, err := DecodeEvent(msg.Value)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"partition": msg.Partition,
			"offset":    msg.Offset,
		}).Error("invalid event message")
		c.metrics.RecordKafka("invalid")
		return
	}
	if !c.svc.QueueEvent(event) {
		c.metrics.RecordKafka("dropped")
		return
	}
	c.metrics.RecordKafka("queued")
	c.logger.WithField("check", event.CheckID()).Debug("processed Kafka message")
}

// Close stops the loop and closes the reader.
func (c *Consumer) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	return c.reader.Close()
}
