package ingest

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// StartKafka consumes one badge event per message.
func (p *Pipeline) StartKafka(ctx context.Context) {
	current := p.cfg.Get().Ingest.Kafka
	if !current.Enabled {
		if p.logger != nil {
			p.logger.Info("kafka ingest disabled")
		}
		return
	}
	if p.logger != nil {
		p.logger.Info("kafka ingest enabled", "brokers", current.Brokers, "topic", current.Topic, "group_id", current.GroupID)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  current.Brokers,
		Topic:    current.Topic,
		GroupID:  current.GroupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	parser := NewParser()
	go func() {
		defer reader.Close()
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if p.logger != nil {
					p.logger.Warn("kafka read error", "err", err)
				}
				if !BackoffSleep(ctx, 500*time.Millisecond) {
					return
				}
				continue
			}
			p.handleLine(ctx, parser, string(m.Value), "kafka")
		}
	}()
}
