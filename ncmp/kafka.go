/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmp

import (
	"context"
	_ "embed"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/Shopify/sarama"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/cps-perf/ncmploader"
)

const (
	avcEventType       = "org.onap.cps.ncmp.events.avc1_0_0.AvcEvent"
	avcEventDataSchema = "urn:cps:org.onap.cps.ncmp.events.avc1_0_0.AvcEvent:1.0.0"
	networkElements    = 10

	// DefaultConsumeMaxWait max time Consume waits for a full batch
	DefaultConsumeMaxWait = time.Second
)

//go:embed resources/sampleAvcInputEvent.json
var sampleAvcEvent []byte

// SampleAvcEvent compacted sample AVC event payload
func SampleAvcEvent() ([]byte, error) {
	var v interface{}
	if err := jsoniter.Unmarshal(sampleAvcEvent, &v); err != nil {
		return nil, errors.Wrap(err, "bad sample avc event")
	}
	return jsoniter.Marshal(v)
}

func newSaramaConfig() *sarama.Config {
	conf := sarama.NewConfig()
	conf.ClientID = "ncmploader"
	// record headers need kafka >= 0.11
	conf.Version = sarama.V2_0_0_0
	return conf
}

// AvcProducer publishes AVC cloud events to the dmi events topic
type AvcProducer struct {
	producer sarama.SyncProducer
	topic    string
	payload  []byte
	L        *ncmploader.Logger
}

func NewAvcProducer(cfg Config, l *ncmploader.Logger) (*AvcProducer, error) {
	conf := newSaramaConfig()
	conf.Producer.RequiredAcks = sarama.WaitForAll
	conf.Producer.Return.Successes = true
	conf.Producer.Compression = sarama.CompressionGZIP
	conf.Producer.Timeout = 30 * time.Second
	p, err := sarama.NewSyncProducer(cfg.KafkaBrokers(), conf)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create avc producer")
	}
	return NewAvcProducerFrom(p, cfg.AvcEventsTopic, l)
}

// NewAvcProducerFrom wraps existing producer
func NewAvcProducerFrom(p sarama.SyncProducer, topic string, l *ncmploader.Logger) (*AvcProducer, error) {
	payload, err := SampleAvcEvent()
	if err != nil {
		return nil, err
	}
	if l == nil {
		l = ncmploader.NewNopLogger()
	}
	return &AvcProducer{producer: p, topic: topic, payload: payload, L: l}, nil
}

func cloudEventHeaders(destination string) []sarama.RecordHeader {
	h := func(k, v string) sarama.RecordHeader {
		return sarama.RecordHeader{Key: []byte(k), Value: []byte(v)}
	}
	return []sarama.RecordHeader{
		h("ce_type", avcEventType),
		h("ce_source", "DMI"),
		h("ce_destination", destination),
		h("ce_specversion", "1.0"),
		h("ce_time", time.Now().UTC().Format(time.RFC3339Nano)),
		h("ce_id", uuid.New().String()),
		h("ce_dataschema", avcEventDataSchema),
		h("ce_correlationid", uuid.New().String()),
	}
}

func randomNetworkElement() string {
	return fmt.Sprintf("neType-%d", rand.Intn(networkElements)+1)
}

// NewAvcEvent cloud event keyed by random network element
func (p *AvcProducer) NewAvcEvent() *sarama.ProducerMessage {
	return &sarama.ProducerMessage{
		Topic:   p.topic,
		Key:     sarama.StringEncoder(randomNetworkElement()),
		Value:   sarama.ByteEncoder(p.payload),
		Headers: cloudEventHeaders(p.topic),
	}
}

// SendBatch sends n events in one producer call
func (p *AvcProducer) SendBatch(n int) error {
	msgs := make([]*sarama.ProducerMessage, n)
	for i := range msgs {
		msgs[i] = p.NewAvcEvent()
	}
	if err := p.producer.SendMessages(msgs); err != nil {
		return errors.Wrapf(err, "failed to send %d avc events", n)
	}
	return nil
}

func (p *AvcProducer) Close() error {
	return p.producer.Close()
}

// BatchConsumer reads all partitions of a topic from the oldest offset
type BatchConsumer struct {
	consumer   sarama.Consumer
	partitions []sarama.PartitionConsumer
	messages   chan *sarama.ConsumerMessage
	done       chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
	MaxWait    time.Duration
	L          *ncmploader.Logger
}

func NewBatchConsumer(cfg Config, l *ncmploader.Logger) (*BatchConsumer, error) {
	c, err := sarama.NewConsumer(cfg.KafkaBrokers(), newSaramaConfig())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create batch consumer")
	}
	return NewBatchConsumerFrom(c, cfg.LegacyBatchTopic, l)
}

// NewBatchConsumerFrom starts consuming every partition of topic
func NewBatchConsumerFrom(c sarama.Consumer, topic string, l *ncmploader.Logger) (*BatchConsumer, error) {
	if l == nil {
		l = ncmploader.NewNopLogger()
	}
	b := &BatchConsumer{
		consumer: c,
		messages: make(chan *sarama.ConsumerMessage),
		done:     make(chan struct{}),
		MaxWait:  DefaultConsumeMaxWait,
		L:        l,
	}
	partitions, err := c.Partitions(topic)
	if err != nil {
		_ = c.Close()
		return nil, errors.Wrapf(err, "failed to get partitions of %s", topic)
	}
	for _, partition := range partitions {
		pc, err := c.ConsumePartition(topic, partition, sarama.OffsetOldest)
		if err != nil {
			b.Close()
			return nil, errors.Wrapf(err, "failed to consume partition %d of %s", partition, topic)
		}
		b.partitions = append(b.partitions, pc)
		b.wg.Add(1)
		go b.fanIn(pc)
	}
	l.Debugf("consuming %d partitions of %s", len(partitions), topic)
	return b, nil
}

func (b *BatchConsumer) fanIn(pc sarama.PartitionConsumer) {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case msg, ok := <-pc.Messages():
			if !ok {
				return
			}
			select {
			case b.messages <- msg:
			case <-b.done:
				return
			}
		}
	}
}

// Consume returns up to limit messages, waiting no longer than MaxWait for the batch to fill up
func (b *BatchConsumer) Consume(ctx context.Context, limit int) ([]*sarama.ConsumerMessage, error) {
	msgs := make([]*sarama.ConsumerMessage, 0, limit)
	timer := time.NewTimer(b.MaxWait)
	defer timer.Stop()
	for len(msgs) < limit {
		select {
		case <-ctx.Done():
			return msgs, ctx.Err()
		case <-timer.C:
			return msgs, nil
		case msg := <-b.messages:
			msgs = append(msgs, msg)
		}
	}
	return msgs, nil
}

// ConsumeUntil consumes in batches until total messages are read, returns amount consumed
func (b *BatchConsumer) ConsumeUntil(ctx context.Context, total, batch int) (int, error) {
	consumed := 0
	for consumed < total {
		limit := batch
		if rest := total - consumed; rest < limit {
			limit = rest
		}
		msgs, err := b.Consume(ctx, limit)
		consumed += len(msgs)
		if err != nil {
			return consumed, errors.Wrapf(err, "consumed %d/%d messages", consumed, total)
		}
	}
	return consumed, nil
}

func (b *BatchConsumer) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
		for _, pc := range b.partitions {
			if err := pc.Close(); err != nil {
				b.L.Warnf("failed to close partition consumer: %s", err)
			}
		}
		b.wg.Wait()
		if err := b.consumer.Close(); err != nil {
			b.L.Warnf("failed to close consumer: %s", err)
		}
	})
}
