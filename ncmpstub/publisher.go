/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmpstub

import (
	"time"

	"github.com/Shopify/sarama"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

const dataOperationEventType = "org.onap.cps.ncmp.events.async1_0_0.DataOperationEvent"

// KafkaPublisher publishes one data operation event per batch read target
type KafkaPublisher struct {
	producer sarama.SyncProducer
}

func NewKafkaPublisher(brokers []string) (*KafkaPublisher, error) {
	conf := sarama.NewConfig()
	conf.ClientID = "ncmpstub"
	conf.Version = sarama.V2_0_0_0
	conf.Producer.Return.Successes = true
	conf.Producer.RequiredAcks = sarama.WaitForLocal
	p, err := sarama.NewSyncProducer(brokers, conf)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create stub publisher")
	}
	return NewKafkaPublisherFrom(p), nil
}

func NewKafkaPublisherFrom(p sarama.SyncProducer) *KafkaPublisher {
	return &KafkaPublisher{producer: p}
}

type dataOperationEvent struct {
	RequestId string `json:"requestId"`
	Data      struct {
		Responses []dataOperationResponse `json:"responses"`
	} `json:"data"`
}

type dataOperationResponse struct {
	OperationId   string      `json:"operationId"`
	Ids           []string    `json:"ids"`
	StatusCode    int         `json:"statusCode"`
	StatusMessage string      `json:"statusMessage"`
	Result        interface{} `json:"result"`
}

func (k *KafkaPublisher) PublishBatchRead(topic, requestId string, targetIds []string) error {
	msgs := make([]*sarama.ProducerMessage, 0, len(targetIds))
	for _, id := range targetIds {
		var ev dataOperationEvent
		ev.RequestId = requestId
		ev.Data.Responses = []dataOperationResponse{{
			OperationId:   "12",
			Ids:           []string{id},
			StatusCode:    0,
			StatusMessage: "Successfully applied changes",
			Result:        map[string]string{"neType": "RadioNode"},
		}}
		value, err := jsoniter.Marshal(ev)
		if err != nil {
			return errors.Wrap(err, "failed to marshal data operation event")
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: topic,
			Key:   sarama.StringEncoder(id),
			Value: sarama.ByteEncoder(value),
			Headers: []sarama.RecordHeader{
				{Key: []byte("ce_type"), Value: []byte(dataOperationEventType)},
				{Key: []byte("ce_id"), Value: []byte(uuid.New().String())},
				{Key: []byte("ce_time"), Value: []byte(time.Now().UTC().Format(time.RFC3339Nano))},
				{Key: []byte("ce_correlationid"), Value: []byte(requestId)},
			},
		})
	}
	if len(msgs) == 0 {
		return nil
	}
	return k.producer.SendMessages(msgs)
}

func (k *KafkaPublisher) Close() error {
	return k.producer.Close()
}
