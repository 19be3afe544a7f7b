package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/segmentio/kafka-go"
)

// headerEventType はメッセージヘッダーに載せるイベント種類のキー。
const headerEventType = "event-type"

// messageWriter はkafka.Writerのうち購読者が使う部分。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaObserver はイベントをKafkaトピックへ書き込む購読者。
// 同じ集約のイベントが同じパーティションに入るよう、AggregateIDをメッセージキーにする。
type KafkaObserver struct {
	writer messageWriter
	topic  string
}

// NewKafkaObserver はbrokersのtopicへ非同期に書き込むKafkaObserverを生成する。
// 非同期書き込みのため送信失敗はCompletionでログに記録する。
func NewKafkaObserver(brokers []string, topic string) *KafkaObserver {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Printf("[Kafka] メッセージ送信に失敗 topic=%s count=%d: %v", topic, len(messages), err)
			}
		},
	}
	return &KafkaObserver{writer: w, topic: topic}
}

// Name は購読者名を返す。
func (k *KafkaObserver) Name() string { return "kafka:" + k.topic }

// Notify はイベント全体をJSONにしてトピックへ書き込む。
func (k *KafkaObserver) Notify(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("イベントのシリアライズに失敗: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.AggregateID),
		Value: value,
		Time:  e.Timestamp,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(e.Type)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("Kafkaへの書き込みに失敗: %w", err)
	}
	return nil
}

// Close は未送信のメッセージを送り出してから接続を閉じる。
func (k *KafkaObserver) Close() error {
	return k.writer.Close()
}
