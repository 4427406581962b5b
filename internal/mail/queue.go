package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Envelope 队列里的消息体
type Envelope struct {
	From     string    `json:"from"`
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	HTML     string    `json:"html"`
	Text     string    `json:"text"`
	QueuedAt time.Time `json:"queuedAt"`
}

// QueueSender 把邮件投递到 RabbitMQ 持久队列
type QueueSender struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	from  string
	log   *zap.Logger
	mu    sync.Mutex
}

func DialQueue(url, queue, from string, l *zap.Logger) (*QueueSender, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	// 持久队列，broker 重启不丢
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	return &QueueSender{conn: conn, ch: ch, queue: queue, from: from, log: l}, nil
}

func (s *QueueSender) Send(ctx context.Context, m Message) error {
	body, err := EncodeEnvelope(s.from, m, time.Now().UTC())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.ch.PublishWithContext(ctx, "", s.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		s.log.Warn("mail publish failed", zap.String("queue", s.queue), zap.String("to", m.To), zap.Error(err))
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

func (s *QueueSender) Close() error {
	_ = s.ch.Close()
	return s.conn.Close()
}

func EncodeEnvelope(from string, m Message, at time.Time) ([]byte, error) {
	return json.Marshal(Envelope{
		From:     from,
		To:       m.To,
		Subject:  m.Subject,
		HTML:     m.HTML,
		Text:     m.Text,
		QueuedAt: at,
	})
}
