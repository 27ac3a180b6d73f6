package natsadapter

import (
	"github.com/nats-io/nats.go"
)

// Subscriber implements ports.EventSubscriber on a shared NATS connection.
type Subscriber struct {
	conn *nats.Conn
}

// NewSubscriber wraps an existing connection.
func NewSubscriber(conn *nats.Conn) *Subscriber {
	return &Subscriber{conn: conn}
}

// SubscribeSession delivers every event of one session to handler.
func (s *Subscriber) SubscribeSession(sessionID string, handler func(data []byte)) (func(), error) {
	sub, err := s.conn.Subscribe(SubjectPrefix+sessionID+".>", func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, err
	}
	return func() { _ = sub.Unsubscribe() }, nil
}
