package chat

import (
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/pkg/conn"
)

// recordQueueSize bounds how many messages may wait on a slow insert
// before Record starts dropping.
const recordQueueSize = 256

// Message is one relayed chat line persisted for history.
type Message struct {
	ID        uint   `gorm:"primaryKey"`
	Username  string `gorm:"size:256;index"`
	Body      string
	CreatedAt time.Time
}

// TableName keeps the table name stable across gorm naming changes.
func (Message) TableName() string { return "chat_messages" }

// Store appends relayed messages to Postgres. It is optional wiring: the
// relay runs without it and store failures never propagate to the loop.
// Inserts run on a dedicated writer goroutine so a slow database never
// stalls a broadcast.
type Store struct {
	client *conn.Client
	queue  chan Payload
	done   chan struct{}
}

// NewStore migrates the history table and starts the writer.
func NewStore(client *conn.Client) (*Store, error) {
	if client == nil || client.DB() == nil {
		return nil, errors.New("chat: nil database client")
	}
	if err := client.DB().AutoMigrate(&Message{}); err != nil {
		return nil, errors.Wrap(err, "migrate chat history")
	}
	s := &Store{client: client}
	s.start(s.insert)
	return s, nil
}

// start launches the writer goroutine feeding sink from the record queue.
func (s *Store) start(sink func(Payload) error) {
	s.queue = make(chan Payload, recordQueueSize)
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		for p := range s.queue {
			if err := sink(p); err != nil {
				logs.Errorf("record chat history: %v", err)
			}
		}
	}()
}

func (s *Store) insert(p Payload) error {
	m := Message{Username: p.Username, Body: p.Message}
	return s.client.DB().Create(&m).Error
}

// Record enqueues one relayed payload without blocking. When the writer
// backlog is full the message is dropped; history is best-effort.
func (s *Store) Record(p Payload) {
	if s == nil || s.queue == nil {
		return
	}
	select {
	case s.queue <- p:
	default:
		logs.Errorf("chat history backlog full, message dropped")
	}
}

// Close stops accepting records and waits for the writer to drain.
func (s *Store) Close() {
	if s == nil || s.queue == nil {
		return
	}
	close(s.queue)
	<-s.done
}

// Recent returns up to limit most recent messages, newest first.
func (s *Store) Recent(limit int) ([]Message, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("chat: nil store")
	}
	if limit <= 0 {
		limit = 50
	}
	var out []Message
	err := s.client.DB().Order("id desc").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, "load chat history")
	}
	return out, nil
}
