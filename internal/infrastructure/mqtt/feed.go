package mqtt

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Publisher sends one MQTT message. *Client implements it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// ChangeEvent is the payload published after a committed write.
type ChangeEvent struct {
	ID        string    `json:"id"`
	Database  string    `json:"database"`
	Table     string    `json:"table"`
	Op        string    `json:"op"`
	Rows      int64     `json:"rows"`
	Timestamp time.Time `json:"timestamp"`
}

// ChangeFeed publishes change events. It satisfies orm.Notifier.
type ChangeFeed struct {
	pub    Publisher
	topics Topics
	qos    byte
	now    func() time.Time
}

// NewChangeFeed creates a feed publishing through pub.
func NewChangeFeed(pub Publisher, topics Topics, qos byte) *ChangeFeed {
	return &ChangeFeed{pub: pub, topics: topics, qos: qos, now: time.Now}
}

// PublishChange publishes one change event on the table's change topic.
func (f *ChangeFeed) PublishChange(database, table, op string, rows int64) error {
	ev := ChangeEvent{
		ID:        uuid.NewString(),
		Database:  database,
		Table:     table,
		Op:        op,
		Rows:      rows,
		Timestamp: f.now().UTC(),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding change event: %w", err)
	}
	return f.pub.Publish(f.topics.Change(database, table), payload, f.qos, false)
}
