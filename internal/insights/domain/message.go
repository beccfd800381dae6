package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// FailureText replaces a reply the language model could not produce.
const FailureText = "There was an error retrieving insights. Please try again."

var (
	// ErrEmptyQuestion is returned for a blank question.
	ErrEmptyQuestion = errors.New("insights: empty question")
	// ErrSnapshotNotFound is returned when a device has no CSV snapshot.
	ErrSnapshotNotFound = errors.New("insights: snapshot not found")
)

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// Message is one entry of a conversation.
type Message struct {
	ID     string    `json:"id"`
	Sender Sender    `json:"sender"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
	// Failed marks the synthetic reply that stands in for a model error.
	Failed bool `json:"failed,omitempty"`
}

// NewMessage stamps a message with a fresh id.
func NewMessage(sender Sender, text string, at time.Time) Message {
	return Message{ID: uuid.NewString(), Sender: sender, Text: text, At: at}
}

// Cell is one named value of a snapshot row.
type Cell struct {
	Name  string
	Value string
}

// Row is one CSV snapshot line, its cells in header order.
type Row []Cell

// Get returns the value of the named column.
func (r Row) Get(name string) (string, bool) {
	for _, cell := range r {
		if cell.Name == name {
			return cell.Value, true
		}
	}
	return "", false
}

// MarshalJSON encodes the row as an object whose keys follow header order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, cell := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(cell.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(cell.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// SnapshotLoader reads the historical CSV snapshot of a device.
type SnapshotLoader interface {
	Load(ctx context.Context, deviceKey string) ([]Row, error)
}

// Generator produces free text for a prompt.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
