package insights

import (
	"sync"

	"github.com/gammazero/deque"
)

// DefaultHistoryLimit bounds a conversation when no limit is configured.
const DefaultHistoryLimit = 50

// Conversation is the bounded message history of one viewer on one device.
// The oldest messages are dropped first.
type Conversation struct {
	mu       sync.Mutex
	limit    int
	messages *deque.Deque[Message]
}

// NewConversation constructs an empty conversation.
func NewConversation(limit int) *Conversation {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Conversation{limit: limit, messages: deque.New[Message](0, 16)}
}

// Append adds a message, evicting the oldest ones past the limit.
func (c *Conversation) Append(messages ...Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, message := range messages {
		c.messages.PushBack(message)
	}
	for c.messages.Len() > c.limit {
		c.messages.PopFront()
	}
}

// Messages returns a copy of the history, oldest first.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, 0, c.messages.Len())
	for i := 0; i < c.messages.Len(); i++ {
		out = append(out, c.messages.At(i))
	}
	return out
}

// Len returns the number of retained messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages.Len()
}
