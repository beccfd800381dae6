package application

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	insights "greengauge/internal/insights/domain"
	"greengauge/internal/observability/metrics"
)

const (
	kindInsights = "insights"
	kindQuestion = "question"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Result is the conversation after a request.
type Result struct {
	Messages []insights.Message `json:"messages"`
	Reply    *insights.Message  `json:"reply,omitempty"`
	// Failed is set when the snapshot or the model could not be used.
	Failed bool `json:"failed"`
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	HistoryLimit int
	Prompts      *Prompts
	Clock        Clock
	Logger       *log.Logger
}

// Service runs insight requests and keeps per viewer conversations.
type Service struct {
	snapshots insights.SnapshotLoader
	model     insights.Generator
	prompts   *Prompts
	limit     int
	clock     Clock
	logger    *log.Logger

	mu            sync.Mutex
	conversations map[conversationKey]*insights.Conversation
}

type conversationKey struct {
	viewer string
	device string
}

// NewService constructs a Service.
func NewService(snapshots insights.SnapshotLoader, model insights.Generator, cfg ServiceConfig) (*Service, error) {
	if snapshots == nil {
		return nil, errors.New("insights: nil snapshot loader")
	}
	if model == nil {
		return nil, errors.New("insights: nil generator")
	}
	if cfg.Prompts == nil {
		prompts, err := NewPrompts("", "")
		if err != nil {
			return nil, err
		}
		cfg.Prompts = prompts
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = insights.DefaultHistoryLimit
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	return &Service{
		snapshots:     snapshots,
		model:         model,
		prompts:       cfg.Prompts,
		limit:         cfg.HistoryLimit,
		clock:         cfg.Clock,
		logger:        cfg.Logger,
		conversations: make(map[conversationKey]*insights.Conversation),
	}, nil
}

// History returns the conversation of viewer on device.
func (s *Service) History(viewer, device string) []insights.Message {
	return s.conversation(viewer, device).Messages()
}

// GenerateInsights asks for an analysis of the device snapshot. An empty
// snapshot makes it a no-op.
func (s *Service) GenerateInsights(ctx context.Context, viewer, device string) (Result, error) {
	conversation := s.conversation(viewer, device)
	rows, ok := s.loadRows(ctx, device)
	if !ok {
		return Result{Messages: conversation.Messages(), Failed: true}, nil
	}
	if len(rows) == 0 {
		return Result{Messages: conversation.Messages()}, nil
	}
	prompt, err := s.prompts.Insights(device, rows)
	if err != nil {
		return Result{}, err
	}
	reply := s.complete(ctx, kindInsights, device, prompt)
	conversation.Append(reply)
	return Result{Messages: conversation.Messages(), Reply: &reply, Failed: reply.Failed}, nil
}

// Ask records the question and answers it from the device snapshot. The
// question stays in the history even when no answer can be produced.
func (s *Service) Ask(ctx context.Context, viewer, device, question string) (Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Result{}, insights.ErrEmptyQuestion
	}
	conversation := s.conversation(viewer, device)
	conversation.Append(insights.NewMessage(insights.SenderUser, question, s.clock.Now()))

	rows, ok := s.loadRows(ctx, device)
	if !ok {
		return Result{Messages: conversation.Messages(), Failed: true}, nil
	}
	if len(rows) == 0 {
		return Result{Messages: conversation.Messages()}, nil
	}
	prompt, err := s.prompts.Question(device, question, rows)
	if err != nil {
		return Result{}, err
	}
	reply := s.complete(ctx, kindQuestion, device, prompt)
	conversation.Append(reply)
	return Result{Messages: conversation.Messages(), Reply: &reply, Failed: reply.Failed}, nil
}

func (s *Service) loadRows(ctx context.Context, device string) ([]insights.Row, bool) {
	rows, err := s.snapshots.Load(ctx, device)
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("insights: load snapshot device=%s err=%v", device, err)
		}
		return nil, false
	}
	return rows, true
}

// complete never fails: a model error becomes the synthetic failure reply.
func (s *Service) complete(ctx context.Context, kind, device, prompt string) insights.Message {
	started := time.Now()
	text, err := s.model.Complete(ctx, prompt)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty completion")
	}
	if err != nil {
		metrics.ObserveInsight(kind, metrics.ResultError, time.Since(started))
		if s.logger != nil {
			s.logger.Printf("insights: %s failed device=%s err=%v", kind, device, err)
		}
		reply := insights.NewMessage(insights.SenderAI, insights.FailureText, s.clock.Now())
		reply.Failed = true
		return reply
	}
	metrics.ObserveInsight(kind, metrics.ResultSuccess, time.Since(started))
	return insights.NewMessage(insights.SenderAI, text, s.clock.Now())
}

func (s *Service) conversation(viewer, device string) *insights.Conversation {
	key := conversationKey{viewer: viewer, device: device}
	s.mu.Lock()
	defer s.mu.Unlock()
	conversation, ok := s.conversations[key]
	if !ok {
		conversation = insights.NewConversation(s.limit)
		s.conversations[key] = conversation
	}
	return conversation
}
