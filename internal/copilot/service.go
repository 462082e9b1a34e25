package copilot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// ErrNoContext is returned while no task context has ever been set;
// the service never calls the model without grounding data.
var ErrNoContext = errors.New("no task context available")

const (
	fallbackConfidence = 0.3
	defaultConfidence  = 0.5

	historyWindow = 6  // messages sent with each prompt
	historyMax    = 12 // hard cap before truncation
	historyKeep   = 8  // entries kept after truncation
)

// Response is the structured answer surfaced to the UI. Slice fields
// are always non-nil.
type Response struct {
	ID               string   `json:"id"`
	Answer           string   `json:"answer"`
	Confidence       float64  `json:"confidence"`
	SuggestedActions []string `json:"suggestedActions"`
	RelatedTasks     []string `json:"relatedTasks"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CompletionRequest struct {
	System     string
	History    []Message
	User       string
	Structured bool
}

// Completer is the LLM collaborator. Content may be the structured
// JSON payload or plain text; the service sorts that out.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Service builds prompts from question + task snapshot + short
// conversation history and parses the structured answer.
type Service struct {
	llm Completer
	log *slog.Logger

	mu      sync.Mutex
	taskCtx *TaskContext
	history []Message
}

func NewService(llm Completer, log *slog.Logger) *Service {
	return &Service{llm: llm, log: log}
}

// UpdateTaskContext replaces the snapshot wholesale.
func (s *Service) UpdateTaskContext(ctx TaskContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.taskCtx = &ctx
	s.log.Info("task context updated",
		"active", len(ctx.ActiveTasks),
		"completed", len(ctx.CompletedTasks),
		"blockers", len(ctx.Blockers))
}

// Process answers a question against the current task snapshot.
func (s *Service) Process(ctx context.Context, question, meetingContext string) (*Response, error) {
	s.mu.Lock()
	if s.taskCtx == nil {
		s.mu.Unlock()
		return nil, ErrNoContext
	}

	req := CompletionRequest{
		System:     systemPrompt,
		History:    lastN(s.history, historyWindow),
		User:       s.buildUserPrompt(question, meetingContext),
		Structured: true,
	}
	s.mu.Unlock()

	content, err := s.llm.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}

	resp := parseResponse(content)
	resp.ID = uuid.NewString()

	s.mu.Lock()
	s.history = append(s.history,
		Message{Role: "user", Content: question},
		Message{Role: "assistant", Content: resp.Answer},
	)
	if len(s.history) > historyMax {
		s.history = append([]Message(nil), s.history[len(s.history)-historyKeep:]...)
	}
	s.mu.Unlock()

	return resp, nil
}

// Ask is the manual-question path (hotkey triggered).
func (s *Service) Ask(ctx context.Context, question string) (*Response, error) {
	return s.Process(ctx, question, "Manual question from user")
}

func (s *Service) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = nil
	s.log.Info("conversation history cleared")
}

func (s *Service) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Message(nil), s.history...)
}

const systemPrompt = `You are TaskMind Copilot, an intelligent meeting assistant that helps users answer questions about their work and tasks.

**Your Role:**
- Answer questions about tasks, progress, blockers, and team work
- Use the provided task board data to give accurate, specific answers
- Keep responses conversational but concise (1-2 sentences max)
- Only respond if you're confident the question is work-related

**Response Guidelines:**
- Be specific: "You completed the Slack integration and Zoom OAuth last sprint"
- Include numbers: "3 tasks in progress, 2 blockers identified"
- Mention relevant task titles or project names when helpful
- If unsure, acknowledge limitations: "I don't see specific details about that"

**Tone:** Professional but friendly, like a helpful colleague who knows your work well.`

func (s *Service) buildUserPrompt(question, meetingContext string) string {
	return fmt.Sprintf(`**Meeting Context:**
%s

**Question Asked:**
%q

**Current Task Board State:**
%s

Please provide a helpful response based on the available task data. If the question isn't work-related or you don't have enough context, indicate that politely.`,
		meetingContext, question, s.taskCtx.Summary())
}

// parseResponse extracts the structured payload; any shape trouble
// degrades to a raw-text answer at fixed low confidence rather than
// failing the call.
func parseResponse(content string) *Response {
	if !gjson.Valid(content) || !gjson.Get(content, "answer").Exists() {
		return &Response{
			Answer:           content,
			Confidence:       fallbackConfidence,
			SuggestedActions: []string{},
			RelatedTasks:     []string{},
		}
	}

	resp := &Response{
		Answer:           gjson.Get(content, "answer").String(),
		Confidence:       defaultConfidence,
		SuggestedActions: []string{},
		RelatedTasks:     []string{},
	}

	if c := gjson.Get(content, "confidence"); c.Exists() {
		// reported as-is, never clamped or recomputed locally
		resp.Confidence = c.Float()
	}
	for _, a := range gjson.Get(content, "suggestedActions").Array() {
		resp.SuggestedActions = append(resp.SuggestedActions, a.String())
	}
	for _, t := range gjson.Get(content, "relatedTasks").Array() {
		resp.RelatedTasks = append(resp.RelatedTasks, t.Raw)
	}

	return resp
}

func lastN(msgs []Message, n int) []Message {
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return append([]Message(nil), msgs...)
}
