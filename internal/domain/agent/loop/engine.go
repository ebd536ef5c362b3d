// Package loop drives one retouching session through analysis, planning and
// the execute/reflect/undo cycle.
package loop

import (
	"context"
	"errors"
	"time"

	"retouch/internal/domain/agent/ports"
	"retouch/internal/domain/session"
	"retouch/internal/shared/logging"
)

const (
	// DefaultRetryCeiling bounds the execute-step attempts of one session.
	DefaultRetryCeiling = 5
	// DefaultStepTimeout bounds each blocking external call.
	DefaultStepTimeout = 2 * time.Minute
	// DefaultHistoryLimit caps the remembered step summaries replayed to the
	// decision-maker. Analysis summaries are always kept.
	DefaultHistoryLimit = 16
)

// Dispatcher executes one catalogue call against the session.
type Dispatcher interface {
	DispatchStep(ctx context.Context, s *session.State, call ports.ToolCall) (*ports.ToolResult, error)
}

// Catalogue exposes the tool definitions the loop offers.
type Catalogue interface {
	Names(category string) []string
	Definitions(names ...string) []ports.ToolDefinition
}

// Recorder receives step and session observations.
type Recorder interface {
	RecordStep(ctx context.Context, outcome string, duration time.Duration)
	RecordSession(ctx context.Context, outcome string, steps int)
}

// Config wires an Engine.
type Config struct {
	LLM        ports.LLMClient
	Dispatcher Dispatcher
	Catalogue  Catalogue
	// Renderer produces image attachments. Without one the decision-maker
	// only receives text.
	Renderer ports.Renderer
	Metrics  Recorder
	Logger   logging.Logger
	Clock    func() time.Time

	RetryCeiling int
	StepTimeout  time.Duration
	HistoryLimit int
	// GlobalStyle is the user's style hint for the retouching concept.
	GlobalStyle string
	Temperature float64
	MaxTokens   int
}

// Engine runs sessions. It holds no per-session state and may run several
// sessions concurrently, each on its own goroutine.
type Engine struct {
	llm          ports.LLMClient
	dispatcher   Dispatcher
	catalogue    Catalogue
	renderer     ports.Renderer
	metrics      Recorder
	logger       logging.Logger
	clock        func() time.Time
	retryCeiling int
	stepTimeout  time.Duration
	historyLimit int
	globalStyle  string
	temperature  float64
	maxTokens    int
}

// NewEngine validates cfg and fills defaults.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.LLM == nil {
		return nil, errors.New("loop: decision-maker is required")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("loop: dispatcher is required")
	}
	if cfg.Catalogue == nil {
		return nil, errors.New("loop: catalogue is required")
	}
	if len(cfg.Catalogue.Names(ports.CategoryAdjustment)) == 0 {
		return nil, errors.New("loop: catalogue has no adjustments")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	retryCeiling := cfg.RetryCeiling
	if retryCeiling <= 0 {
		retryCeiling = DefaultRetryCeiling
	}
	stepTimeout := cfg.StepTimeout
	if stepTimeout == 0 {
		stepTimeout = DefaultStepTimeout
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	logger := cfg.Logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("loop")
	}

	return &Engine{
		llm:          cfg.LLM,
		dispatcher:   cfg.Dispatcher,
		catalogue:    cfg.Catalogue,
		renderer:     cfg.Renderer,
		metrics:      cfg.Metrics,
		logger:       logger,
		clock:        clock,
		retryCeiling: retryCeiling,
		stepTimeout:  stepTimeout,
		historyLimit: historyLimit,
		globalStyle:  cfg.GlobalStyle,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
	}, nil
}

// RetryCeiling returns the configured attempt bound.
func (e *Engine) RetryCeiling() int { return e.retryCeiling }
