// Package retouch binds the control loop to real rasters and output sinks: one
// Run per source image, Batch for a directory and Apply for a single offline
// operation.
package retouch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"retouch/internal/app/toolregistry"
	"retouch/internal/domain/agent/loop"
	"retouch/internal/domain/agent/ports"
	"retouch/internal/domain/raster"
	"retouch/internal/domain/session"
	"retouch/internal/infra/codec"
	"retouch/internal/infra/output"
	"retouch/internal/shared/logging"
	"retouch/internal/shared/utils/id"
)

// DecisionMakerFunc returns the client one session talks to.
type DecisionMakerFunc func() (ports.LLMClient, error)

// Dependencies are the collaborators shared by every session.
type Dependencies struct {
	Registry      *toolregistry.Registry
	Dispatcher    *toolregistry.Dispatcher
	Renderer      ports.Renderer
	DecisionMaker DecisionMakerFunc
	Metrics       loop.Recorder
	Logger        logging.Logger
	Clock         func() time.Time
}

// Settings are the session knobs taken from configuration.
type Settings struct {
	OutputDir        string
	RetryCeiling     int
	StepTimeout      time.Duration
	HistoryLimit     int
	PreviewShortEdge int
	GlobalStyle      string
	Concurrency      int
	Temperature      float64
	MaxTokens        int
}

// Service runs retouching sessions.
type Service struct {
	deps     Dependencies
	settings Settings
	logger   logging.Logger
	clock    func() time.Time
}

// NewService checks the wiring.
func NewService(deps Dependencies, settings Settings) (*Service, error) {
	if deps.Registry == nil || deps.Dispatcher == nil {
		return nil, errors.New("retouch service: registry and dispatcher are required")
	}
	if strings.TrimSpace(settings.OutputDir) == "" {
		return nil, errors.New("retouch service: output directory is required")
	}
	if settings.Concurrency < 1 {
		settings.Concurrency = 1
	}
	logger := deps.Logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("retouch")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{deps: deps, settings: settings, logger: logger, clock: clock}, nil
}

// RunRequest names the source image of one session.
type RunRequest struct {
	ImagePath string
	// GlobalStyle overrides the configured style hint when set.
	GlobalStyle string
}

// Report describes a finished session.
type Report struct {
	SessionID string
	Image     string
	Dir       string
	Outcome   loop.Outcome
	Attempts  int
	Artifacts int
	FinalPath string
	Verdict   string
	Err       error
}

// Run retouches one image. The returned report is non-nil once the session
// directory exists, even when the session aborted.
func (s *Service) Run(ctx context.Context, req RunRequest) (*Report, error) {
	if s.deps.DecisionMaker == nil {
		return nil, errors.New("retouch run: no decision-maker configured")
	}
	full, err := codec.Load(req.ImagePath)
	if err != nil {
		return nil, err
	}
	working, twin := s.workingRasters(full)

	imageName := filepath.Base(req.ImagePath)
	sessionID := id.NewSessionID()
	dir := filepath.Join(s.settings.OutputDir, sessionDirName(imageName, sessionID))

	journal, err := output.NewJournal(dir, imageName, output.WithClock(s.clock))
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := journal.Close(); cerr != nil {
			s.logger.Warn("session %s: close journal: %v", sessionID, cerr)
		}
	}()

	started := s.clock()
	report := &Report{SessionID: sessionID, Image: imageName, Dir: dir, Outcome: loop.OutcomeAborted}

	state, err := session.New(ctx, sessionID, imageName, working, twin,
		session.WithJournal(journal), session.WithClock(s.clock))
	if err != nil {
		report.Err = err
		return report, err
	}

	engine, err := s.engine(req, sessionID)
	if err != nil {
		report.Err = err
		return report, err
	}
	s.logger.Info("session %s: %s (%dx%d, working %dx%d) -> %s",
		sessionID, imageName, full.Width, full.Height, working.Width, working.Height, dir)

	result, runErr := engine.Run(ctx, state)
	report.Outcome = result.Outcome
	report.Attempts = result.Attempts
	report.Verdict = result.Verdict
	report.Artifacts = state.ArtifactCount()
	report.Err = runErr
	if result.Final != nil {
		report.FinalPath, _ = journal.ArtifactPath(result.Final.Index)
	}

	summary := output.Summary{
		SessionID:     sessionID,
		Image:         imageName,
		Outcome:       string(result.Outcome),
		Attempts:      result.Attempts,
		RetryCeiling:  engine.RetryCeiling(),
		Artifacts:     report.Artifacts,
		FinalArtifact: report.FinalPath,
		Verdict:       result.Verdict,
		StartedAt:     started,
		FinishedAt:    s.clock(),
		Calls:         state.Calls(),
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}
	if err := journal.WriteSummary(summary); err != nil {
		s.logger.Warn("session %s: write summary: %v", sessionID, err)
	}

	if runErr != nil {
		return report, fmt.Errorf("session %s: %w", sessionID, runErr)
	}
	return report, nil
}

func (s *Service) engine(req RunRequest, sessionID string) (*loop.Engine, error) {
	client, err := s.deps.DecisionMaker()
	if err != nil {
		return nil, fmt.Errorf("decision-maker: %w", err)
	}
	style := s.settings.GlobalStyle
	if strings.TrimSpace(req.GlobalStyle) != "" {
		style = req.GlobalStyle
	}
	return loop.NewEngine(loop.Config{
		LLM:          client,
		Dispatcher:   s.deps.Dispatcher,
		Catalogue:    s.deps.Registry,
		Renderer:     s.deps.Renderer,
		Metrics:      s.deps.Metrics,
		Logger:       logging.ForSession(s.logger, sessionID),
		Clock:        s.clock,
		RetryCeiling: s.settings.RetryCeiling,
		StepTimeout:  s.settings.StepTimeout,
		HistoryLimit: s.settings.HistoryLimit,
		GlobalStyle:  style,
		Temperature:  s.settings.Temperature,
		MaxTokens:    s.settings.MaxTokens,
	})
}

// workingRasters returns the raster the decision-maker sees and, when it is
// a reduced preview, the full-resolution twin.
func (s *Service) workingRasters(full *raster.Image) (working, twin *raster.Image) {
	if s.settings.PreviewShortEdge <= 0 {
		return full, nil
	}
	preview := codec.Preview(full, s.settings.PreviewShortEdge)
	if preview == full {
		return full, nil
	}
	return preview, full
}

func sessionDirName(imageName, sessionID string) string {
	stem := strings.TrimSuffix(imageName, filepath.Ext(imageName))
	if stem == "" {
		stem = "image"
	}
	return stem + "_" + id.ShortSessionID(sessionID)
}
