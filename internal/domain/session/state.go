// Package session owns the mutable state of one retouching run. All writes go
// through named methods; the control loop is the only caller.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"retouch/internal/domain/agent/ports"
	"retouch/internal/domain/history"
	"retouch/internal/domain/raster"
)

// State is the SessionState: artifact chain, call log, processing log,
// satisfaction flag and attempt counter.
type State struct {
	id        string
	imageName string
	store     *history.Store
	journal   ports.Journal
	now       func() time.Time

	calls     []ports.CallRecord
	lines     []string
	satisfied bool
	attempts  int
	verdict   string
}

// Option customises a State.
type Option func(*State)

// WithJournal mirrors every append to a persistent journal.
func WithJournal(journal ports.Journal) Option {
	return func(s *State) {
		s.journal = journal
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *State) {
		s.now = now
	}
}

// New creates the session and stores the root artifact. full may be nil when
// no full-resolution twin is kept.
func New(ctx context.Context, id, imageName string, preview, full *raster.Image, opts ...Option) (*State, error) {
	s := &State{
		id:        id,
		imageName: imageName,
		store:     history.NewStore(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	root, err := s.store.CreateRoot(preview, full)
	if err != nil {
		return nil, fmt.Errorf("create root: %w", err)
	}
	if s.journal != nil {
		if err := s.journal.ArtifactCommitted(ctx, 0, root); err != nil {
			return nil, fmt.Errorf("journal root: %w", err)
		}
	}
	return s, nil
}

// ID returns the session id.
func (s *State) ID() string { return s.id }

// ImageName returns the source image's base name.
func (s *State) ImageName() string { return s.imageName }

// Store exposes the version store for read access.
func (s *State) Store() *history.Store { return s.store }

// Head returns the current artifact.
func (s *State) Head() *history.Artifact { return s.store.Head() }

// Root returns the source artifact.
func (s *State) Root() *history.Artifact { return s.store.Root() }

// ArtifactCount returns the number of artifacts.
func (s *State) ArtifactCount() int { return s.store.Len() }

// Commit appends an artifact derived from the head. The journal is written
// first; on a journal failure the store is left unchanged.
func (s *State) Commit(ctx context.Context, op history.Operation, preview, full *raster.Image) (*history.Artifact, error) {
	artifact, err := s.store.PrepareAppend(s.store.Head(), op, preview, full)
	if err != nil {
		return nil, err
	}
	return s.persist(ctx, artifact)
}

// Undo appends a copy of the head's logical predecessor, journalled first
// like Commit.
func (s *State) Undo(ctx context.Context, op history.Operation) (*history.Artifact, error) {
	artifact, err := s.store.PrepareUndo(op)
	if err != nil {
		return nil, err
	}
	return s.persist(ctx, artifact)
}

func (s *State) persist(ctx context.Context, artifact *history.Artifact) (*history.Artifact, error) {
	if s.journal != nil {
		if err := s.journal.ArtifactCommitted(ctx, artifact.Index, artifact); err != nil {
			return nil, fmt.Errorf("journal artifact %d: %w", artifact.Index, err)
		}
	}
	if err := s.store.Push(artifact); err != nil {
		return nil, err
	}
	return artifact, nil
}

// RecordCall appends to the function-call log and returns the stored record.
func (s *State) RecordCall(name string, args map[string]any, reason string, artifactIndex int) ports.CallRecord {
	record := ports.CallRecord{
		Step:          len(s.calls) + 1,
		Name:          name,
		Arguments:     cloneArgs(args),
		Reason:        reason,
		ArtifactIndex: artifactIndex,
		At:            s.now(),
	}
	s.calls = append(s.calls, record)
	return record
}

// AppendLog adds one processing-log line.
func (s *State) AppendLog(format string, args ...any) error {
	line := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	s.lines = append(s.lines, line)
	if s.journal != nil {
		return s.journal.LogLine(line)
	}
	return nil
}

// RecordMessage forwards a decision-maker-facing message to the transcript.
func (s *State) RecordMessage(msg ports.Message) error {
	if s.journal != nil {
		return s.journal.Message(msg)
	}
	return nil
}

// MarkSatisfied sets the satisfaction flag. It never resets.
func (s *State) MarkSatisfied(reason string) {
	s.satisfied = true
	s.verdict = reason
}

// BeginAttempt counts one execute-step attempt and returns the new total.
func (s *State) BeginAttempt() int {
	s.attempts++
	return s.attempts
}

// Attempts returns how many execute-step attempts were made.
func (s *State) Attempts() int { return s.attempts }

// Satisfied reports the satisfaction flag.
func (s *State) Satisfied() bool { return s.satisfied }

// Verdict returns the reason given when the session was marked satisfied.
func (s *State) Verdict() string { return s.verdict }

// Calls returns a copy of the function-call log.
func (s *State) Calls() []ports.CallRecord {
	out := make([]ports.CallRecord, len(s.calls))
	copy(out, s.calls)
	return out
}

// Log returns a copy of the processing log.
func (s *State) Log() []string {
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

func cloneArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}

var _ ports.Workspace = (*State)(nil)
