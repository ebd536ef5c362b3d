// Package output persists a session: one raster file per artifact, the
// processing log, the decision transcript and a closing summary.
package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"retouch/internal/domain/agent/ports"
	"retouch/internal/domain/history"
	"retouch/internal/infra/codec"
	jsonx "retouch/internal/shared/json"
	"retouch/internal/shared/logging"
)

const (
	ProcessingLogFile = "processing_log.txt"
	TranscriptFile    = "transcript.jsonl"
	SummaryFile       = "summary.json"
	attachmentsDir    = "attachments"
)

// Journal writes one session's persisted layout under Dir. It implements
// ports.Journal and is safe for concurrent use.
type Journal struct {
	dir       string
	imageName string
	now       func() time.Time
	logger    logging.Logger

	mu         sync.Mutex
	log        *os.File
	transcript *os.File
	encoder    interface{ Encode(v any) error }
	artifacts  map[int]string
	closed     bool
}

var _ ports.Journal = (*Journal)(nil)

// Option customises a Journal.
type Option func(*Journal)

// WithLogger sets the diagnostic logger.
func WithLogger(logger logging.Logger) Option {
	return func(j *Journal) { j.logger = logging.OrNop(logger) }
}

// WithClock overrides transcript timestamps.
func WithClock(now func() time.Time) Option {
	return func(j *Journal) { j.now = now }
}

// NewJournal creates dir and truncates any previous log and transcript in it.
func NewJournal(dir, imageName string, opts ...Option) (*Journal, error) {
	j := &Journal{
		dir:       dir,
		imageName: sanitize(strings.TrimSuffix(imageName, filepath.Ext(imageName))),
		now:       time.Now,
		logger:    logging.NewComponentLogger("output"),
		artifacts: map[int]string{},
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.imageName == "" {
		j.imageName = "image"
	}
	if err := os.MkdirAll(filepath.Join(dir, attachmentsDir), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	log, err := os.Create(filepath.Join(dir, ProcessingLogFile))
	if err != nil {
		return nil, fmt.Errorf("open processing log: %w", err)
	}
	transcript, err := os.Create(filepath.Join(dir, TranscriptFile))
	if err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	j.log = log
	j.transcript = transcript
	j.encoder = jsonx.NewEncoder(transcript)
	return j, nil
}

// Dir returns the session output directory.
func (j *Journal) Dir() string { return j.dir }

// ArtifactCommitted writes the artifact's full-resolution raster.
func (j *Journal) ArtifactCommitted(ctx context.Context, step int, artifact *history.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := ArtifactFileName(step, j.imageName, artifact.Operation)
	path := filepath.Join(j.dir, name)
	if err := codec.Save(path, artifact.FullImage()); err != nil {
		return err
	}
	j.mu.Lock()
	j.artifacts[artifact.Index] = path
	j.mu.Unlock()
	j.logger.Debug("artifact %d written to %s", artifact.Index, path)
	return nil
}

// LogLine appends one processing-log line.
func (j *Journal) LogLine(line string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return fmt.Errorf("journal closed")
	}
	if _, err := j.log.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("write processing log: %w", err)
	}
	return nil
}

type transcriptEntry struct {
	At          time.Time          `json:"at"`
	Role        string             `json:"role"`
	Source      string             `json:"source,omitempty"`
	Content     string             `json:"content,omitempty"`
	ToolCalls   []ports.ToolCall   `json:"tool_calls,omitempty"`
	ToolCallID  string             `json:"tool_call_id,omitempty"`
	Attachments []ports.Attachment `json:"attachments,omitempty"`
}

// Message appends msg to the transcript. Attachment bytes are written to the
// attachments directory and replaced by their path.
func (j *Journal) Message(msg ports.Message) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return fmt.Errorf("journal closed")
	}

	entry := transcriptEntry{
		At:         j.now(),
		Role:       msg.Role,
		Source:     string(msg.Source),
		Content:    msg.Content,
		ToolCalls:  msg.ToolCalls,
		ToolCallID: msg.ToolCallID,
	}
	for _, att := range msg.Attachments {
		ref := ports.Attachment{Name: att.Name, MediaType: att.MediaType, Path: att.Path}
		if len(att.Data) > 0 {
			rel := filepath.Join(attachmentsDir, sanitize(att.Name))
			if err := os.WriteFile(filepath.Join(j.dir, rel), att.Data, 0o644); err != nil {
				return fmt.Errorf("write attachment %s: %w", att.Name, err)
			}
			ref.Path = rel
		}
		entry.Attachments = append(entry.Attachments, ref)
	}
	if err := j.encoder.Encode(entry); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}

// ArtifactPath returns the file written for an artifact index.
func (j *Journal) ArtifactPath(index int) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	path, ok := j.artifacts[index]
	return path, ok
}

// Close flushes and closes the log and transcript files.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	logErr := j.log.Close()
	transcriptErr := j.transcript.Close()
	if logErr != nil {
		return logErr
	}
	return transcriptErr
}

// ArtifactFileName builds `{step:03d}_{image}_{operation}[_{value}].png`.
func ArtifactFileName(step int, imageName string, op history.Operation) string {
	parts := []string{fmt.Sprintf("%03d", step), imageName, sanitize(op.Name)}
	if value := operationValue(op.Arguments); value != "" {
		parts = append(parts, value)
	}
	return strings.Join(parts, "_") + ".png"
}

// operationValue renders the numeric arguments of an operation, in key order,
// for use in a file name. Text arguments such as the reason are skipped.
func operationValue(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := args[k].(type) {
		case float64:
			values = append(values, strconv.FormatFloat(v, 'f', -1, 64))
		case int:
			values = append(values, strconv.Itoa(v))
		case []any, [3]float64, []float64:
			values = append(values, k)
		}
	}
	return sanitize(strings.Join(values, "_"))
}
