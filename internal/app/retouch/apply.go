package retouch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"retouch/internal/domain/agent/ports"
	"retouch/internal/domain/session"
	"retouch/internal/infra/codec"
	"retouch/internal/shared/utils/id"
)

// ApplyRequest is one offline catalogue call on a file.
type ApplyRequest struct {
	Input     string
	Output    string
	Operation string
	Arguments map[string]any
}

// ApplyReport describes a written offline result.
type ApplyReport struct {
	Operation string
	Arguments map[string]any
	Output    string
	Warnings  []error
}

// Apply runs a single dispatch at full resolution without a decision-maker
// and writes the result to req.Output.
func (s *Service) Apply(ctx context.Context, req ApplyRequest) (*ApplyReport, error) {
	if strings.TrimSpace(req.Output) == "" {
		return nil, errors.New("apply: output path is required")
	}
	img, err := codec.Load(req.Input)
	if err != nil {
		return nil, err
	}
	state, err := session.New(ctx, id.NewSessionID(), filepath.Base(req.Input), img, nil, session.WithClock(s.clock))
	if err != nil {
		return nil, err
	}

	args := make(map[string]any, len(req.Arguments)+1)
	for k, v := range req.Arguments {
		args[k] = v
	}
	if _, ok := args["reason"]; !ok {
		args["reason"] = "offline apply"
	}

	outcome, err := s.deps.Dispatcher.Dispatch(ctx, state, ports.ToolCall{
		ID:        id.NewCallID(),
		Name:      req.Operation,
		Arguments: args,
	})
	if err != nil {
		return nil, err
	}
	if err := codec.Save(req.Output, outcome.Artifact.FullImage()); err != nil {
		return nil, err
	}
	s.logger.Info("apply %s to %s -> %s", req.Operation, req.Input, req.Output)
	return &ApplyReport{
		Operation: req.Operation,
		Arguments: outcome.Record.Arguments,
		Output:    req.Output,
		Warnings:  outcome.Warnings,
	}, nil
}

// ParseArguments turns key=value pairs into call arguments. Values that
// parse as numbers become float64; anything else stays a string, so band
// triples pass as "[h, s, l]".
func ParseArguments(pairs []string) (map[string]any, error) {
	args := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q is not key=value", pair)
		}
		value = strings.TrimSpace(value)
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			args[key] = f
			continue
		}
		args[key] = value
	}
	return args, nil
}
