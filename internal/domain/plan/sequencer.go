package plan

import (
	"errors"
	"fmt"

	"retouch/internal/shared/logging"
)

// Substitution records one repaired token.
type Substitution struct {
	Token      string
	Name       string
	Similarity float64
}

// Repair describes how raw plan text became a valid plan.
type Repair struct {
	Plan          []string
	UsedFallback  bool
	Substitutions []Substitution
}

// Sequencer holds the pending plan. Every name it stores is a catalogue name.
type Sequencer struct {
	catalogue []string
	known     map[string]struct{}
	pending   []string
	logger    logging.Logger
}

// NewSequencer builds a sequencer over the plannable catalogue names.
func NewSequencer(catalogue []string, logger logging.Logger) (*Sequencer, error) {
	if len(catalogue) == 0 {
		return nil, errors.New("plan sequencer needs a non-empty catalogue")
	}
	known := make(map[string]struct{}, len(catalogue))
	for _, name := range catalogue {
		known[name] = struct{}{}
	}
	names := make([]string, len(catalogue))
	copy(names, catalogue)
	return &Sequencer{catalogue: names, known: known, logger: logging.OrNop(logger)}, nil
}

// Repair parses text and maps every token to a catalogue name. It never
// fails: unparsable text goes through Tokenize.
func (s *Sequencer) Repair(text string) Repair {
	tokens, err := ParseList(text)
	usedFallback := false
	if err != nil {
		s.logger.Debug("plan text is not a literal list, using tokenizer: %v", err)
		tokens = Tokenize(text)
		usedFallback = true
	}
	result := s.RepairTokens(tokens)
	result.UsedFallback = usedFallback
	return result
}

// RepairTokens maps already-split tokens to catalogue names.
func (s *Sequencer) RepairTokens(tokens []string) Repair {
	result := Repair{Plan: make([]string, 0, len(tokens))}
	for _, token := range tokens {
		if _, ok := s.known[token]; ok {
			result.Plan = append(result.Plan, token)
			continue
		}
		name, score, _ := Nearest(token, s.catalogue)
		result.Plan = append(result.Plan, name)
		result.Substitutions = append(result.Substitutions, Substitution{Token: token, Name: name, Similarity: score})
		s.logger.Info("plan token %q repaired to %q (similarity %.2f)", token, name, score)
	}
	return result
}

// Submit repairs text and replaces the pending plan with the result.
func (s *Sequencer) Submit(text string) Repair {
	result := s.Repair(text)
	s.pending = append([]string(nil), result.Plan...)
	return result
}

// SubmitTokens repairs tokens and replaces the pending plan.
func (s *Sequencer) SubmitTokens(tokens []string) Repair {
	result := s.RepairTokens(tokens)
	s.pending = append([]string(nil), result.Plan...)
	return result
}

// Current returns the plan head.
func (s *Sequencer) Current() (string, bool) {
	if len(s.pending) == 0 {
		return "", false
	}
	return s.pending[0], true
}

// FinishCurrentPlan removes the head once its step is resolved.
func (s *Sequencer) FinishCurrentPlan() error {
	if len(s.pending) == 0 {
		return fmt.Errorf("finish current plan: plan is empty")
	}
	s.pending = s.pending[1:]
	return nil
}

// Pending returns a copy of the remaining plan.
func (s *Sequencer) Pending() []string {
	return append([]string(nil), s.pending...)
}

// Empty reports whether nothing is left to execute.
func (s *Sequencer) Empty() bool {
	return len(s.pending) == 0
}
