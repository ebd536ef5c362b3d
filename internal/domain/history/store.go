// Package history is the version store: an append-only arena of image
// artifacts linked by explicit parent indices.
package history

import (
	"errors"
	"fmt"

	"retouch/internal/domain/raster"
)

var (
	// ErrUndoUnderflow is returned when a revert has no earlier content to
	// restore.
	ErrUndoUnderflow = errors.New("undo underflow")
	// ErrNotHead is returned when appending to an artifact that is not the
	// current head.
	ErrNotHead = errors.New("parent is not the current head")
	// ErrNoRoot is returned by operations that need a root artifact.
	ErrNoRoot = errors.New("version store has no root artifact")
	// ErrRootExists is returned by a second CreateRoot.
	ErrRootExists = errors.New("version store already has a root artifact")
)

// NoParent marks the root artifact and non-revert artifacts.
const NoParent = -1

// Operation records what produced an artifact.
type Operation struct {
	Name      string
	Arguments map[string]any
	Reason    string
}

// Artifact is one immutable snapshot. Image is the working raster (a preview
// when a full-resolution twin is kept in Full).
type Artifact struct {
	Index     int
	Parent    int
	RevertOf  int
	Operation Operation
	Image     *raster.Image
	Full      *raster.Image

	// predecessor is the artifact whose content preceded this one in the
	// logical edit sequence; for a revert it is the restored artifact's own
	// predecessor.
	predecessor int
}

// IsRoot reports whether a is the first artifact.
func (a *Artifact) IsRoot() bool {
	return a.Parent == NoParent
}

// IsRevert reports whether a restores an earlier artifact's content.
func (a *Artifact) IsRevert() bool {
	return a.RevertOf != NoParent
}

// FullImage returns the full-resolution twin, or the working raster when no
// twin is kept.
func (a *Artifact) FullImage() *raster.Image {
	if a.Full != nil {
		return a.Full
	}
	return a.Image
}

// Store is a linear, append-only chain. It is owned by one session and is not
// safe for concurrent mutation.
type Store struct {
	artifacts []*Artifact
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// CreateRoot stores the source raster as artifact 0. full may be nil.
func (s *Store) CreateRoot(img, full *raster.Image) (*Artifact, error) {
	if len(s.artifacts) > 0 {
		return nil, ErrRootExists
	}
	if img == nil {
		return nil, errors.New("root raster is nil")
	}
	root := &Artifact{
		Index:       0,
		Parent:      NoParent,
		RevertOf:    NoParent,
		Operation:   Operation{Name: "load"},
		Image:       img,
		Full:        full,
		predecessor: NoParent,
	}
	s.artifacts = append(s.artifacts, root)
	return root, nil
}

// Append derives a new artifact from parent, which must be the head.
func (s *Store) Append(parent *Artifact, op Operation, img, full *raster.Image) (*Artifact, error) {
	artifact, err := s.PrepareAppend(parent, op, img, full)
	if err != nil {
		return nil, err
	}
	return artifact, s.Push(artifact)
}

// PrepareAppend builds the artifact Append would store without storing it.
func (s *Store) PrepareAppend(parent *Artifact, op Operation, img, full *raster.Image) (*Artifact, error) {
	head := s.Head()
	if head == nil {
		return nil, ErrNoRoot
	}
	if parent == nil || parent.Index != head.Index {
		return nil, ErrNotHead
	}
	if img == nil {
		return nil, fmt.Errorf("append %s: raster is nil", op.Name)
	}
	return s.next(op, img, full, NoParent, head.Index), nil
}

// Revert appends a copy of target's content. The log of artifacts keeps
// every intermediate entry; nothing is rewound.
func (s *Store) Revert(target *Artifact, op Operation) (*Artifact, error) {
	artifact, err := s.PrepareRevert(target, op)
	if err != nil {
		return nil, err
	}
	return artifact, s.Push(artifact)
}

// PrepareRevert builds the artifact Revert would store without storing it.
func (s *Store) PrepareRevert(target *Artifact, op Operation) (*Artifact, error) {
	if len(s.artifacts) < 2 {
		return nil, ErrUndoUnderflow
	}
	if target == nil || target.Index < 0 || target.Index >= len(s.artifacts)-1 || s.artifacts[target.Index] != target {
		return nil, fmt.Errorf("%w: revert target is not an ancestor of the head", ErrUndoUnderflow)
	}
	var full *raster.Image
	if target.Full != nil {
		full = target.Full.Clone()
	}
	return s.next(op, target.Image.Clone(), full, target.Index, target.predecessor), nil
}

// UndoTarget returns the artifact an undo of the head restores.
func (s *Store) UndoTarget() (*Artifact, error) {
	if len(s.artifacts) < 2 {
		return nil, ErrUndoUnderflow
	}
	pred := s.Head().predecessor
	if pred == NoParent {
		return nil, ErrUndoUnderflow
	}
	return s.artifacts[pred], nil
}

// Undo reverts the head to its logical predecessor.
func (s *Store) Undo(op Operation) (*Artifact, error) {
	artifact, err := s.PrepareUndo(op)
	if err != nil {
		return nil, err
	}
	return artifact, s.Push(artifact)
}

// PrepareUndo builds the artifact Undo would store without storing it.
func (s *Store) PrepareUndo(op Operation) (*Artifact, error) {
	target, err := s.UndoTarget()
	if err != nil {
		return nil, err
	}
	return s.PrepareRevert(target, op)
}

// Push stores a prepared artifact. It fails when anything was stored since
// the artifact was prepared.
func (s *Store) Push(artifact *Artifact) error {
	if artifact == nil || artifact.Index != len(s.artifacts) {
		return ErrNotHead
	}
	s.artifacts = append(s.artifacts, artifact)
	return nil
}

func (s *Store) next(op Operation, img, full *raster.Image, revertOf, predecessor int) *Artifact {
	return &Artifact{
		Index:       len(s.artifacts),
		Parent:      s.Head().Index,
		RevertOf:    revertOf,
		Operation:   op,
		Image:       img,
		Full:        full,
		predecessor: predecessor,
	}
}

// Head returns the latest artifact, or nil before CreateRoot.
func (s *Store) Head() *Artifact {
	if len(s.artifacts) == 0 {
		return nil
	}
	return s.artifacts[len(s.artifacts)-1]
}

// Root returns artifact 0, or nil before CreateRoot.
func (s *Store) Root() *Artifact {
	if len(s.artifacts) == 0 {
		return nil
	}
	return s.artifacts[0]
}

// NthFromEnd returns the k-th artifact counting back from the head (k = 0 is
// the head).
func (s *Store) NthFromEnd(k int) (*Artifact, error) {
	if k < 0 || k >= len(s.artifacts) {
		return nil, fmt.Errorf("artifact %d from end out of range (have %d)", k, len(s.artifacts))
	}
	return s.artifacts[len(s.artifacts)-1-k], nil
}

// Get returns the artifact at index.
func (s *Store) Get(index int) (*Artifact, bool) {
	if index < 0 || index >= len(s.artifacts) {
		return nil, false
	}
	return s.artifacts[index], true
}

// Len returns the number of artifacts.
func (s *Store) Len() int {
	return len(s.artifacts)
}

// Chain returns the artifacts from root to head.
func (s *Store) Chain() []*Artifact {
	out := make([]*Artifact, len(s.artifacts))
	copy(out, s.artifacts)
	return out
}
