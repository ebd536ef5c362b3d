package automation

import (
	"context"
	"sync"
	"time"
)

// Driver performs pointer input. Implementations must honour ctx.
type Driver interface {
	Move(ctx context.Context, p Point) error
	Click(ctx context.Context, p Point) error
}

// EventKind names a recorded pointer action.
type EventKind string

const (
	EventMove  EventKind = "move"
	EventClick EventKind = "click"
)

// Event is one recorded pointer action.
type Event struct {
	Kind  EventKind
	Point Point
	At    time.Time
}

// RecordingDriver records events instead of moving a real pointer. It backs
// dry runs and tests.
type RecordingDriver struct {
	mu     sync.Mutex
	events []Event
	now    func() time.Time
}

var _ Driver = (*RecordingDriver)(nil)

func NewRecordingDriver() *RecordingDriver {
	return &RecordingDriver{now: time.Now}
}

func (d *RecordingDriver) Move(ctx context.Context, p Point) error {
	return d.record(ctx, EventMove, p)
}

func (d *RecordingDriver) Click(ctx context.Context, p Point) error {
	return d.record(ctx, EventClick, p)
}

func (d *RecordingDriver) record(ctx context.Context, kind EventKind, p Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, Event{Kind: kind, Point: p, At: d.now()})
	return nil
}

// Events returns a copy of everything recorded.
func (d *RecordingDriver) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Event(nil), d.events...)
}
