package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubscriberBuffer is the per-subscriber channel capacity used
// when a caller passes zero.
const DefaultSubscriberBuffer = 16

// defaultTerminalRetention is how long the latest event of a finished
// task stays available for reconnect replay before being dropped.
const defaultTerminalRetention = 5 * time.Minute

// Distributor routes task events to subscribers. Delivery is
// non-blocking: a subscriber that cannot keep up has events dropped and
// logged rather than stalling the publishing pipeline. The most recent
// event per task is retained so a reconnecting subscriber immediately
// learns the current state instead of waiting for the next update.
type Distributor struct {
	logger *zap.Logger

	retention time.Duration

	mu      sync.Mutex
	nc      *nats.Conn
	seq     map[string]uint64
	subs    map[string]map[int]chan ProgressEvent
	last    map[string]ProgressEvent
	nextSub int
}

// NewDistributor creates an event distributor with no bus attached.
func NewDistributor(logger *zap.Logger) *Distributor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Distributor{
		logger:    logger,
		retention: defaultTerminalRetention,
		seq:       make(map[string]uint64),
		subs:      make(map[string]map[int]chan ProgressEvent),
		last:      make(map[string]ProgressEvent),
	}
}

// AttachBus mirrors every published event onto NATS under
// tasks.{task_id}.{type}. Pass nil to detach.
func (d *Distributor) AttachBus(nc *nats.Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nc = nc
}

// Publish assigns the event's sequence number and timestamp, records it
// as the task's latest event, and fans it out. A terminal event
// schedules the task's retained state to be forgotten once the replay
// window passes.
func (d *Distributor) Publish(ev ProgressEvent) {
	d.mu.Lock()

	d.seq[ev.TaskID]++
	ev.Seq = d.seq[ev.TaskID]
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	d.last[ev.TaskID] = ev

	dropped := 0
	for _, ch := range d.subs[ev.TaskID] {
		select {
		case ch <- ev:
		default:
			dropped++
		}
	}
	nc := d.nc
	d.mu.Unlock()

	if dropped > 0 {
		d.logger.Warn("dropped event for slow subscribers",
			zap.String("task_id", ev.TaskID),
			zap.Uint64("seq", ev.Seq),
			zap.Int("subscribers", dropped))
	}

	if nc != nil {
		d.publishBus(nc, ev)
	}

	if ev.Type.Terminal() {
		taskID := ev.TaskID
		time.AfterFunc(d.retention, func() { d.Forget(taskID) })
	}
}

func (d *Distributor) publishBus(nc *nats.Conn, ev ProgressEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		d.logger.Error("failed to marshal event", zap.Error(err))
		return
	}
	subject := fmt.Sprintf("tasks.%s.%s", ev.TaskID, ev.Type)
	if err := nc.Publish(subject, data); err != nil {
		d.logger.Warn("failed to publish event to bus",
			zap.String("subject", subject),
			zap.Error(err))
	}
}

// Subscribe registers a subscriber for a task's events and returns the
// delivery channel plus an unsubscribe func. If the task has already
// emitted events, the latest one is replayed into the channel first so
// the subscriber sees current state without waiting.
func (d *Distributor) Subscribe(taskID string, buffer int) (<-chan ProgressEvent, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan ProgressEvent, buffer)

	d.mu.Lock()
	if last, ok := d.last[taskID]; ok {
		ch <- last
	}
	d.nextSub++
	id := d.nextSub
	if d.subs[taskID] == nil {
		d.subs[taskID] = make(map[int]chan ProgressEvent)
	}
	d.subs[taskID][id] = ch
	d.mu.Unlock()

	cancel := func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if subs, ok := d.subs[taskID]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(d.subs, taskID)
			}
		}
	}
	return ch, cancel
}

// Forget drops the retained state for a task. Publish arranges this
// automatically after a terminal event's replay window expires.
func (d *Distributor) Forget(taskID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.last, taskID)
	delete(d.seq, taskID)
}
