package app

import (
	"sync"
	"time"

	"github.com/mediabatch/mediabatch-agent/internal/jobs"
)

// Alerter shows a message the user must acknowledge.
type Alerter interface {
	Alert(message string)
}

// AlertFunc adapts a function to Alerter.
type AlertFunc func(message string)

func (f AlertFunc) Alert(message string) { f(message) }

// Alert is one queued message.
type Alert struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// AlertQueue buffers alerts for front-ends that cannot block, such as the
// HTTP surface. Each alert is also pushed on the event bus.
type AlertQueue struct {
	mu     sync.Mutex
	alerts []Alert
	max    int
	bus    *jobs.EventBus
}

// NewAlertQueue keeps at most max undelivered alerts, dropping the oldest.
func NewAlertQueue(max int, bus *jobs.EventBus) *AlertQueue {
	if max <= 0 {
		max = 50
	}
	return &AlertQueue{max: max, bus: bus}
}

func (q *AlertQueue) Alert(message string) {
	q.mu.Lock()
	q.alerts = append(q.alerts, Alert{Message: message, At: time.Now().UTC()})
	if len(q.alerts) > q.max {
		q.alerts = append([]Alert(nil), q.alerts[len(q.alerts)-q.max:]...)
	}
	q.mu.Unlock()

	if q.bus != nil {
		q.bus.Publish(jobs.Event{Type: jobs.EventTypeAlert, Message: message})
	}
}

// Drain returns and clears the pending alerts, oldest first.
func (q *AlertQueue) Drain() []Alert {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.alerts
	q.alerts = nil
	return out
}

func (q *AlertQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.alerts)
}
