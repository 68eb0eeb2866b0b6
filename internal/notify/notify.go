// Package notify shows desktop notifications through gen2brain/beeep.
package notify

import (
	"sync"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

// queueSize is the number of notifications waiting to be shown before new
// ones are dropped.
const queueSize = 8

type message struct {
	title, body string
	icon        any
}

// Notifier sends desktop notifications from a background goroutine, in
// order. Failures are logged and dropped.
type Notifier struct {
	logger  *zap.Logger
	send    func(title, message string, icon any) error
	enabled bool

	queue chan message
	once  sync.Once

	mu   sync.RWMutex
	icon []byte
}

// New creates a notifier. A disabled notifier drops every message.
func New(enabled bool, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	beeep.AppName = "OSC"
	return &Notifier{
		logger:  logger.Named("notify"),
		send:    beeep.Notify,
		enabled: enabled,
		queue:   make(chan message, queueSize),
	}
}

// SetIcon sets the PNG shown next to notifications.
func (n *Notifier) SetIcon(png []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.icon = png
}

// Notify queues a notification and returns without waiting for it to be
// shown. A full queue drops the notification.
func (n *Notifier) Notify(title, body string) {
	if !n.enabled {
		return
	}

	n.mu.RLock()
	var icon any = ""
	if len(n.icon) > 0 {
		icon = n.icon
	}
	n.mu.RUnlock()

	n.once.Do(func() { go n.run() })

	select {
	case n.queue <- message{title: title, body: body, icon: icon}:
	default:
		n.logger.Warn("Notification dropped, queue is full", zap.String("body", body))
	}
}

func (n *Notifier) run() {
	for m := range n.queue {
		if err := n.send(m.title, m.body, m.icon); err != nil {
			n.logger.Warn("Failed to send notification", zap.String("title", m.title), zap.Error(err))
		}
	}
}
