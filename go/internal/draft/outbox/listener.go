package outbox

import (
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// PQNotifier is a Notifier backed by a Postgres LISTEN connection.
type PQNotifier struct {
	listener *pq.Listener
	notify   chan string
	done     chan struct{}
	once     sync.Once
}

// NewPQNotifier listens on channel using a dedicated lib/pq connection.
func NewPQNotifier(databaseURL, channel string) (*PQNotifier, error) {
	l := pq.NewListener(
		databaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(channel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", channel).
		Msg("listening for notifications")

	n := &PQNotifier{
		listener: l,
		notify:   make(chan string, 64),
		done:     make(chan struct{}),
	}
	go n.forward()
	return n, nil
}

func (n *PQNotifier) forward() {
	defer close(n.notify)
	for {
		select {
		case <-n.done:
			return
		case note, ok := <-n.listener.Notify:
			if !ok {
				return
			}
			payload := ""
			// nil notification means the connection was re-established and
			// notifications may have been lost
			if note != nil {
				payload = note.Extra
			}
			select {
			case n.notify <- payload:
			default:
			}
		}
	}
}

func (n *PQNotifier) Notify() <-chan string {
	return n.notify
}

func (n *PQNotifier) Ping() error {
	return n.listener.Ping()
}

func (n *PQNotifier) Close() error {
	var err error
	n.once.Do(func() {
		close(n.done)
		err = n.listener.Close()
	})
	return err
}
