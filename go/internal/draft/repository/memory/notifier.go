package memory

import "sync"

// Notifier hands outbox wake-ups from a Store to the relay, the way the
// Postgres listener does with NOTIFY.
type Notifier struct {
	store *Store
	once  sync.Once
}

// Notifier returns the wake-up source for this store's outbox.
func (s *Store) Notifier() *Notifier {
	return &Notifier{store: s}
}

func (n *Notifier) Notify() <-chan string {
	return n.store.notify
}

func (n *Notifier) Ping() error {
	return nil
}

// Close stops further wake-ups. The channel is closed so a relay loop
// reading from it exits.
func (n *Notifier) Close() error {
	n.once.Do(func() {
		n.store.mu.Lock()
		defer n.store.mu.Unlock()
		n.store.closed = true
		close(n.store.notify)
	})
	return nil
}
