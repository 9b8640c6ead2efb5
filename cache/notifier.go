package cache

import "sync"

// Notifier broadcasts a change hint after every mutating cache operation. Subscribers treat a received signal as a
// re-query hint, it never carries a payload. Sending never blocks: a subscriber that has not consumed its pending
// hint yet will not receive a second one.
type Notifier struct {
	mutex       sync.Mutex
	subscribers []chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe returns a channel receiving one hint per batch of changes.
func (n *Notifier) Subscribe() <-chan struct{} {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	subscriber := make(chan struct{}, 1)
	n.subscribers = append(n.subscribers, subscriber)
	return subscriber
}

func (n *Notifier) notifyChanged() {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	for _, subscriber := range n.subscribers {
		select {
		case subscriber <- struct{}{}:
		default:
		}
	}
}
