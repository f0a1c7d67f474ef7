package events

import "sync"

type subscription struct {
	identifier uint64
	observer   Observer
}

// Bus delivers every notification to its subscribers in subscription order.
// Bus itself satisfies Observer, so publishers hold it like any other observer.
type Bus struct {
	mutex          sync.RWMutex
	subscriptions  []subscription
	nextIdentifier uint64
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers observer and returns a function that removes it. The returned function is idempotent.
func (bus *Bus) Subscribe(observer Observer) func() {
	if observer == nil {
		return func() {}
	}
	bus.mutex.Lock()
	bus.nextIdentifier++
	identifier := bus.nextIdentifier
	bus.subscriptions = append(bus.subscriptions, subscription{identifier: identifier, observer: observer})
	bus.mutex.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { bus.unsubscribe(identifier) })
	}
}

func (bus *Bus) unsubscribe(identifier uint64) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	for index, existing := range bus.subscriptions {
		if existing.identifier == identifier {
			bus.subscriptions = append(bus.subscriptions[:index:index], bus.subscriptions[index+1:]...)
			return
		}
	}
}

// Subscribers returns the number of registered observers.
func (bus *Bus) Subscribers() int {
	bus.mutex.RLock()
	defer bus.mutex.RUnlock()
	return len(bus.subscriptions)
}

func (bus *Bus) snapshot() []Observer {
	bus.mutex.RLock()
	defer bus.mutex.RUnlock()
	observers := make([]Observer, 0, len(bus.subscriptions))
	for _, existing := range bus.subscriptions {
		observers = append(observers, existing.observer)
	}
	return observers
}

// RepositoryLoaded implements Observer.
func (bus *Bus) RepositoryLoaded(event RepositoryLoaded) {
	for _, observer := range bus.snapshot() {
		observer.RepositoryLoaded(event)
	}
}

// UpdateStarted implements Observer.
func (bus *Bus) UpdateStarted(event UpdateStarted) {
	for _, observer := range bus.snapshot() {
		observer.UpdateStarted(event)
	}
}

// UpdateFinished implements Observer.
func (bus *Bus) UpdateFinished(event UpdateFinished) {
	for _, observer := range bus.snapshot() {
		observer.UpdateFinished(event)
	}
}

// AsyncOperationDone implements Observer.
func (bus *Bus) AsyncOperationDone(event AsyncOperationDone) {
	for _, observer := range bus.snapshot() {
		observer.AsyncOperationDone(event)
	}
}
