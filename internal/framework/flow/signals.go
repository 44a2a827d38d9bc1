package flow

import "sync"

// Signals emitted by the application.
const (
	SignalBootstrapShuttingDown = "bootstrapShuttingDown"
	SignalRequestDispatched     = "requestDispatched"
	SignalPackagesBooted        = "packagesBooted"
)

// Slot receives the arguments of a dispatched signal.
type Slot func(args ...any)

// Dispatcher connects slots to named signals.
type Dispatcher struct {
	mu    sync.RWMutex
	slots map[string][]Slot
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{slots: make(map[string][]Slot)}
}

// Connect registers slot for signal.
func (d *Dispatcher) Connect(signal string, slot Slot) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.slots[signal] = append(d.slots[signal], slot)
}

// Dispatch calls every slot connected to signal in connection order.
func (d *Dispatcher) Dispatch(signal string, args ...any) {
	d.mu.RLock()
	slots := append([]Slot(nil), d.slots[signal]...)
	d.mu.RUnlock()

	for _, slot := range slots {
		slot(args...)
	}
}
