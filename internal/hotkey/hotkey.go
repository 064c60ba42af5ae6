// Package hotkey abstracts the toggle event source that starts and stops
// dictation.
//
// Desktop builds wire a global hotkey library here; the headless build ships
// [SignalTrigger], which listens for SIGUSR1 so dictation can be toggled
// with `kill -USR1 <pid>` or from a window-manager keybinding.
package hotkey

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Trigger is a source of zero-argument toggle events.
type Trigger interface {
	// Toggles returns the channel on which toggle events are delivered.
	// The channel is closed when the trigger is closed.
	Toggles() <-chan struct{}

	// Close releases the trigger's resources and closes the event channel.
	Close() error
}

// SignalTrigger emits a toggle event for every SIGUSR1 the process receives.
type SignalTrigger struct {
	toggles   chan struct{}
	signals   chan os.Signal
	done      chan struct{}
	closeOnce sync.Once
}

// Compile-time assertion that SignalTrigger implements Trigger.
var _ Trigger = (*SignalTrigger)(nil)

// NewSignalTrigger registers for SIGUSR1 and starts forwarding it as toggle
// events. Call Close to unregister.
func NewSignalTrigger() *SignalTrigger {
	t := &SignalTrigger{
		toggles: make(chan struct{}, 1),
		signals: make(chan os.Signal, 1),
		done:    make(chan struct{}),
	}
	signal.Notify(t.signals, syscall.SIGUSR1)
	go t.forward()
	return t
}

// forward turns received signals into toggle events. A toggle that arrives
// while the previous one is still unconsumed is dropped; toggling faster
// than the session can react has no meaningful interpretation anyway.
func (t *SignalTrigger) forward() {
	defer close(t.toggles)
	for {
		select {
		case <-t.done:
			return
		case <-t.signals:
			select {
			case t.toggles <- struct{}{}:
			default:
			}
		}
	}
}

// Toggles implements Trigger.
func (t *SignalTrigger) Toggles() <-chan struct{} {
	return t.toggles
}

// Close implements Trigger. It unregisters the signal handler and closes the
// event channel. Safe to call multiple times.
func (t *SignalTrigger) Close() error {
	t.closeOnce.Do(func() {
		signal.Stop(t.signals)
		close(t.done)
	})
	return nil
}
