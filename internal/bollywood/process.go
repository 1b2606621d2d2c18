// File: internal/bollywood/process.go
package bollywood

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"
)

const defaultMailboxSize = 1024

// process represents the running instance of an actor, including its state and mailbox.
type process struct {
	engine  *Engine
	pid     *PID
	actor   Actor
	mailbox chan *messageEnvelope
	props   *Props
	stopCh  chan struct{} // Signal to stop the run loop
	stopped atomic.Bool   // Use atomic bool for safer concurrent checks
}

func newProcess(engine *Engine, pid *PID, props *Props) *process {
	return &process{
		engine:  engine,
		pid:     pid,
		props:   props,
		mailbox: make(chan *messageEnvelope, defaultMailboxSize),
		stopCh:  make(chan struct{}),
	}
}

// sendMessage sends a message to the actor's mailbox.
func (p *process) sendMessage(message interface{}, sender *PID) {
	// Allow system messages (Stopping, Stopped) through even once stopped.
	_, isStopping := message.(Stopping)
	_, isStopped := message.(Stopped)
	if p.stopped.Load() && !isStopping && !isStopped {
		return
	}

	envelope := &messageEnvelope{
		Sender:  sender,
		Message: message,
	}

	// Use non-blocking send with a fallback to report if mailbox is full.
	select {
	case p.mailbox <- envelope:
	default:
		p.engine.log.Warnw("bollywood: mailbox full, dropping message", "pid", p.pid.ID, "type", fmt.Sprintf("%T", message))
	}
}

// run is the main loop for the actor process.
func (p *process) run() {
	var stoppingInvoked bool // Track if Stopping handler has been called

	// Defer final cleanup and Stopped message
	defer func() {
		// Ensure actor is marked as stopped
		p.stopped.Store(true)

		// Recover from panic during Stopped processing
		defer func() {
			if r := recover(); r != nil {
				p.engine.log.Errorw("bollywood: actor panicked during final cleanup", "pid", p.pid.ID, "panic", r)
			}
			// Remove from engine *after* all cleanup attempts
			p.engine.remove(p.pid)
		}()

		// Send the final Stopped message if actor was initialized and Stopping was invoked
		if p.actor != nil && stoppingInvoked {
			p.invokeReceive(Stopped{}, nil) // Call Stopped handler
		} else if p.actor != nil && !stoppingInvoked {
			// This case might happen if the actor panicked *before* Stopping could be called.
			p.engine.log.Warnw("bollywood: actor stopped without Stopping handler invoked (early panic)", "pid", p.pid.ID)
			p.invokeReceive(Stopped{}, nil)
		}
	}()

	// Defer panic recovery for the main loop and actor initialization
	defer func() {
		if r := recover(); r != nil {
			p.engine.log.Errorw("bollywood: actor panicked", "pid", p.pid.ID, "panic", r, "stack", string(debug.Stack()))
			// Ensure stopCh is closed on panic (non-blocking) and mark as stopped immediately.
			if p.stopped.CompareAndSwap(false, true) {
				select {
				case <-p.stopCh: // Already closed
				default:
					close(p.stopCh)
				}
				// Attempt to invoke Stopping handler on panic if not already invoked
				if p.actor != nil && !stoppingInvoked {
					p.invokeReceive(Stopping{}, nil)
					stoppingInvoked = true
				}
			}
		}
	}()

	// Create the actor instance
	p.actor = p.props.Produce()
	if p.actor == nil {
		panic(fmt.Sprintf("Actor %s producer returned nil actor", p.pid.ID))
	}
	// Send Started message *after* actor is created
	p.invokeReceive(Started{}, nil)

	// Main message processing loop
	for {
		select {
		case <-p.stopCh:
			// Stop signal received directly (e.g., from engine.Stop or panic recovery).
			if p.stopped.CompareAndSwap(false, true) {
				// If not already marked stopped (e.g., by Stopping message),
				// invoke Stopping handler now before exiting.
				if !stoppingInvoked {
					p.invokeReceive(Stopping{}, nil)
					stoppingInvoked = true
				}
			}
			return // Exit the loop, deferred functions will run

		case envelope, ok := <-p.mailbox:
			if !ok {
				// Mailbox closed unexpectedly? Should not happen with current design.
				p.engine.log.Errorw("bollywood: mailbox closed unexpectedly", "pid", p.pid.ID)
				if p.stopped.CompareAndSwap(false, true) {
					select {
					case <-p.stopCh:
					default:
						close(p.stopCh)
					}
					if !stoppingInvoked {
						p.invokeReceive(Stopping{}, nil)
						stoppingInvoked = true
					}
				}
				return
			}

			// Check if stopped *after* receiving from mailbox,
			// but before processing, unless it's a system message.
			_, isStopping := envelope.Message.(Stopping)
			_, isStoppedMsg := envelope.Message.(Stopped)
			if p.stopped.Load() && !isStopping && !isStoppedMsg {
				continue
			}

			// Handle system messages directly
			switch msg := envelope.Message.(type) {
			case Stopping:
				if p.stopped.CompareAndSwap(false, true) { // Process only once
					if !stoppingInvoked {
						p.invokeReceive(msg, envelope.Sender)
						stoppingInvoked = true
					}
					// Signal the loop to stop *after* processing Stopping
					select {
					case <-p.stopCh: // Already closed by engine.Stop?
					default:
						close(p.stopCh)
					}
				}
			case Stopped:
				// Should be handled in defer, but handle if received via mailbox.
				// This indicates a potential logic error elsewhere.
				p.engine.log.Warnw("bollywood: actor received unexpected Stopped message via mailbox", "pid", p.pid.ID)
				if p.stopped.CompareAndSwap(false, true) {
					if !stoppingInvoked {
						// If Stopping wasn't called, call it now before Stopped
						p.invokeReceive(Stopping{}, nil)
						stoppingInvoked = true
					}
					p.invokeReceive(msg, envelope.Sender) // Call the received Stopped handler
					select {
					case <-p.stopCh:
					default:
						close(p.stopCh)
					}
				}
			default:
				// Process regular user message
				p.invokeReceive(envelope.Message, envelope.Sender)
			}
		}
	}
}

// invokeReceive calls the actor's Receive method within a protected context.
func (p *process) invokeReceive(msg interface{}, sender *PID) {
	// Create context for this message
	ctx := &context{
		engine:  p.engine,
		self:    p.pid,
		sender:  sender,
		message: msg,
	}

	// Call the actor's Receive method, recovering from panics within it.
	func() {
		defer func() {
			if r := recover(); r != nil {
				p.engine.log.Errorw("bollywood: actor panicked during Receive", "pid", p.pid.ID, "messageType", fmt.Sprintf("%T", msg), "panic", r, "stack", string(debug.Stack()))
				// Ensure stopCh is closed on panic within Receive.
				if p.stopped.CompareAndSwap(false, true) {
					select {
					case <-p.stopCh:
					default:
						close(p.stopCh)
					}
					// stopped was set just above, so this branch is never taken: a panic
					// in Receive skips the Stopping handler, and run's deferred cleanup
					// invokes Stopped on its own.
					if !p.stopped.Load() {
						p.invokeReceive(Stopping{}, nil)
					}
				}
			}
		}()
		p.actor.Receive(ctx)
	}()
}
