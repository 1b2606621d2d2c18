package bollywood

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Engine manages the lifecycle and message dispatching for actors.
type Engine struct {
	pidCounter uint64
	actors     map[string]*process
	mu         sync.RWMutex // Protects the actors map
	stopping   atomic.Bool  // Indicates if the engine is shutting down
	log        *zap.SugaredLogger
}

// NewEngine creates a new actor engine, logging its diagnostics through log.
func NewEngine(log *zap.SugaredLogger) *Engine {
	return &Engine{
		actors: make(map[string]*process),
		log:    log,
	}
}

// nextPID generates a unique process ID.
func (e *Engine) nextPID() *PID {
	id := atomic.AddUint64(&e.pidCounter, 1)
	return &PID{ID: fmt.Sprintf("actor-%d", id)}
}

// Spawn creates and starts a new actor based on the provided Props.
// It returns the PID of the newly created actor.
func (e *Engine) Spawn(props *Props) *PID {
	if e.stopping.Load() {
		e.log.Warnw("bollywood: engine is stopping, refusing to spawn")
		return nil
	}

	pid := e.nextPID()
	proc := newProcess(e, pid, props)

	e.mu.Lock()
	e.actors[pid.ID] = proc
	e.mu.Unlock()

	go proc.run() // Start the actor's message loop; run delivers Started before any mailbox message

	return pid
}

// Send delivers a message to the actor identified by the PID.
// sender can be nil if the message originates from outside the actor system.
func (e *Engine) Send(pid *PID, message interface{}, sender *PID) {
	if e.stopping.Load() {
		e.log.Debugw("bollywood: engine stopping, dropping message", "pid", pid.ID)
		return
	}

	e.mu.RLock()
	proc, ok := e.actors[pid.ID]
	e.mu.RUnlock()

	if ok {
		proc.sendMessage(message, sender)
	} else {
		e.log.Debugw("bollywood: actor not found, dropping message", "pid", pid.ID)
	}
}

// Stop requests an actor to stop processing messages and shut down.
// The actor will process a Stopping message, followed by a Stopped message
// as its message loop exits.
func (e *Engine) Stop(pid *PID) {
	e.mu.RLock()
	proc, ok := e.actors[pid.ID]
	e.mu.RUnlock()

	if ok {
		// Straight to the mailbox: Send refuses messages once Shutdown has begun.
		proc.sendMessage(Stopping{}, nil)
	}
}

// remove removes an actor process from the engine's tracking.
// This is called internally by the process when it fully stops.
func (e *Engine) remove(pid *PID) {
	e.mu.Lock()
	delete(e.actors, pid.ID)
	e.mu.Unlock()
}

// Shutdown stops all actors and waits for them to terminate gracefully.
// Note: Simple shutdown, might need refinement for complex dependencies.
func (e *Engine) Shutdown(timeout time.Duration) {
	if !e.stopping.CompareAndSwap(false, true) {
		e.log.Warnw("bollywood: engine already shutting down")
		return
	}
	e.log.Infow("bollywood: engine shutdown initiated")

	e.mu.RLock()
	pidsToStop := make([]*PID, 0, len(e.actors))
	for _, proc := range e.actors {
		pidsToStop = append(pidsToStop, proc.pid)
	}
	e.mu.RUnlock()

	e.log.Infow("bollywood: stopping actors", "count", len(pidsToStop))
	for _, pid := range pidsToStop {
		e.Stop(pid)
	}

	// Wait for actors to be removed (simple polling)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		e.mu.RLock()
		remaining := len(e.actors)
		e.mu.RUnlock()
		if remaining == 0 {
			e.log.Infow("bollywood: all actors stopped")
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	e.mu.RLock()
	if len(e.actors) > 0 {
		e.log.Warnw("bollywood: shutdown timeout, forcing actor removal", "remaining", len(e.actors))
		// Force remove remaining actors (might leak resources if actors are stuck)
		e.mu.RUnlock()
		e.mu.Lock()
		e.actors = make(map[string]*process) // Clear map forcefully
		e.mu.Unlock()
	} else {
		e.mu.RUnlock()
	}

	e.log.Infow("bollywood: engine shutdown complete")
}
