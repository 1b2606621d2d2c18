package scheduler

// tick is sent by the scheduler's own pump goroutine to drive one pass over
// all sessions. It is never sent by any other actor.
type tick struct{}

// drainAndStop is sent once at shutdown, ahead of the engine's Stopping
// message, to request the drain-then-terminate sequence.
type drainAndStop struct{}
