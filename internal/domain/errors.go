package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// ErrConfiguration marks malformed or missing contract terms detected at
	// contract construction.
	ErrConfiguration = errors.New("invalid contract terms")
	// ErrSchedule marks invalid cycle syntax or date arithmetic detected
	// during schedule generation.
	ErrSchedule = errors.New("schedule generation failed")
	// ErrSimulation marks an observer that could not resolve a requested
	// identifier or time during the simulation loop.
	ErrSimulation = errors.New("simulation failed")

	ErrLockHeld     = errors.New("lock already held")
	ErrWSDisconnect = errors.New("websocket disconnected")
)
