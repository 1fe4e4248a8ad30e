package process

import (
	"os"
)

// Process is a handle to a spawned search engine process. It is created by a
// Creator and owned by whoever started it, usually a supervisor.
type Process interface {
	// Start starts the process and returns without waiting for it.
	Start() error

	// Wait blocks until the process exits. It must only be called once and
	// only after a successful Start.
	Wait() error

	// Signal sends an OS signal to the running process.
	Signal(sig os.Signal) error

	// Kill forcefully terminates the process.
	Kill() error

	// Pid returns the OS process ID, or 0 if the process was never started.
	Pid() int
}
