// Package supervisor starts an OS process and determines readiness by
// polling an HTTP endpoint until it responds or a timeout elapses.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"

	"github.com/fixturelab/estest/process"
)

// State is the lifecycle state of a supervised process.
type State int

const (
	// StateStarting - process spawned, readiness polling in progress
	StateStarting State = iota
	// StateReady - a probe succeeded within the timeout
	StateReady
	// StateFailed - the timeout elapsed or the process exited early
	StateFailed
	// StateStopped - explicitly torn down
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "Starting"
	case StateReady:
		return "Ready"
	case StateFailed:
		return "Failed"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Config configures readiness detection and teardown.
type Config struct {
	// URL is probed with GETs until any response arrives. The status code
	// does not matter, responding at all means the process is up.
	URL string

	// Headers are sent with every probe, e.g. an Authorization header.
	Headers http.Header

	// Timeout is the overall readiness budget. Defaults to 60 seconds.
	Timeout time.Duration

	// ProbeInterval is the pause between probes. Defaults to 250ms.
	ProbeInterval time.Duration

	// StopGracePeriod is how long Stop waits after a termination signal
	// before escalating to a kill. Defaults to 10 seconds.
	StopGracePeriod time.Duration

	// HTTPClient used for probes. A short-timeout client is used if nil.
	HTTPClient *http.Client

	// Metrics receives lifecycle events, discarded if nil.
	Metrics MetricsCollector

	// No debug logs if nil
	DebugWriter io.Writer
}

// Supervisor owns a spawned process and its readiness outcome.
type Supervisor struct {
	conf   Config
	proc   process.Process
	cancel context.CancelFunc

	// Closed by the wait goroutine once the process exits, waitErr is set
	// first and must not be read before exited is closed.
	exited  chan struct{}
	waitErr error

	lock    sync.Mutex
	state   State
	stopped bool
}

// Start spawns the executable behind creator with the given args and blocks
// until conf.URL responds or conf.Timeout elapses. On any failure after the
// spawn the process is terminated before the error is returned, so an error
// never leaks a running process. Canceling ctx kills the process.
func Start(ctx context.Context, creator process.Creator, args []string, conf Config) (*Supervisor, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if conf.Timeout <= 0 {
		conf.Timeout = 60 * time.Second
	}
	if conf.ProbeInterval <= 0 {
		conf.ProbeInterval = 250 * time.Millisecond
	}
	if conf.StopGracePeriod <= 0 {
		conf.StopGracePeriod = 10 * time.Second
	}
	if conf.HTTPClient == nil {
		conf.HTTPClient = &http.Client{Timeout: time.Second}
	}
	if conf.Metrics == nil {
		conf.Metrics = NewNopCollector()
	}
	procCtx, cancel := context.WithCancel(ctx)
	p, err := creator.New(procCtx, args...)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("Unable to create process: %v", err)
	}
	s := &Supervisor{
		conf:   conf,
		proc:   p,
		cancel: cancel,
		exited: make(chan struct{}),
		state:  StateStarting,
	}
	s.debugf("Starting process with args %v", args)
	began := time.Now()
	if err := p.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("Unable to start process: %v", err)
	}
	conf.Metrics.ProcessStarted()
	go s.watch()
	if err := s.awaitReady(ctx); err != nil {
		if stopErr := s.stop(StateFailed); stopErr != nil {
			err = multierror.Append(err, stopErr)
		}
		return nil, err
	}
	s.setState(StateReady)
	conf.Metrics.ProcessReady(time.Since(began))
	return s, nil
}

func (s *Supervisor) watch() {
	s.waitErr = s.proc.Wait()
	close(s.exited)
}

func (s *Supervisor) awaitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.conf.Timeout)
	defer cancel()
	probe := func() error {
		select {
		case <-s.exited:
			return backoff.Permanent(fmt.Errorf("Process exited before becoming ready: %v", s.waitErr))
		default:
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.conf.URL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		for k, v := range s.conf.Headers {
			req.Header[k] = v
		}
		resp, err := s.conf.HTTPClient.Do(req)
		if err != nil {
			s.conf.Metrics.ProbeCompleted(false)
			return err
		}
		resp.Body.Close()
		s.conf.Metrics.ProbeCompleted(true)
		s.debugf("Probe of %v got status %v", s.conf.URL, resp.StatusCode)
		return nil
	}
	b := backoff.WithContext(backoff.NewConstantBackOff(s.conf.ProbeInterval), ctx)
	if err := backoff.Retry(probe, b); err != nil {
		return fmt.Errorf("Process at %v not ready within %v: %v", s.conf.URL, s.conf.Timeout, err)
	}
	return nil
}

// Running is true while the process is alive and the readiness probe has
// succeeded. Once the process exits for any reason it stays false.
func (s *Supervisor) Running() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state != StateReady {
		return false
	}
	select {
	case <-s.exited:
		s.state = StateFailed
		return false
	default:
		return true
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

// Pid returns the supervised process ID, or 0 before the spawn.
func (s *Supervisor) Pid() int {
	return s.proc.Pid()
}

// Stop terminates the process, politely first and forcefully after the grace
// period. It is safe to call more than once; later calls are no-ops. Worst
// case it blocks for two grace periods.
func (s *Supervisor) Stop() error {
	return s.stop(StateStopped)
}

func (s *Supervisor) stop(end State) error {
	s.lock.Lock()
	if s.stopped {
		s.lock.Unlock()
		return nil
	}
	s.stopped = true
	s.state = end
	s.lock.Unlock()

	began := time.Now()
	var errs *multierror.Error
	select {
	case <-s.exited:
		// Already gone, nothing to signal
	default:
		if err := s.proc.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = multierror.Append(errs, fmt.Errorf("Unable to signal process: %v", err))
		}
		select {
		case <-s.exited:
		case <-time.After(s.conf.StopGracePeriod):
			s.debugf("Process %v did not exit after %v, killing", s.proc.Pid(), s.conf.StopGracePeriod)
			if err := s.proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				errs = multierror.Append(errs, fmt.Errorf("Unable to kill process: %v", err))
			}
			select {
			case <-s.exited:
			case <-time.After(s.conf.StopGracePeriod):
				errs = multierror.Append(errs, fmt.Errorf("Process %v did not exit after kill", s.proc.Pid()))
			}
		}
	}
	s.cancel()
	s.conf.Metrics.ProcessStopped(end, time.Since(began))
	s.debugf("Process stopped in state %v", end)
	return errs.ErrorOrNil()
}

func (s *Supervisor) setState(state State) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.state = state
}

func (s *Supervisor) debugf(format string, args ...interface{}) {
	if w := s.conf.DebugWriter; w != nil {
		fmt.Fprintf(w, format+"\n", args...)
	}
}
