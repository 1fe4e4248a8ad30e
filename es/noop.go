package es

// Noop looks like a running server but owns no process. It is for setups
// where the server is supplied externally and the fixture should not manage
// one: it never spawns, never probes and never fails.
type Noop struct {
	host string
	port int
	auth *Credentials
}

// NewNoop returns a handle for an externally managed server at host:port.
// auth may be nil.
func NewNoop(host string, port int, auth *Credentials) *Noop {
	return &Noop{host: host, port: port, auth: auth}
}

// Running always reports true.
func (n *Noop) Running() bool { return true }

// Host the external server is reachable on.
func (n *Noop) Host() string { return n.host }

// Port the external server is reachable on.
func (n *Noop) Port() int { return n.port }

// Auth returns the credentials the handle was created with, nil if none.
func (n *Noop) Auth() *Credentials { return n.auth }
