// Package es runs an Elasticsearch server as a test fixture. It detects the
// binary's version, builds a version-appropriate launch command, spawns the
// process and blocks until the HTTP port answers, then hands back a Server
// to use and later Close.
package es

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	goversion "github.com/hashicorp/go-version"

	"github.com/fixturelab/estest/process"
	"github.com/fixturelab/estest/supervisor"
)

// Credentials is an optional login/password pair. When set it is sent as an
// HTTP basic auth header with every readiness probe.
type Credentials struct {
	Login    string
	Password string
}

// Header returns the Authorization header value for the pair.
func (c Credentials) Header() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.Login+":"+c.Password))
}

// Config describes how to launch the server. It is copied by Start and must
// not be changed afterwards.
type Config struct {
	// ExePath is the elasticsearch executable. Empty string means
	// "elasticsearch" either locally or on PATH.
	ExePath string

	// Host the server binds to, 127.0.0.1 if empty.
	Host string

	// Port for the HTTP API. If 0, a free port is picked.
	Port int

	// TransportPort for internal node-to-node transport. If 0, a free port
	// is picked. Must differ from Port.
	TransportPort int

	// PidFile, LogsPath and DataPath must be writable by the process. Any
	// of them left empty is placed under a temp dir that is created by
	// Start and removed on Close.
	PidFile  string
	LogsPath string
	DataPath string

	// ClusterName defaults to "elasticsearch_cluster_<port>".
	ClusterName string

	// NetworkPublishHost is the host the node advertises to the cluster,
	// 127.0.0.1 if empty.
	NetworkPublishHost string

	// IndexStoreType is the index store engine, "fs" if empty.
	IndexStoreType string

	// StartTimeout bounds the wait for the HTTP port to answer. Defaults to
	// the supervisor's default.
	StartTimeout time.Duration

	// Auth, if set, is used for the readiness probes and is expected by the
	// running server for client requests.
	Auth *Credentials

	// TempDirBase is the parent for the generated temp dir. If empty the
	// system temp dir is used. Has no effect when all paths are set.
	TempDirBase string

	// RetainTempDir keeps the generated temp dir around after Close.
	RetainTempDir bool

	// Creator overrides how processes are spawned. If nil one is created
	// from ExePath. Mostly useful for tests.
	Creator process.Creator

	// Metrics receives supervisor lifecycle events, discarded if nil.
	Metrics supervisor.MetricsCollector

	// No debug logs if nil
	DebugWriter io.Writer
}

// Instance is the minimal handle test code should depend on. It is
// implemented by both Server and Noop.
type Instance interface {
	Running() bool
	Host() string
	Port() int
}

var (
	_ Instance = (*Server)(nil)
	_ Instance = (*Noop)(nil)
)

// Server is a started Elasticsearch instance.
type Server struct {
	// Supervisor owns the underlying OS process. Nil until Start succeeds.
	Supervisor *supervisor.Supervisor

	// TempDir is the generated scratch dir, empty if all paths were
	// supplied in the config.
	TempDir              string
	DeleteTempDirOnClose bool

	DebugWriter io.Writer

	conf    *Config
	creator process.Creator
	version *goversion.Version
}

// Start launches the server described by conf and blocks until it accepts
// HTTP requests or the start timeout elapses. On error no process is left
// running, though generated temp dirs may survive if cleanup itself fails.
func Start(ctx context.Context, conf *Config) (*Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if conf == nil {
		conf = &Config{}
	}
	c := *conf
	s := &Server{conf: &c, DebugWriter: c.DebugWriter}
	// Any failure from here on must close: a temp dir can exist as soon as
	// provisioning begins, and the supervisor guarantees the process is gone
	// when its Start errors.
	sup, err := s.start(ctx)
	if err != nil {
		if closeErr := s.Close(); closeErr != nil {
			err = multierror.Append(err, closeErr)
		}
		return nil, err
	}
	s.Supervisor = sup
	return s, nil
}

func (s *Server) start(ctx context.Context) (*supervisor.Supervisor, error) {
	if err := s.provisionPaths(); err != nil {
		return nil, err
	}
	if err := applyDefaults(s.conf); err != nil {
		return nil, err
	}
	s.creator = s.conf.Creator
	if s.creator == nil {
		s.creator = process.NewCreator(s.conf.ExePath, s.conf.DebugWriter)
	}
	return s.startSupervised(ctx)
}

func (s *Server) startSupervised(ctx context.Context) (*supervisor.Supervisor, error) {
	v, err := s.Version(ctx)
	if err != nil {
		return nil, err
	}
	s.Debugf("Detected elasticsearch %v at %v", v, s.conf.ExePath)
	args, err := commandArgs(s.conf, v)
	if err != nil {
		return nil, err
	}
	headers := http.Header{}
	if s.conf.Auth != nil {
		headers.Set("Authorization", s.conf.Auth.Header())
	}
	return supervisor.Start(ctx, s.creator, args, supervisor.Config{
		URL:         fmt.Sprintf("http://%v:%v", s.conf.Host, s.conf.Port),
		Headers:     headers,
		Timeout:     s.conf.StartTimeout,
		Metrics:     s.conf.Metrics,
		DebugWriter: s.conf.DebugWriter,
	})
}

// provisionPaths creates a temp dir for any of the pid file, logs and data
// locations the config leaves empty.
func (s *Server) provisionPaths() error {
	c := s.conf
	if c.PidFile != "" && c.LogsPath != "" && c.DataPath != "" {
		return nil
	}
	dir, err := os.MkdirTemp(c.TempDirBase, "estest-")
	if err != nil {
		return fmt.Errorf("Unable to create temp dir: %v", err)
	}
	s.TempDir = dir
	s.DeleteTempDirOnClose = !c.RetainTempDir
	s.Debugf("Created temp directory at: %v", dir)
	if c.PidFile == "" {
		c.PidFile = filepath.Join(dir, "elasticsearch.pid")
	}
	if c.LogsPath == "" {
		c.LogsPath = filepath.Join(dir, "logs")
		if err := os.MkdirAll(c.LogsPath, 0700); err != nil {
			return fmt.Errorf("Unable to create logs dir: %v", err)
		}
	}
	if c.DataPath == "" {
		c.DataPath = filepath.Join(dir, "data")
		if err := os.MkdirAll(c.DataPath, 0700); err != nil {
			return fmt.Errorf("Unable to create data dir: %v", err)
		}
	}
	return nil
}

func applyDefaults(c *Config) error {
	if c.ExePath == "" {
		c.ExePath = "elasticsearch"
	}
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	var err error
	if c.Port == 0 {
		if c.Port, err = freePort(); err != nil {
			return fmt.Errorf("Unable to pick free http port: %v", err)
		}
	}
	if c.TransportPort == 0 {
		if c.TransportPort, err = freePort(); err != nil {
			return fmt.Errorf("Unable to pick free transport port: %v", err)
		}
	}
	if c.Port == c.TransportPort {
		return fmt.Errorf("Port and TransportPort must differ, both are %v", c.Port)
	}
	if c.NetworkPublishHost == "" {
		c.NetworkPublishHost = "127.0.0.1"
	}
	if c.IndexStoreType == "" {
		c.IndexStoreType = "fs"
	}
	if c.ClusterName == "" {
		c.ClusterName = fmt.Sprintf("elasticsearch_cluster_%v", c.Port)
	}
	return nil
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// Running is true while the process is alive and the readiness probe
// succeeded.
func (s *Server) Running() bool {
	return s.Supervisor != nil && s.Supervisor.Running()
}

// Host the server is bound to.
func (s *Server) Host() string { return s.conf.Host }

// Port of the HTTP API.
func (s *Server) Port() int { return s.conf.Port }

// TransportPort of the internal transport.
func (s *Server) TransportPort() int { return s.conf.TransportPort }

// PidFile location the server writes its pid to.
func (s *Server) PidFile() string { return s.conf.PidFile }

// URL of the HTTP API.
func (s *Server) URL() string {
	return fmt.Sprintf("http://%v:%v", s.conf.Host, s.conf.Port)
}

// Pid reads the pid file the server wrote at startup.
func (s *Server) Pid() (int, error) {
	byts, err := os.ReadFile(s.conf.PidFile)
	if err != nil {
		return 0, fmt.Errorf("Unable to read pid file: %v", err)
	}
	return process.PidFromFileContents(string(byts))
}

// Close terminates the process and removes the generated temp dir. Safe to
// call after a failed Start and safe to call more than once.
func (s *Server) Close() error {
	errs := []error{}
	if s.Supervisor != nil {
		if err := s.Supervisor.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.DeleteTempDirOnClose && s.TempDir != "" {
		if err := os.RemoveAll(s.TempDir); err != nil {
			errs = append(errs, fmt.Errorf("Failed to remove temp dir %v: %v", s.TempDir, err))
		} else {
			s.TempDir = ""
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return multierror.Append(nil, errs...).ErrorOrNil()
}
