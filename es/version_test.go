package es

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fixturelab/estest/process"
)

// fakeCreator scripts Output and counts invocations so tests can verify
// memoization and that nothing gets spawned.
type fakeCreator struct {
	output    []byte
	outputErr error

	lock        sync.Mutex
	outputCalls int
	newCalls    int
}

func (f *fakeCreator) New(ctx context.Context, args ...string) (process.Process, error) {
	f.lock.Lock()
	f.newCalls++
	f.lock.Unlock()
	return nil, errors.New("fakeCreator cannot spawn")
}

func (f *fakeCreator) Output(ctx context.Context, args ...string) ([]byte, error) {
	f.lock.Lock()
	f.outputCalls++
	f.lock.Unlock()
	return f.output, f.outputErr
}

func serverWithCreator(c process.Creator, exePath string) *Server {
	return &Server{conf: &Config{ExePath: exePath}, creator: c}
}

func TestVersionParsesTriple(t *testing.T) {
	creator := &fakeCreator{output: []byte("Version: 7.10.2, Build: default/tar/747e1cc/2021-01-13T00:42:12.435326Z, JVM: 15.0.1\n")}
	s := serverWithCreator(creator, "elasticsearch")
	v, err := s.Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{7, 10, 2}, v.Segments())
}

func TestVersionMemoized(t *testing.T) {
	creator := &fakeCreator{output: []byte("Version: 6.8.3\n")}
	s := serverWithCreator(creator, "elasticsearch")
	first, err := s.Version(context.Background())
	require.NoError(t, err)
	second, err := s.Version(context.Background())
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, 1, creator.outputCalls)
}

func TestVersionExecutableNotFound(t *testing.T) {
	creator := &fakeCreator{outputErr: &exec.Error{Name: "/no/such/elasticsearch", Err: exec.ErrNotFound}}
	s := serverWithCreator(creator, "/no/such/elasticsearch")
	_, err := s.Version(context.Background())
	var notFound *ExecutableNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "/no/such/elasticsearch", notFound.Path)
	require.Contains(t, err.Error(), "/no/such/elasticsearch")
}

func TestVersionUnrecognizedOutput(t *testing.T) {
	creator := &fakeCreator{output: []byte("OpenSearch 2.11.0 says hello")}
	s := serverWithCreator(creator, "elasticsearch")
	_, err := s.Version(context.Background())
	var badFormat *UnsupportedVersionFormatError
	require.ErrorAs(t, err, &badFormat)
	require.Contains(t, err.Error(), "OpenSearch 2.11.0 says hello")
}

func TestVersionCanceledContext(t *testing.T) {
	path, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}
	s := serverWithCreator(process.NewCreator(path, nil), path)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Version(ctx)
	require.ErrorIs(t, err, context.Canceled)
	var notFound *ExecutableNotFoundError
	require.False(t, errors.As(err, &notFound))
}

func TestVersionQueryNonZeroExit(t *testing.T) {
	path, err := exec.LookPath("false")
	if err != nil {
		t.Skip("false not available")
	}
	s := serverWithCreator(process.NewCreator(path, nil), path)
	_, err = s.Version(context.Background())
	require.Error(t, err)
	// Ran but failed, so neither a missing executable nor a format problem
	var notFound *ExecutableNotFoundError
	require.False(t, errors.As(err, &notFound))
}
