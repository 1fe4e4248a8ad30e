package tests

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fixturelab/estest/es"
	"github.com/fixturelab/estest/process"
	"github.com/fixturelab/estest/supervisor"
)

// buildStubSearch compiles the stub binary into a temp dir. Requires the go
// tool, so these tests are skipped in -short mode.
func buildStubSearch(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping stub binary tests in short mode")
	}
	bin := filepath.Join(t.TempDir(), "stubsearch")
	cmd := exec.Command("go", "build", "-o", bin, "./stubsearch")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "go build failed: %s", out)
	return bin
}

func TestStubLifecycle(t *testing.T) {
	bin := buildStubSearch(t)
	metrics := supervisor.NewPrometheusCollector("")
	s, err := es.Start(context.Background(), &es.Config{
		ExePath:      bin,
		StartTimeout: 30 * time.Second,
		TempDirBase:  t.TempDir(),
		Auth:         &es.Credentials{Login: "elastic", Password: "secret"},
		Metrics:      metrics,
	})
	require.NoError(t, err)
	defer s.Close()

	require.True(t, s.Running())

	// Version came from the binary's -Vv output and is memoized
	v, err := s.Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{7, 10, 2}, v.Segments())

	// The binary wrote its pid where we asked it to
	pid, err := s.Pid()
	require.NoError(t, err)
	require.Equal(t, s.Supervisor.Pid(), pid)

	// The server answers and saw the auth header on the readiness probe
	req, err := http.NewRequest(http.MethodGet, s.URL(), nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", es.Credentials{Login: "elastic", Password: "secret"}.Header())
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "cluster_name")
	require.Equal(t, "Basic ZWxhc3RpYzpzZWNyZXQ=", resp.Header.Get("X-Seen-Authorization"))

	require.NoError(t, s.Close())
	require.False(t, s.Running())

	// Process is gone and the port is free again
	require.Eventually(t, func() bool {
		return syscall.Kill(pid, syscall.Signal(0)) != nil
	}, 10*time.Second, 100*time.Millisecond)
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%v", s.Port()))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	// Temp dir was removed on close
	_, err = os.Stat(s.TempDir)
	require.True(t, s.TempDir == "" || os.IsNotExist(err))

	// The collector saw the start, the probes and the stop
	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

// recordingCreator wraps the real creator and remembers spawned processes so
// the test can check on them after a failed start.
type recordingCreator struct {
	process.Creator
	procs []process.Process
}

func (r *recordingCreator) New(ctx context.Context, args ...string) (process.Process, error) {
	p, err := r.Creator.New(ctx, args...)
	if err == nil {
		r.procs = append(r.procs, p)
	}
	return p, err
}

func TestStubStartTimeoutLeavesNoProcess(t *testing.T) {
	bin := buildStubSearch(t)
	creator := &recordingCreator{Creator: process.NewCreator(bin, nil)}
	_, err := es.Start(context.Background(), &es.Config{
		ExePath:        bin,
		Creator:        creator,
		IndexStoreType: "hold-readiness", // stub never binds its port
		StartTimeout:   2 * time.Second,
		TempDirBase:    t.TempDir(),
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "not ready within")
	require.Len(t, creator.procs, 1)
	require.Eventually(t, func() bool {
		return creator.procs[0].Signal(syscall.Signal(0)) != nil
	}, 10*time.Second, 100*time.Millisecond)
}

func TestStubNoAuth(t *testing.T) {
	bin := buildStubSearch(t)
	s, err := es.Start(context.Background(), &es.Config{
		ExePath:      bin,
		StartTimeout: 30 * time.Second,
		TempDirBase:  t.TempDir(),
	})
	require.NoError(t, err)
	defer s.Close()
	require.True(t, s.Running())

	resp, err := http.Get(s.URL())
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Empty(t, resp.Header.Get("X-Seen-Authorization"))
}

func TestRealElasticsearch(t *testing.T) {
	ctx := NewTestContext(t, nil)
	defer ctx.Close()
	ctx.Require.True(ctx.Server.Running())
	resp, err := http.Get(ctx.Server.URL())
	ctx.Require.NoError(err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	ctx.Require.NoError(err)
	ctx.Require.Contains(string(body), "cluster_name")
}
