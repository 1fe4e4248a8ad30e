package es

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/hashicorp/go-version"
)

// Single-digit major is all the -Vv output ever prints.
var versionPattern = regexp.MustCompile(`Version: (\d)\.(\d+)\.(\d+)`)

// minVersion is the oldest release whose CLI flags commandArgs knows how to
// build.
var minVersion = version.Must(version.NewVersion("6.0.0"))

// Version runs the executable with -Vv and parses the version line from its
// output. The result is cached for the life of the Server; the binary is
// never invoked twice, even if it changes on disk.
func (s *Server) Version(ctx context.Context) (*version.Version, error) {
	if s.version != nil {
		return s.version, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	out, err := s.creator.Output(ctx, "-Vv")
	if err != nil {
		// A canceled or expired context is the caller's doing, not a
		// missing binary
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// The binary ran and failed, which is a different complaint than
			// not resolving at all
			return nil, fmt.Errorf("Version query failed: %v (stderr: %s)", err, exitErr.Stderr)
		}
		return nil, &ExecutableNotFoundError{Path: s.conf.ExePath, Err: err}
	}
	match := versionPattern.FindStringSubmatch(string(out))
	if match == nil {
		return nil, &UnsupportedVersionFormatError{Output: string(out)}
	}
	v, err := version.NewVersion(strings.Join(match[1:], "."))
	if err != nil {
		return nil, &UnsupportedVersionFormatError{Output: string(out)}
	}
	s.version = v
	return v, nil
}
