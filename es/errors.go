package es

import (
	"fmt"

	"github.com/hashicorp/go-version"
)

// ExecutableNotFoundError means the configured path does not resolve to a
// runnable program.
type ExecutableNotFoundError struct {
	Path string
	Err  error
}

func (e *ExecutableNotFoundError) Error() string {
	return fmt.Sprintf("%q does not point to an elasticsearch executable: %v", e.Path, e.Err)
}

func (e *ExecutableNotFoundError) Unwrap() error { return e.Err }

// UnsupportedVersionFormatError means the binary ran but printed no
// recognizable version line. The raw output is kept for diagnosis; it does
// not necessarily mean the binary is not elasticsearch.
type UnsupportedVersionFormatError struct {
	Output string
}

func (e *UnsupportedVersionFormatError) Error() string {
	return "Elasticsearch version is not recognized, it is probably not supported. Output is: " + e.Output
}

// UnsupportedVersionError means the detected version is below the supported
// floor. Older binaries use an incompatible flag scheme and are rejected
// before any process is spawned.
type UnsupportedVersionError struct {
	Version *version.Version
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("Elasticsearch %v is not supported, %v or newer is required", e.Version, minVersion)
}
