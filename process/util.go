package process

import (
	"fmt"
	"strconv"
	"strings"
)

// PidFromFileContents reads a pid file that is written by the search engine
// when it is started with a pid file flag.
func PidFromFileContents(contents string) (int, error) {
	contents = strings.TrimSpace(contents)
	pid, err := strconv.Atoi(contents)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("Invalid pid file contents: %q", contents)
	}
	return pid, nil
}
