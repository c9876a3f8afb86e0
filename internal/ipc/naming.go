package ipc

import (
	"fmt"
	"os"
)

// WellKnownName derives the endpoint name a client uses to find this
// server: a dotfile under /tmp keyed by prefix and pid, mirroring the
// original agent's make_file_name("/tmp/.%s", ...) convention.
func WellKnownName(prefix string, pid int) string {
	return fmt.Sprintf("/tmp/.%s-%d", prefix, pid)
}

// Exists reports whether a server endpoint is currently bound for the
// given prefix and pid, without attempting to connect to it.
func Exists(prefix string, pid int) bool {
	_, err := os.Stat(WellKnownName(prefix, pid))
	return err == nil
}
