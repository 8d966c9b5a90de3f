// Package opener hands generated files to the desktop's default application.
package opener

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Command returns the OS command that opens path.
func Command(goos, path string) (*exec.Cmd, error) {
	switch goos {
	case "darwin":
		return exec.Command("open", path), nil
	case "windows":
		return exec.Command("cmd", "/c", "start", "", path), nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return exec.Command("xdg-open", path), nil
	default:
		return nil, fmt.Errorf("opening files is not supported on %s", goos)
	}
}

// Open starts the viewer without waiting for it to exit.
func Open(path string) error {
	cmd, err := Command(runtime.GOOS, path)
	if err != nil {
		return err
	}
	return cmd.Start()
}
