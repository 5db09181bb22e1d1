// Package clipboard copies exported BibTeX to the system clipboard via the
// platform's clipboard command.
package clipboard

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// ErrClipboardUnavailable is returned when no clipboard command is installed.
var ErrClipboardUnavailable = errors.New("clipboard unavailable")

// command is one clipboard writer invocation.
type command struct {
	name string
	args []string
}

// candidates lists clipboard writers per OS in order of preference.
var candidates = map[string][]command{
	"darwin": {{name: "pbcopy"}},
	"linux": {
		{name: "wl-copy"},
		{name: "xclip", args: []string{"-selection", "clipboard"}},
		{name: "xsel", args: []string{"--clipboard", "--input"}},
	},
	"windows": {{name: "clip"}},
}

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// find returns the first installed clipboard command for goos.
func find(goos string) (command, bool) {
	for _, c := range candidates[goos] {
		if _, err := lookPath(c.name); err == nil {
			return c, true
		}
	}
	return command{}, false
}

// Tool returns the name of the clipboard command that Copy would use, or
// "" if none is installed.
func Tool() string {
	c, ok := find(runtime.GOOS)
	if !ok {
		return ""
	}
	return c.name
}

// Copy writes text to the system clipboard.
func Copy(ctx context.Context, text string) error {
	c, ok := find(runtime.GOOS)
	if !ok {
		return ErrClipboardUnavailable
	}

	cmd := exec.CommandContext(ctx, c.name, c.args...)
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", c.name, err, strings.TrimSpace(string(out)))
	}
	return nil
}
