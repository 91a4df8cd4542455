package clipboard

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

var ErrToolNotFound = errors.New("clipboard tool not found")

type Command struct {
	Path string
	Args []string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Path + " " + strings.Join(c.Args, " "))
}

type candidate struct {
	name string
	args []string
}

// Candidates per platform, in preference order. clip.exe covers WSL.
var candidates = map[string][]candidate{
	"darwin": {{name: "pbcopy"}},
	"linux": {
		{name: "wl-copy"},
		{name: "xclip", args: []string{"-selection", "clipboard"}},
		{name: "xsel", args: []string{"--clipboard", "--input"}},
		{name: "clip.exe"},
	},
	"windows": {{name: "clip.exe"}},
}

func SelectCommand(goos string, lookPath func(string) (string, error)) (Command, error) {
	for _, c := range candidates[goos] {
		if path, err := lookPath(c.name); err == nil {
			return Command{Path: path, Args: c.args}, nil
		}
	}
	return Command{}, ErrToolNotFound
}

// Copy writes text to the system clipboard using the first available tool.
func Copy(ctx context.Context, text string) error {
	cmdDef, err := SelectCommand(runtime.GOOS, exec.LookPath)
	if err != nil {
		return err
	}
	return run(ctx, cmdDef, text)
}

func run(ctx context.Context, cmdDef Command, text string) error {
	cmd := exec.CommandContext(ctx, cmdDef.Path, cmdDef.Args...)
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("clipboard command %s failed: %w: %s", cmdDef, err, msg)
		}
		return fmt.Errorf("clipboard command %s failed: %w", cmdDef, err)
	}
	return nil
}
