package clipboard

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func lookPathFrom(found map[string]string) func(string) (string, error) {
	return func(name string) (string, error) {
		if p, ok := found[name]; ok {
			return p, nil
		}
		return "", errors.New("not found")
	}
}

func TestSelectCommand(t *testing.T) {
	tests := []struct {
		name     string
		goos     string
		found    map[string]string
		wantPath string
		wantArgs []string
	}{
		{
			name:     "darwin pbcopy",
			goos:     "darwin",
			found:    map[string]string{"pbcopy": "/usr/bin/pbcopy"},
			wantPath: "/usr/bin/pbcopy",
		},
		{
			name:     "linux prefers wl-copy",
			goos:     "linux",
			found:    map[string]string{"wl-copy": "/usr/bin/wl-copy", "xclip": "/usr/bin/xclip"},
			wantPath: "/usr/bin/wl-copy",
		},
		{
			name:     "linux falls back to xclip",
			goos:     "linux",
			found:    map[string]string{"xclip": "/usr/bin/xclip", "xsel": "/usr/bin/xsel"},
			wantPath: "/usr/bin/xclip",
			wantArgs: []string{"-selection", "clipboard"},
		},
		{
			name:     "linux falls back to xsel",
			goos:     "linux",
			found:    map[string]string{"xsel": "/usr/bin/xsel"},
			wantPath: "/usr/bin/xsel",
			wantArgs: []string{"--clipboard", "--input"},
		},
		{
			name:     "wsl clip.exe",
			goos:     "linux",
			found:    map[string]string{"clip.exe": "/mnt/c/Windows/system32/clip.exe"},
			wantPath: "/mnt/c/Windows/system32/clip.exe",
		},
		{
			name:     "windows",
			goos:     "windows",
			found:    map[string]string{"clip.exe": `C:\Windows\system32\clip.exe`},
			wantPath: `C:\Windows\system32\clip.exe`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := SelectCommand(tt.goos, lookPathFrom(tt.found))
			if err != nil {
				t.Fatalf("expected command, got error: %v", err)
			}
			if cmd.Path != tt.wantPath {
				t.Fatalf("path = %q, want %q", cmd.Path, tt.wantPath)
			}
			if len(cmd.Args) != len(tt.wantArgs) {
				t.Fatalf("args = %#v, want %#v", cmd.Args, tt.wantArgs)
			}
			for i := range tt.wantArgs {
				if cmd.Args[i] != tt.wantArgs[i] {
					t.Fatalf("args = %#v, want %#v", cmd.Args, tt.wantArgs)
				}
			}
		})
	}
}

func TestSelectCommandUnavailable(t *testing.T) {
	for _, goos := range []string{"linux", "darwin", "plan9"} {
		_, err := SelectCommand(goos, lookPathFrom(nil))
		if !errors.Is(err, ErrToolNotFound) {
			t.Fatalf("%s: expected ErrToolNotFound, got %v", goos, err)
		}
	}
}

func TestRunPipesTextToCommand(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	out := filepath.Join(t.TempDir(), "clip.txt")
	cmd := Command{Path: sh, Args: []string{"-c", "cat > " + out}}

	if err := run(context.Background(), cmd, "copied text"); err != nil {
		t.Fatalf("run: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "copied text" {
		t.Fatalf("clipboard got %q", data)
	}
}

func TestRunReportsFailure(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	err = run(context.Background(), Command{Path: sh, Args: []string{"-c", "echo nope >&2; exit 3"}}, "x")
	if err == nil {
		t.Fatal("expected error")
	}
}
