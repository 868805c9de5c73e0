// Package notify plays a short sound when a video finishes.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"time"
)

// Command is one player invocation to try.
type Command struct {
	Name string
	Args []string
}

// Chime tries each player command in turn and rings the terminal bell when
// none of them works.
type Chime struct {
	Enabled  bool
	Commands []Command
	Bell     io.Writer
	run      func(ctx context.Context, c Command) error
}

func NewChime(enabled bool) *Chime {
	return &Chime{
		Enabled:  enabled,
		Commands: PlatformCommands(runtime.GOOS),
		Bell:     os.Stdout,
		run:      runCommand,
	}
}

// PlatformCommands lists the players known to exist on goos.
func PlatformCommands(goos string) []Command {
	switch goos {
	case "darwin":
		return []Command{{Name: "afplay", Args: []string{"/System/Library/Sounds/Ping.aiff"}}}
	case "windows":
		return []Command{{Name: "powershell", Args: []string{
			"-NoProfile", "-Command",
			"[console]::beep(880,200); Start-Sleep -Milliseconds 50; [console]::beep(660,200)",
		}}}
	default:
		return []Command{
			{Name: "paplay", Args: []string{"/usr/share/sounds/freedesktop/stereo/complete.oga"}},
			{Name: "aplay", Args: []string{"/usr/share/sounds/alsa/Front_Center.wav"}},
		}
	}
}

func runCommand(ctx context.Context, c Command) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, c.Name, c.Args...).Run(); err != nil {
		return fmt.Errorf("%s: %w", c.Name, err)
	}
	return nil
}

// Play is best effort and never returns an error.
func (c *Chime) Play(ctx context.Context) {
	if c == nil || !c.Enabled {
		return
	}
	for _, cmd := range c.Commands {
		if err := c.run(ctx, cmd); err == nil {
			return
		}
	}
	if c.Bell != nil {
		_, _ = io.WriteString(c.Bell, "\a")
	}
}
