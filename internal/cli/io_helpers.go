package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-playground/validator/v10"

	"github.com/gunta/skypilot/internal/app"
	"github.com/gunta/skypilot/internal/config"
	"github.com/gunta/skypilot/internal/model"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	busyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

var validate = validator.New()

// openApp wires the same components the server uses.
func openApp() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(cfg)
}

// stopOnInterrupt stops any active watch on Ctrl-C so the running operation
// can finish with what it has. Call the returned func once done.
func stopOnInterrupt(a *app.App) func() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = a.Orchestrator.CancelPolling(context.Background())
		case <-done:
		}
	}()
	return func() {
		close(done)
		stop()
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func promptConfirm(prompt string) (bool, error) {
	if !stdinIsTTY() {
		return false, errors.New("confirmation required (rerun with --yes in non-interactive mode)")
	}
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func stdinIsTTY() bool {
	return isCharDevice(os.Stdin)
}

func stdoutIsTTY() bool {
	return isCharDevice(os.Stdout)
}

func isCharDevice(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// checkRequest runs struct validation and reports the first failing field.
func checkRequest(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("--%s is required", flagName(field))
	case "oneof":
		return fmt.Errorf("invalid --%s %q (allowed: %s)", flagName(field), fmt.Sprint(fe.Value()), strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Errorf("invalid --%s: failed %s", flagName(field), fe.Tag())
	}
}

func flagName(field string) string {
	switch field {
	case "videoID":
		return "id"
	case "inputReference":
		return "input"
	default:
		return field
	}
}

// requireID takes the video ID from --id or the first positional argument.
func requireID(flagValue string, rest []string) (string, error) {
	id := strings.TrimSpace(flagValue)
	if id == "" && len(rest) > 0 {
		id = strings.TrimSpace(rest[0])
	}
	if id == "" {
		return "", errors.New("--id is required")
	}
	return id, nil
}

func statusStyle(s model.VideoStatus) lipgloss.Style {
	switch s {
	case model.StatusCompleted:
		return okStyle
	case model.StatusFailed:
		return errorStyle
	case model.StatusInProgress:
		return busyStyle
	default:
		return mutedStyle
	}
}

func truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if lipgloss.Width(s) <= width {
		return s
	}
	if width <= 1 {
		return "…"
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
