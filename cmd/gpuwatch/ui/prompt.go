package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNoInteraction is returned when a prompt is required but the terminal is
// non-interactive.
var ErrNoInteraction = errors.New("interactive confirmation required (use --yes to skip)")

// Confirm asks a yes/no question on stderr and reads the answer from stdin.
// Anything other than y/yes declines.
func Confirm(question string) (bool, error) {
	if !IsInteractive() {
		return false, ErrNoInteraction
	}

	fmt.Fprint(os.Stderr, AccentStyle.Render("?")+" "+question+" "+MutedStyle.Render("[y/N]")+" ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read confirmation: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
