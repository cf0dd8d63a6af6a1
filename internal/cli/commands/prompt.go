package commands

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"
)

// readSecret prompts on the terminal without echo. Piped stdin is refused so scripts fail fast.
func readSecret(label, hint string) (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("%s is required in non-interactive mode (%s)", label, hint)
	}

	fmt.Fprintf(os.Stderr, "%s: ", label)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // New line after password input
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", label, err)
	}
	return string(b), nil
}
