package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// newSecretReader reads secrets without echo when in is a terminal and as
// plain lines otherwise, so piped input and tests work the same way.
func newSecretReader(in io.Reader, lines *bufio.Reader, out io.Writer) func(string) ([]byte, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		return func(prompt string) ([]byte, error) {
			fmt.Fprint(out, prompt)
			pw, err := term.ReadPassword(fd)
			fmt.Fprintln(out)
			return pw, err
		}
	}
	return func(prompt string) ([]byte, error) {
		fmt.Fprint(out, prompt)
		line, err := lines.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return nil, err
		}
		return []byte(strings.TrimRight(line, "\r\n")), nil
	}
}

// prompt reads one trimmed line. io.EOF is returned only when nothing was read.
func (a *App) prompt(label string) (string, error) {
	fmt.Fprint(a.out, label)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptDefault shows the current value and keeps it on empty input.
func (a *App) promptDefault(label, current string) (string, error) {
	v, err := a.prompt(fmt.Sprintf("%s [%s]: ", label, current))
	if err != nil {
		return "", err
	}
	if v == "" {
		return current, nil
	}
	return v, nil
}

// promptText reads lines until one holding a single ".".
func (a *App) promptText(label string) (string, error) {
	fmt.Fprintf(a.out, "%s (end with a line containing only '.'):\n", label)
	var lines []string
	for {
		line, err := a.in.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "." {
			break
		}
		if line != "" {
			lines = append(lines, trimmed)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}
	}
	return strings.Join(lines, "\n"), nil
}

func (a *App) confirm(question string) bool {
	v, err := a.prompt(question + " [y/N]: ")
	if err != nil {
		return false
	}
	v = strings.ToLower(v)
	return v == "y" || v == "yes"
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
