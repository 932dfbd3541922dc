package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// renderMarkdown renders markdown content, using glamour for terminal output or plain text otherwise
func renderMarkdown(markdown string, theme string) (string, error) {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		rendered, err := glamour.Render(markdown, theme)
		if err != nil {
			// Fall back to plain markdown if rendering fails
			return markdown, nil
		}
		return rendered, nil
	}

	// For non-terminal output (pipes, redirects), return plain markdown
	return markdown, nil
}

// printMarkdown renders and prints markdown using the configured theme
func printMarkdown(w io.Writer, markdown string, theme string) error {
	if theme == "" {
		theme = "auto"
	}

	rendered, err := renderMarkdown(markdown, theme)
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(w, rendered)
	return err
}
