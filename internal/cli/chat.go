// Package cli implements the interactive terminal chat loop.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/parley-ai/parley/internal/session"
)

const welcome = `Parley — conversational assistant
Type a message and press Enter. Commands: /clear resets the conversation,
/help shows this text, /exit or /quit leaves.`

// Run drives a read-eval-print loop over the assistant until the input
// stream ends, an exit command is entered or ctx is cancelled. Input is
// read on a separate goroutine so cancellation takes effect even while a
// read is blocked on the terminal.
func Run(ctx context.Context, assistant *session.Assistant, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, welcome)

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
		close(lines)
	}()

	for {
		fmt.Fprint(out, "\nYou: ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\nBye!")
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out, "\nBye!")
				return <-readErr
			}
			line = l
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "/exit", "/quit":
			fmt.Fprintln(out, "Bye!")
			return nil
		case "/help":
			fmt.Fprintln(out, welcome)
			continue
		case "/clear":
			assistant.Reset()
			fmt.Fprintln(out, "Conversation history cleared.")
			continue
		}

		fmt.Fprintf(out, "\nAssistant: %s\n", assistant.Send(ctx, line))
	}
}
