// Command mentorhub is the terminal client and browser gateway for MentorHub.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	fcolor "github.com/fatih/color"

	"mentorhub/internal/client"
	"mentorhub/internal/dashboard"
)

func main() {
	cmd := newRootCmd(newCLI(os.Stdin, os.Stdout, os.Stderr))
	if err := cmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError writes err with a hint for the failures a user can act on.
func printError(w io.Writer, err error) {
	red := fcolor.New(fcolor.FgRed)
	red.Fprintf(w, "✗ %s\n", client.Message(err))

	switch {
	case errors.Is(err, errNotLoggedIn), errors.Is(err, client.ErrUnauthorized):
		fmt.Fprintln(w, "  run `mentorhub login` first")
	case errors.Is(err, dashboard.ErrActionUnavailable):
		fmt.Fprintln(w, "  the session changed; run `mentorhub sessions` to see its current state")
	case client.IsRetryable(err):
		fmt.Fprintln(w, "  the backend is unreachable; try again shortly")
	}
}
