package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/engine"
)

// PushOptions holds flags for the push command.
type PushOptions struct {
	*RootOptions
	Message string
}

// PushResult is the output of the push command.
type PushResult struct {
	Scope    string `json:"scope"`
	Pushed   bool   `json:"pushed"`
	Position int64  `json:"position"`
	Entries  int    `json:"entries"`
}

// NewPushCommand creates the push command.
func NewPushCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PushOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "push <scope> <file.json>",
		Short: "Record a JSON document as the newest state of a scope",
		Long: `Record a JSON document as the newest state of a scope. Use "-" to
read the document from stdin. A document equal to the newest state
records nothing.

Examples:
  rewind push doc-42 state.json -m "rename title"
  cat state.json | rewind push doc-42 -`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPush(opts, cmd, args[0], args[1])
		},
	}

	cmd.Flags().StringVarP(&opts.Message, "message", "m", "", "entry description")

	return cmd
}

func runPush(opts *PushOptions, cmd *cobra.Command, scope, path string) error {
	ctx := context.Background()

	data, err := readDocument(cmd, path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read document", err)
	}
	if !json.Valid(data) {
		return NewExitError(ExitCommandError, fmt.Sprintf("%s is not valid JSON", path))
	}

	sess, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer sess.Close(ctx)

	s, err := sess.engine.Open(ctx, scope)
	switch {
	case engine.IsConsistencyError(err):
		// The push below starts a fresh history.
		opts.Logger.Warn("stored history discarded", "scope", scope, "error", err)
	case err != nil:
		return WrapExitError(ExitCommandError, "failed to load history", err)
	}

	pushed, err := s.Push(ctx, json.RawMessage(data), opts.Message)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to push", err)
	}
	if err := s.Sync(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to write history", err)
	}

	entries := s.Entries()
	result := PushResult{
		Scope:    scope,
		Pushed:   pushed,
		Position: entries[len(entries)-1].Position,
		Entries:  len(entries),
	}

	out := opts.formatter(cmd)
	if out.JSON() {
		return out.Success(result)
	}

	w := cmd.OutOrStdout()
	if !pushed {
		fmt.Fprintf(w, "No change; %s is still at position %d.\n", scope, result.Position)
		return nil
	}
	fmt.Fprintf(w, "Pushed %s at position %d (%d entries).\n", scope, result.Position, result.Entries)
	return nil
}

func readDocument(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}
