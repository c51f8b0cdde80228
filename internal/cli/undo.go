package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/engine"
)

// UndoOptions holds flags for the undo command.
type UndoOptions struct {
	*RootOptions
	Steps int
	Redo  int
}

// UndoResult is the output of the undo command.
type UndoResult struct {
	StateResult
	Undone int `json:"undone"`
	Redone int `json:"redone"`
}

// NewUndoCommand creates the undo command.
func NewUndoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UndoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "undo <scope>",
		Short: "Walk back through a scope's history and print the state",
		Long: `Load a scope, undo --steps entries, then redo --redo entries, and print
the resulting state. The cursor is not stored, so the walk does not
change the history.

Exit codes:
  0 - State printed
  1 - The stored history is corrupt
  2 - Command error

Examples:
  rewind undo doc-42
  rewind undo doc-42 --steps 3 --redo 1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUndo(opts, cmd, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.Steps, "steps", 1, "entries to undo")
	cmd.Flags().IntVar(&opts.Redo, "redo", 0, "entries to redo after undoing")

	return cmd
}

func runUndo(opts *UndoOptions, cmd *cobra.Command, scope string) error {
	ctx := context.Background()

	if opts.Steps < 0 || opts.Redo < 0 {
		return NewExitError(ExitCommandError, "--steps and --redo must not be negative")
	}

	sess, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer sess.Close(ctx)

	s, err := sess.engine.Open(ctx, scope)
	if err != nil {
		return historyError(err)
	}
	if s.Len() == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no history for scope %q", scope))
	}

	result := UndoResult{}
	for range opts.Steps {
		_, ok, err := s.Undo(ctx)
		if err != nil {
			return historyError(err)
		}
		if !ok {
			break
		}
		result.Undone++
	}
	for range opts.Redo {
		_, ok, err := s.Redo(ctx)
		if err != nil {
			return historyError(err)
		}
		if !ok {
			break
		}
		result.Redone++
	}
	opts.Logger.Debug("walked history", "scope", scope, "undone", result.Undone, "redone", result.Redone)

	entries := s.Entries()
	result.StateResult, err = stateResult(scope, entries[s.Current()].Position, s.State())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode state", err)
	}

	out := opts.formatter(cmd)
	if out.JSON() {
		return out.Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Undid %d, redid %d; at position %d.\n", result.Undone, result.Redone, result.Position)
	fmt.Fprintln(w, string(result.State))
	return nil
}

// historyError maps an engine error to an exit code.
func historyError(err error) error {
	if engine.IsConsistencyError(err) {
		return WrapExitError(ExitFailure, "history is corrupt", err)
	}
	return WrapExitError(ExitCommandError, "failed to load history", err)
}
