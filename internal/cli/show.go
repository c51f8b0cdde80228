package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/engine"
	"github.com/roach88/rewind/internal/history"
	"github.com/roach88/rewind/internal/snapshot"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	At int64
}

// StateResult is a reconstructed state at one position.
type StateResult struct {
	Scope    string          `json:"scope"`
	Position int64           `json:"position"`
	State    json.RawMessage `json:"state"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <scope>",
		Short: "Print the state of a scope at a position",
		Long: `Reconstruct and print the state of a scope. Without --at the newest
state is shown.

Exit codes:
  0 - State printed
  1 - The stored history cannot be replayed up to the position
  2 - Command error (unknown scope or position, database not found, etc.)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, cmd, args[0])
		},
	}

	cmd.Flags().Int64Var(&opts.At, "at", -1, "entry position to show (default: newest)")

	return cmd
}

func runShow(opts *ShowOptions, cmd *cobra.Command, scope string) error {
	ctx := context.Background()

	log, err := openLog(opts.RootOptions)
	if err != nil {
		return err
	}
	defer log.Close()

	entries, err := log.LoadAll(ctx, scope)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load history", err)
	}
	if len(entries) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no history for scope %q", scope))
	}

	target := len(entries) - 1
	if cmd.Flags().Changed("at") {
		target = indexOf(entries, opts.At)
		if target < 0 {
			return NewExitError(ExitCommandError,
				fmt.Sprintf("scope %q has no entry at position %d", scope, opts.At))
		}
	}

	state, err := engine.Reconstruct(entries, target)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to reconstruct state", err)
	}

	result, err := stateResult(scope, entries[target].Position, state)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode state", err)
	}
	return printState(opts.RootOptions, cmd, result)
}

func indexOf(entries []history.Entry, position int64) int {
	for i, e := range entries {
		if e.Position == position {
			return i
		}
	}
	return -1
}

func stateResult(scope string, position int64, state snapshot.Value) (StateResult, error) {
	data, err := snapshot.Marshal(state)
	if err != nil {
		return StateResult{}, err
	}
	return StateResult{Scope: scope, Position: position, State: data}, nil
}

func printState(opts *RootOptions, cmd *cobra.Command, result StateResult) error {
	out := opts.formatter(cmd)
	if out.JSON() {
		return out.Success(result)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(result.State))
	return nil
}
