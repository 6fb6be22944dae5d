// Package vrutil collects small helpers shared by the Velociraptor client
// libraries: shelling out, file hashing, filesystem ownership, and locks.
package vrutil

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os/exec"
	"strings"

	"github.com/datawire/dlib/dexec"
)

// CommandError reports a command that exited non-zero, including its
// combined output.
type CommandError struct {
	Result *CommandResult
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q failed with status code %d\noutput: %s",
		e.Result.Command, e.Result.StatusCode, e.Result.Output)
}

// CommandResult holds the combined stdout+stderr and exit status of a
// finished command.
type CommandResult struct {
	Command    string
	Output     string
	StatusCode int
}

func (r *CommandResult) String() string {
	return fmt.Sprintf("<CommandResult: %d,%s>", r.StatusCode, r.Command)
}

// Err returns a *CommandError if the command exited non-zero, and nil
// otherwise.
func (r *CommandResult) Err() error {
	if r.StatusCode != 0 {
		return &CommandError{Result: r}
	}
	return nil
}

// Run executes a shell command, capturing stdout and stderr as a single
// stream along with the exit status.  The command and its output go to the
// ctx logger (that's dexec's doing).
//
// An error is returned only if the command could not be run at all;
// a non-zero exit lands in CommandResult.StatusCode so that callers can
// decide via Err().
func Run(ctx context.Context, command string) (*CommandResult, error) {
	cmd := dexec.CommandContext(ctx, "sh", "-c", command)
	out, err := cmd.CombinedOutput()
	result := &CommandResult{
		Command: command,
		Output:  string(out),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, err
		}
		result.StatusCode = exitErr.ExitCode()
	}
	return result, nil
}

// RandChars returns n random lowercase ASCII letters, for use as throwaway
// file and directory names.
func RandChars(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteByte(letters[rand.Intn(len(letters))])
	}
	return sb.String()
}
