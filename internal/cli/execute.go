package cli

import (
	"context"
	"errors"
	"io"
	"slices"
)

// Execute runs the CLI with args and returns the process exit code. Errors
// are reported on stderr, or on stdout as a JSON error response when
// --format json is in effect.
func Execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(context.Background())
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Reported {
		return exitErr.Code
	}
	f := &OutputFormatter{Format: "text", Writer: stderr}
	if jsonRequested(args) {
		f = &OutputFormatter{Format: "json", Writer: stdout}
	}
	_ = f.Error(GetErrorKind(err), err.Error(), nil)
	return GetExitCode(err)
}

// jsonRequested reports whether args select JSON output. The flag is read
// from args because a failing command may never have parsed its flags.
func jsonRequested(args []string) bool {
	if slices.Contains(args, "--format=json") {
		return true
	}
	i := slices.Index(args, "--format")
	return i >= 0 && i+1 < len(args) && args[i+1] == "json"
}
