// Command pagecheck runs the page check battery against the site named in a
// settings file and exits 0 when every check passes, 1 when any check fails
// and 2 when the battery could not run.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var code int
	cmd := newRootCommand(&code, stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "pagecheck: %v\n", err)
		return exitUsage
	}

	return code
}
