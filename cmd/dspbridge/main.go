package main

import (
	"context"
	"os"

	"github.com/pterm/pterm"

	"github.com/gear6io/dspbridge/cli"
	"github.com/gear6io/dspbridge/pkg/errors"
)

func main() {
	if err := cli.ExecuteWithContext(context.Background()); err != nil {
		pterm.Error.Println(err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for bad invocations, 3 when the bridge could not start and 1
// otherwise.
func exitCode(err error) int {
	switch errors.ScopeOf(err) {
	case errors.ScopeUsage:
		return 2
	case errors.ScopeProcess:
		return 3
	default:
		return 1
	}
}
