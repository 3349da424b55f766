// # cmd/rustfuse/main.go
package main

import (
	"fmt"
	"os"

	"rustfuse/internal/cli"
	"rustfuse/internal/core/errors"
)

// set via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cli.SetVersion(version)
	if err := cli.Execute(); err != nil {
		if errors.IsCode(err, errors.CodeOperatorCancelled) {
			fmt.Fprintln(os.Stderr, "aborted")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
