// Command manifestctl lints render.yaml and checks a shell environment
// against the variables it declares.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr, os.LookupEnv).Execute(); err != nil {
		os.Exit(1)
	}
}
