// Command keyip-admin is the operator-facing CLI for the inference server
// (component M): it talks to a running server's admin HTTP endpoints over
// net/http and has no special privilege a remote caller of the same
// endpoints lacks.
package main

import (
	"os"

	"github.com/turtacn/KeyIP-Intelligence/internal/cli"
)

var (
	version   = "dev"
	gitCommit = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = gitCommit
}

func main() {
	os.Exit(cli.Execute())
}
