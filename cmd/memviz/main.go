package main

import (
	"os"

	"github.com/go-delve/memviz/cmd/memviz/cmds"
	"github.com/go-delve/memviz/pkg/version"
)

// Build is the git sha of this binaries build.
var Build string

func main() {
	if Build != "" {
		version.MemvizVersion.Build = Build
	}
	if err := cmds.New(false).Execute(); err != nil {
		os.Exit(1)
	}
}
