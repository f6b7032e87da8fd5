// Command fragelab is the fragment-elaboration CLI. It runs the pipeline
// in-process against a local library, or talks to a running apiserver when
// --server is set.
package main

import (
	"os"

	"github.com/molforge/fragelab/internal/interfaces/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
