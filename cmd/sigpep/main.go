// SigPep - signature transition finder
package main

import (
	"fmt"
	"os"

	"github.com/nielshulstaert/compomics-sigpep/cmd/sigpep/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
