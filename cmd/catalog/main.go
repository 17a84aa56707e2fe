// Command catalog searches the product catalog and warms the local artifact
// cache from the command line, or serves the catalog flows as a local HTTP API.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
