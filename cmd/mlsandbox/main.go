// Package main is the mlsandbox command line tool.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "mlsandbox: %v\n", err)
		os.Exit(1)
	}
}
