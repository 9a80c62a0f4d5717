// Package main is the entry point for the transaction server.
package main

import (
	"os"

	"txserver/cmd"
)

func main() {
	root := cmd.NewRootCmd()
	if err := root.Execute(); err != nil {
		cmd.PrintError(root, err)
		os.Exit(1)
	}
}
