// Package main is the entry point for the arcachectl CLI.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(openRedis).Execute(); err != nil {
		os.Exit(1)
	}
}
