// Package main is the entry point for the irmut CLI.
package main

import "irmut.dev/pkg/irmut/cmd"

func main() {
	cmd.Execute()
}
