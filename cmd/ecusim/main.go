// Package main is the entry point of the ecusim command.
package main

import "github.com/sarchlab/ecusim/cmd/ecusim/cmd"

func main() {
	cmd.Execute()
}
