// The main package for the crawlerpanel executable.
package main

import (
	"github.com/JakeFAU/mediacrawler-panel/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
