// Command nurchat is a terminal client for the assistant chat platform.
package main

import "github.com/nurlabs/nurchat/internal/commands"

func main() {
	commands.Execute()
}
