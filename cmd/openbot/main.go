// Command openbot runs the chat bot and talks to a running instance over its
// control socket.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "openbot:", err)
		os.Exit(1)
	}
}
