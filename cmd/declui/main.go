// Command declui is the developer tool for declarative UI documents.
package main

import (
	"os"

	"github.com/go-drift/declui/cmd/declui/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
