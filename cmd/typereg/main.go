// Command typereg loads a type registry from the configured protobuf schema
// sources and uses it to inspect, decode and encode messages by type URL.
package main

import (
	"os"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
