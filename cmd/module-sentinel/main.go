// module-sentinel extracts a semantic code graph from multi-language
// repositories and serves it to reports, dashboards and MCP clients.
package main

import (
	"os"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
