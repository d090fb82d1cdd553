// Command indexer runs area indexing and reindexing from the shell against
// the same store the API uses.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(newRunner).Execute(); err != nil {
		os.Exit(1)
	}
}
