// Command sdactl generates agent keys and runs local secure aggregation rounds.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
