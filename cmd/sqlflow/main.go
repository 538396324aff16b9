// Command sqlflow is the SQL-first data pipeline CLI.
package main

import (
	"fmt"
	"os"

	"github.com/giaosudau/sqlflow/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
