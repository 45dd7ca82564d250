package main

import (
	"os"

	"parquet-oracle/cli"
)

func main() {
	os.Exit(cli.Execute())
}
