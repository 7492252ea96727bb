package main

import (
	"os"

	"github.com/kailas-cloud/neuralquery/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
