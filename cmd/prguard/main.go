package main

import (
	"os"

	"github.com/dshills/prguard/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
