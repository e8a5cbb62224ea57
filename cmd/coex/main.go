package main

import (
	"os"

	"github.com/lydakis/coex/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
