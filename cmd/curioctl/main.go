package main

import (
	"os"

	"github.com/curiolabs/curio/internal/cli"
)

func main() {
	os.Exit(int(cli.Run()))
}
