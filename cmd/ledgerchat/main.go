package main

import (
	"os"

	"github.com/ledgerchat/ledgerchat/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
