package main

import (
	"fmt"
	"os"

	"github.com/awnumar/memguard"

	"github.com/fahmaliyi/keyvault/cli"
)

func main() {
	// Wipe locked buffers on Ctrl-C.
	memguard.CatchInterrupt()

	code := run(os.Args[1:])
	memguard.Purge()
	os.Exit(code)
}

func run(args []string) int {
	cfg, err := cli.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading configuration:", err)
		return 1
	}

	app := cli.NewApp(cfg)
	defer app.Close()
	return app.Run(args)
}
