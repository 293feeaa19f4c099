package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"cryptogram/internal/di"
	"cryptogram/internal/structures"
)

func main() {
	flags := &structures.CliFlags{}
	flag.StringVar(&flags.ConfigPath, "c", "config/cryptogram.yml", "path to the config file")
	flag.BoolVar(&flags.DebugMode, "d", false, "mirror logs to stderr")
	flag.Parse()

	if _, err := di.InitApp(context.Background(), flags); err != nil {
		fmt.Fprintf(os.Stderr, "cryptogramd: %v\n", err)
		os.Exit(1)
	}
}
