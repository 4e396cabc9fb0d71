package main

import (
	"context"
	"flag"
	"log"

	"inkwell/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "path to the config file")
	logLevel := flag.String("log-level", "", "override the configured log level")
	flag.Parse()

	err := daemonrun.Run(context.Background(), daemonrun.Options{
		ConfigPath: *configPath,
		LogLevel:   *logLevel,
	})
	if err != nil {
		log.Fatalf("inkwelld: %v", err)
	}
}
