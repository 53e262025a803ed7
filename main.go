package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-authgate/accountgate/internal/bootstrap"
	"github.com/go-authgate/accountgate/internal/config"
	"github.com/go-authgate/accountgate/internal/version"
)

type command struct {
	summary string
	run     func(cfg *config.Config) error
}

var commands = map[string]command{
	"server": {
		summary: "Start the AccountGate HTTP server",
		run:     bootstrap.Run,
	},
	"check-config": {
		summary: "Load and validate configuration, then exit",
		run:     checkConfig,
	},
}

func main() {
	var showVersion bool
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.Usage = printUsage
	flag.Parse()

	if showVersion {
		version.PrintVersion()
		return
	}

	if flag.NArg() == 0 {
		printUsage()
		os.Exit(1)
	}

	name := flag.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}
	if err := cmd.run(config.Load()); err != nil {
		log.Fatalf("%s: %v", name, err)
	}
}

func checkConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	fmt.Printf("Configuration OK (database=%s, base_url=%s)\n", cfg.DatabaseDriver, cfg.BaseURL)
	return nil
}

func printUsage() {
	fmt.Printf("Usage: %s [OPTIONS] COMMAND\n\n", os.Args[0])
	fmt.Println("Account and session management server")
	fmt.Println("\nCommands:")
	for _, name := range []string{"server", "check-config"} {
		fmt.Printf("  %-14s %s\n", name, commands[name].summary)
	}
	fmt.Println("\nOptions:")
	fmt.Println("  -v, --version    Show version information")
	fmt.Println("  -h, --help       Show this help message")
}
