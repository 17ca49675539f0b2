// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/wingedpig/papertalk/internal/app"
	"github.com/wingedpig/papertalk/internal/config"
)

var (
	version = "0.1.0"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := runInit(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	var (
		configPath  string
		host        string
		port        int
		showVersion bool
		debug       bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file (default: auto-detect, then built-in services)")
	flag.StringVar(&configPath, "c", "", "Path to config file (short)")
	flag.StringVar(&host, "host", "", "Control API host (overrides config)")
	flag.IntVar(&port, "port", 0, "Control API port (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.BoolVar(&showVersion, "v", false, "Show version (short)")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.Parse()

	if showVersion {
		fmt.Printf("papertalk %s\n", version)
		os.Exit(0)
	}

	opts := app.Options{
		ConfigPath: configPath,
		Host:       host,
		Port:       port,
		Debug:      debug,
		Version:    version,
	}
	if configPath == "" {
		found, err := config.NewLoader().FindConfig()
		if err != nil {
			fmt.Fprintln(os.Stderr, "No config file found, using built-in services")
			opts.Config = config.Default()
		} else {
			opts.ConfigPath = found
		}
	}

	application, err := app.New(opts)
	if err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintf(os.Stderr, "Invalid configuration:\n%v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		}
		os.Exit(1)
	}

	if err := application.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runInit handles "papertalk init".
func runInit(args []string) error {
	initFlags := flag.NewFlagSet("init", flag.ContinueOnError)
	force := initFlags.Bool("force", false, "Overwrite an existing config file")
	path := initFlags.String("o", "papertalk.hjson", "File to write")
	initFlags.Usage = func() {
		fmt.Fprintln(initFlags.Output(), `Usage: papertalk init [options]

Write a commented papertalk.hjson describing the default stack
(ollama, llama-stack and the backend API) to edit as needed.

Options:`)
		initFlags.PrintDefaults()
	}
	if err := initFlags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if _, err := os.Stat(*path); err == nil && !*force {
		return fmt.Errorf("%s already exists; use -force to overwrite", *path)
	}

	if err := os.WriteFile(*path, []byte(config.SampleHJSON), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Wrote %s\n", *path)
	fmt.Println("Run: papertalk")
	return nil
}
