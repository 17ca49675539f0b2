// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wingedpig/papertalk/pkg/client"
)

var version = "0.1.0"

const defaultAPI = "http://127.0.0.1:8765"

// commandContext carries global flags to subcommands.
type commandContext struct {
	apiURL     string
	jsonOutput bool
}

func (c *commandContext) client() *client.Client {
	return client.New(c.apiURL)
}

func (c *commandContext) printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	defaultURL := defaultAPI
	if env := os.Getenv("PAPERTALK_API"); env != "" {
		defaultURL = strings.TrimSuffix(env, "/")
	}

	rootCmd := &cobra.Command{
		Use:           "papertalk-ctl",
		Short:         "Inspect and control a running papertalk",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.apiURL, "api", defaultURL, "papertalk API URL (env PAPERTALK_API)")
	rootCmd.PersistentFlags().BoolVar(&ctx.jsonOutput, "json", false, "Print JSON instead of tables")

	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newServicesCommand(ctx))
	rootCmd.AddCommand(newWaitCommand(ctx))
	rootCmd.AddCommand(newQuitCommand(ctx))
	rootCmd.AddCommand(newEventsCommand(ctx))
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the papertalk-ctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "papertalk-ctl %s\n", version)
		},
	})

	return rootCmd
}
