// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wingedpig/papertalk/pkg/client"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show lifecycle state and readiness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := ctx.client()
			lc, err := c.Lifecycle.Get(cmd.Context())
			if err != nil {
				return err
			}
			rd, err := c.Readiness.Get(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if ctx.jsonOutput {
				return ctx.printJSON(out, map[string]interface{}{"lifecycle": lc, "readiness": rd})
			}

			fmt.Fprintf(out, "State: %s\n", lc.State)
			if rd.Ready {
				fmt.Fprintln(out, "Ready: yes")
			} else {
				fmt.Fprintf(out, "Ready: no, warming up (%s)\n", strings.Join(rd.Pending(), ", "))
			}
			return nil
		},
	}
}

func newServicesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "services [name]",
		Short: "List services and how each was launched",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := ctx.client()
			var services []client.Service
			if len(args) == 1 {
				svc, err := c.Services.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				services = []client.Service{*svc}
			} else {
				list, err := c.Services.List(cmd.Context())
				if err != nil {
					return err
				}
				services = list
			}

			out := cmd.OutOrStdout()
			if ctx.jsonOutput {
				if len(args) == 1 {
					return ctx.printJSON(out, services[0])
				}
				return ctx.printJSON(out, services)
			}
			printServices(out, services)
			return nil
		},
	}
}

func printServices(out io.Writer, services []client.Service) {
	fmt.Fprintf(out, "%-14s %-8s %-10s %-12s %-8s %-6s %s\n", "SERVICE", "MODE", "OWNERSHIP", "STATE", "PID", "READY", "NOTE")
	fmt.Fprintln(out, strings.Repeat("-", 80))
	for _, svc := range services {
		pid := "-"
		if svc.PID > 0 {
			pid = strconv.Itoa(svc.PID)
		}
		state := svc.State
		if state == "" {
			state = "-"
		}
		note := svc.Error
		if note == "" {
			note = svc.Reason
		}
		if len(note) > 40 {
			note = note[:40] + "..."
		}
		ready := "no"
		if svc.Ready {
			ready = "yes"
		}
		fmt.Fprintf(out, "%-14s %-8s %-10s %-12s %-8s %-6s %s\n", svc.Name, svc.Mode, svc.Ownership, state, pid, ready, note)
	}
}

func newWaitCommand(ctx *commandContext) *cobra.Command {
	var (
		timeout  time.Duration
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Block until every service is ready",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			waitCtx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				waitCtx, cancel = context.WithTimeout(waitCtx, timeout)
				defer cancel()
			}

			out := cmd.OutOrStdout()
			var lastPending string
			rd, err := ctx.client().Readiness.Wait(waitCtx, &client.WaitOptions{
				Interval: interval,
				OnPending: func(r *client.Readiness, err error) {
					pending := "server not reachable"
					if r != nil {
						pending = strings.Join(r.Pending(), ", ")
					}
					if pending != lastPending {
						fmt.Fprintf(out, "warming up... (%s)\n", pending)
						lastPending = pending
					}
				},
			})
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("not ready after %s", timeout)
			}
			if err != nil {
				return err
			}

			if ctx.jsonOutput {
				return ctx.printJSON(out, rd)
			}
			fmt.Fprintln(out, "ready")
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up after this long (0 waits forever)")
	cmd.Flags().DurationVar(&interval, "interval", client.DefaultWaitInterval, "Poll interval")
	return cmd
}

func newQuitCommand(ctx *commandContext) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "quit",
		Short: "Terminate every spawned service and stop papertalk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := ctx.client()
			if err := c.Lifecycle.Quit(cmd.Context()); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !wait {
				fmt.Fprintln(out, "shutdown requested")
				return nil
			}

			// The server goes away once shutdown completes.
			for {
				lc, err := c.Lifecycle.Get(cmd.Context())
				if err != nil || lc.State == "stopped" {
					fmt.Fprintln(out, "stopped")
					return nil
				}
				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-time.After(200 * time.Millisecond):
				}
			}
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait until shutdown has finished")
	return cmd
}

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var opts client.ListOptions
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			evs, err := ctx.client().Events.List(cmd.Context(), &opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if ctx.jsonOutput {
				return ctx.printJSON(out, evs)
			}

			fmt.Fprintf(out, "%-20s %-22s %-14s %s\n", "TIME", "TYPE", "SERVICE", "DETAILS")
			fmt.Fprintln(out, strings.Repeat("-", 90))
			for _, evt := range evs {
				keys := make([]string, 0, len(evt.Payload))
				for k := range evt.Payload {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				parts := make([]string, 0, len(keys))
				for _, k := range keys {
					parts = append(parts, fmt.Sprintf("%s=%v", k, evt.Payload[k]))
				}
				svc := evt.Service
				if svc == "" {
					svc = "-"
				}
				fmt.Fprintf(out, "%-20s %-22s %-14s %s\n",
					evt.Timestamp.Local().Format("2006-01-02 15:04:05"),
					evt.Type,
					svc,
					strings.Join(parts, " "),
				)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 50, "Number of events")
	cmd.Flags().StringSliceVarP(&opts.Types, "type", "t", nil, "Event type or glob (repeatable)")
	cmd.Flags().StringVarP(&opts.Service, "service", "s", "", "Only events about this service")
	return cmd
}
