/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tomoncle/hummer"
	"github.com/tomoncle/hummer/config"
	"github.com/tomoncle/hummer/database"
	"github.com/tomoncle/hummer/utils"
)

type rootFlags struct {
	configFile string
	envPrefix  string
	section    string
	sets       []string
	logLevel   string
	logFormat  string
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "hummerctl",
		Short:         "Inspect and operate hummer database configurations",
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.logFormat != "" {
				utils.ConfigureConsoleLogFormat(flags.logFormat)
			}
			if flags.logLevel != "" {
				utils.SetAllLoggersLevel(utils.ParseLogLevel(flags.logLevel))
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&flags.envPrefix, "env-prefix", "HUMMER", "environment variable prefix, empty to disable")
	cmd.PersistentFlags().StringVarP(&flags.section, "section", "s", hummer.DefaultSection, "configuration section")
	cmd.PersistentFlags().StringArrayVar(&flags.sets, "set", nil, "override a value, e.g. --set database.command_timeout=45")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "console log format (text, json)")

	cmd.AddCommand(newPingCommand(flags), newExecCommand(flags), newConfigCommand(flags))
	return cmd
}

// loadStore merges, in order, the file, the environment and --set overrides.
func loadStore(flags *rootFlags) (*config.Store, error) {
	store := config.NewStore()
	if flags.configFile != "" {
		if err := store.LoadFile(flags.configFile); err != nil {
			return nil, err
		}
	}
	if flags.envPrefix != "" {
		if err := store.LoadEnv(flags.envPrefix); err != nil {
			return nil, err
		}
	}
	if len(flags.sets) > 0 {
		values := make(map[string]any, len(flags.sets))
		for _, kv := range flags.sets {
			key, value, ok := strings.Cut(kv, "=")
			if !ok || strings.TrimSpace(key) == "" {
				return nil, fmt.Errorf("invalid --set %q, expected key=value", kv)
			}
			values[strings.TrimSpace(key)] = value
		}
		if err := store.Merge(values); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func newFactory(flags *rootFlags) (*hummer.Factory, error) {
	store, err := loadStore(flags)
	if err != nil {
		return nil, err
	}
	return hummer.NewFactory(database.NewModel(), store, hummer.WithSection(flags.section))
}

func newPingCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Open a unit of work and verify the database is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			factory, err := newFactory(flags)
			if err != nil {
				return err
			}
			defer factory.Close()

			start := time.Now()
			uow, err := factory.CreateUnitOfWork(cmd.Context())
			if err != nil {
				return err
			}
			defer uow.Close()

			status := uow.Session().HealthCheck(cmd.Context())
			if !status.Healthy {
				return fmt.Errorf("database unhealthy: %s", status.LastError)
			}
			opts := factory.Options()
			fmt.Fprintf(cmd.OutOrStdout(), "ok driver=%s uow=%s elapsed=%s ping=%s open=%d in_use=%d idle=%d\n",
				opts.NormalizedDriver(), uow.ID(), time.Since(start).Round(time.Millisecond),
				status.ResponseTime.Round(time.Microsecond), status.OpenConns, status.InUse, status.Idle)
			return nil
		},
	}
}

func newExecCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "exec COMMAND [ARGS...]",
		Short: "Run a command in its own transaction and print the scalar result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			factory, err := newFactory(flags)
			if err != nil {
				return err
			}
			defer factory.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			uow, err := factory.CreateUnitOfWork(ctx)
			if err != nil {
				return err
			}
			defer uow.Close()

			params := make([]any, 0, len(args)-1)
			for _, a := range args[1:] {
				params = append(params, a)
			}
			result, err := uow.ExecuteCommand(ctx, args[0], params...)
			if err != nil {
				if kind, ok := database.Classify(err); ok {
					return fmt.Errorf("%s: %w", kind, err)
				}
				return err
			}
			if result == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "(no rows)")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func newConfigCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective options of the section",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadStore(flags)
			if err != nil {
				return err
			}
			opts, err := store.Section(flags.section)
			if err != nil {
				return err
			}
			opts.CommandTimeout = opts.EffectiveCommandTimeout()
			opts.Driver = opts.NormalizedDriver()
			opts.ConnectionString = opts.RedactedConnectionString()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(opts)
		},
	}
}
