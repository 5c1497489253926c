package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fairblock/typereg/internal/config"
	"github.com/fairblock/typereg/typeregistry"
)

const (
	flagConfig   = "config"
	flagLogLevel = "log-level"
	flagStrict   = "strict"
)

type rootOptions struct {
	configFile string
	logLevel   string
	strict     bool
}

// NewRootCmd returns the typereg command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "typereg",
		Short: "Resolve, decode and encode protobuf messages by type URL",
		Long: `Resolve, decode and encode protobuf messages by type URL.

The type registry is filled from the sources listed in the config file
(typereg.yaml in the working directory unless --config is given): .proto
files, protosets, or a node's gRPC reflection service.

Examples:
  typereg list --package cosmwasm.wasm.v1
  typereg resolve /cosmwasm.wasm.v1.MsgStoreCode
  typereg decode /cosmos.bank.v1beta1.MsgSend CgVhbGljZRIDYm9i
  typereg encode /cosmos.bank.v1beta1.MsgSend '{"fromAddress":"alice"}'`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configFile, flagConfig, "", "Path to the config file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, flagLogLevel, "", "Log level: trace, debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&opts.strict, flagStrict, false, "Fail if sources define a type URL differently")

	rootCmd.AddCommand(
		newListCmd(opts),
		newResolveCmd(opts),
		newDecodeCmd(opts),
		newEncodeCmd(opts),
	)
	return rootCmd
}

// loadRegistry reads the configuration and fills a registry from its sources.
// Flags take precedence over the environment, which takes precedence over the
// config file.
func (o *rootOptions) loadRegistry(cmd *cobra.Command) (*typeregistry.Registry, error) {
	v, err := config.NewViper(o.configFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Root().PersistentFlags()
	if err := v.BindPFlag("log_level", flags.Lookup(flagLogLevel)); err != nil {
		return nil, err
	}
	if err := v.BindPFlag("strict", flags.Lookup(flagStrict)); err != nil {
		return nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).
		Level(cfg.Level()).
		With().Timestamp().Logger()
	reg := typeregistry.New(typeregistry.WithLogger(logger))
	if err := cfg.Loader(logger).Load(cmd.Context(), reg); err != nil {
		return nil, fmt.Errorf("failed to load type registry: %w", err)
	}
	return reg, nil
}
