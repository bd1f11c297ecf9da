package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/eltako2mqtt/internal/bridges/eltako"
	"github.com/nerrad567/eltako2mqtt/internal/device"
	"github.com/nerrad567/eltako2mqtt/internal/infrastructure/config"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "eltako2mqtt %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// newCheckConfigCommand loads and validates the configuration without
// connecting to anything.
func newCheckConfigCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration file and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := getConfigPath(*configFlag)
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			s, err := eltako.SettingsFromConfig(cfg, version)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "configuration OK: %s\n", path)
			fmt.Fprintf(out, "  gateway:    %s (poll every %s)\n", cfg.Eltako.Host, s.PollInterval)
			fmt.Fprintf(out, "  broker:     %s:%d (namespace %q, qos %d)\n",
				cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port, s.Topics.Namespace, s.QoS)
			fmt.Fprintf(out, "  discovery:  %s\n", s.DiscoveryPrefix)
			fmt.Fprintf(out, "  debounce:   %s %v\n", s.DebounceWindow, s.DebounceClasses)
			fmt.Fprintf(out, "  dimmer:     %s\n", s.DimmerScale)
			fmt.Fprintf(out, "  removal:    %s\n", s.RemovalPolicy)
			return nil
		},
	}
}

// newDevicesCommand polls the gateway once and prints what it reports.
func newDevicesCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "Poll the gateway once and list its devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(getConfigPath(*configFlag))
			if err != nil {
				return err
			}
			gateway, err := eltako.NewMiniSafeClient(eltako.MiniSafeConfig{
				Host:     cfg.Eltako.Host,
				Password: cfg.Eltako.Password,
			})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.GetPollTimeout())
			defer cancel()

			raw, err := gateway.FetchStates(ctx)
			if err != nil {
				return fmt.Errorf("polling gateway: %w", err)
			}
			return printDevices(cmd, raw)
		},
	}
}

func printDevices(cmd *cobra.Command, raw []device.RawDevice) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCLASS\tNAME\tADDRESS\tTYPE")
	for _, rd := range raw {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", rd.ID, device.ParseClass(rd.Type), rd.Name, rd.Address, rd.Type)
	}
	return tw.Flush()
}
