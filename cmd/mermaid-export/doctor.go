package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ankek/mermaid-export/internal/render"
)

// newDoctorCmd probes both rendering backends and reports what this
// environment can do.
func newDoctorCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check which rendering backends are available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := flags.logger()

			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			scfg := strategyConfig(cfg, logger)

			available := 0
			for _, name := range render.List() {
				strat, err := render.Get(name, scfg)
				if err != nil {
					return err
				}
				probeErr := strat.Available(cmd.Context())
				strat.Close()

				if probeErr != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "  %-4s unavailable: %v\n", name, probeErr)
					continue
				}
				available++
				fmt.Fprintf(cmd.OutOrStdout(), "  %-4s ok\n", name)
			}

			if available == 0 {
				return fmt.Errorf("no rendering backend is available; install mermaid-cli (mmdc) or configure a web renderer command")
			}
			return nil
		},
	}
	return cmd
}
