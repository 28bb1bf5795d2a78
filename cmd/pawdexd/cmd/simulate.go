package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/cosmos/cosmos-sdk/client/flags"
	"github.com/google/uuid"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/paw-chain/pawdex/x/dex/simulation"
)

const flagGenesisTime = "genesis-time"

type stepOutput struct {
	Scenario string `json:"scenario"`
	Index    int    `json:"index"`
	Action   string `json:"action"`
	Output   string `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SimulateCmd runs one or more YAML scenarios, in order, against a single
// in-memory chain.
func SimulateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate [scenario.yaml]...",
		Short: "Run YAML scenarios against an in-memory DEX",
		Long: `Run YAML scenarios against an in-memory DEX. Scenarios share one chain, so a
later file sees the pools and balances left by an earlier one.

Example:
  pawdexd simulate scenarios/basic.yaml --export out.json --metrics-addr :36660`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			logger = logger.With("run_id", uuid.NewString())

			// TOML datetimes arrive as time.Time, flags and env as strings
			genesisTime, err := cast.ToTimeE(v.Get(flagGenesisTime))
			if err != nil {
				return fmt.Errorf("invalid %s: %w", flagGenesisTime, err)
			}
			genesis, err := readGenesisFile(v.GetString(flagGenesis))
			if err != nil {
				return err
			}

			metricsAddr := v.GetString(flagMetricsAddr)
			if metricsAddr != "" {
				shutdown := StartPrometheusServer(metricsAddr, logger)
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = shutdown(ctx)
				}()
			}

			env, err := simulation.NewEnv(logger, genesisTime, genesis)
			if err != nil {
				return err
			}

			var outputs []stepOutput
			for _, path := range args {
				s, err := simulation.LoadScenario(path)
				if err != nil {
					return fmt.Errorf("load %s: %w", path, err)
				}
				results, runErr := env.Run(s)
				for _, r := range results {
					out := stepOutput{Scenario: s.Name, Index: r.Index, Action: r.Action, Output: r.Output}
					if r.Err != nil {
						out.Error = r.Err.Error()
					}
					outputs = append(outputs, out)
				}
				if runErr != nil {
					_ = printResults(cmd.OutOrStdout(), v.GetString(flags.FlagOutput), outputs)
					return fmt.Errorf("scenario %s: %w", s.Name, runErr)
				}
			}

			if err := printResults(cmd.OutOrStdout(), v.GetString(flags.FlagOutput), outputs); err != nil {
				return err
			}

			if path := v.GetString(flagExport); path != "" {
				exported, err := env.Keeper.ExportGenesis(env.Ctx)
				if err != nil {
					return err
				}
				if err := writeGenesisFile(path, exported); err != nil {
					return err
				}
				logger.Info("exported genesis", "path", path, "height", env.Ctx.BlockHeight())
			}

			if v.GetBool(flagServe) && metricsAddr != "" {
				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				logger.Info("scenarios finished, serving metrics until interrupted")
				<-ctx.Done()
			}
			return nil
		},
	}

	cmd.Flags().String(flagGenesis, "", "genesis JSON file to start from (default genesis when empty)")
	cmd.Flags().String(flagGenesisTime, simulation.DefaultGenesisTime.Format(time.RFC3339), "block time of the first block")
	cmd.Flags().String(flagExport, "", "write the final state as genesis JSON to this file")
	cmd.Flags().String(flagMetricsAddr, "", "serve Prometheus metrics on this address, e.g. :36660")
	cmd.Flags().Bool(flagServe, false, "keep serving metrics after the scenarios finish")
	cmd.Flags().StringP(flags.FlagOutput, "o", "text", "output format (text|json)")

	return cmd
}

func printResults(w io.Writer, format string, outputs []stepOutput) error {
	if format == flags.OutputFormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(outputs)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tSTEP\tACTION\tRESULT")
	for _, o := range outputs {
		result := o.Output
		if o.Error != "" {
			result = "error: " + o.Error
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", o.Scenario, o.Index, o.Action, result)
	}
	return tw.Flush()
}
