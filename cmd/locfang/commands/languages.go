package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/locfang/pkg/languages"
	"github.com/Sumatoshi-tech/locfang/pkg/report"
	"github.com/Sumatoshi-tech/locfang/pkg/version"
)

func newLanguagesCommand(g *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "languages",
		Short: "List the supported languages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}

			w := report.New(cmd.OutOrStdout(), report.Options{Format: f, NoColor: g.noColor})

			return w.Languages(languages.Default().Languages())
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(report.FormatTable), "Output format: table, json, csv, markdown")

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String("locfang"))
		},
	}
}
