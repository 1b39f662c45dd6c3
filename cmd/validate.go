package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/insajin/autopus-mainboard/internal/mainboard"
)

// validateCmd는 DAG 파일을 실행하지 않고 검증합니다.
var validateCmd = &cobra.Command{
	Use:   "validate DAG_FILE...",
	Short: "DAG 설정 파일을 검증합니다",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dags, err := mainboard.LoadDagFiles(cmd.Context(), args)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, dag := range dags {
			fmt.Fprintf(out, "%s\n", dag.Path)
			for _, m := range dag.ModuleConfig {
				fmt.Fprintf(out, "  %s\n", m.ModuleLibrary)
				for _, c := range m.Components {
					fmt.Fprintf(out, "    component %s (%s)\n", c.Config.Name, c.ClassName)
				}
				for _, c := range m.TimerComponents {
					fmt.Fprintf(out, "    timer     %s (%s, %s)\n", c.Config.Name, c.ClassName, c.Config.Period())
				}
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
