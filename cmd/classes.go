package cmd

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/insajin/autopus-mainboard/internal/logger"
	"github.com/insajin/autopus-mainboard/internal/metrics"
	"github.com/insajin/autopus-mainboard/pkg/classloader"
	"github.com/insajin/autopus-mainboard/pkg/component"
)

var (
	classesLibrary string
	classesJSON    bool
)

// classesCmd는 라이브러리가 등록하는 클래스를 출력합니다.
var classesCmd = &cobra.Command{
	Use:   "classes --library PATH",
	Short: "라이브러리가 등록하는 클래스를 출력합니다",
	Long: `라이브러리를 임시 로더로 로드해 등록된 컴포넌트 클래스와
capability 타입별 클래스 목록을 출력한 뒤 언로드합니다.`,
	RunE: runClasses,
}

func init() {
	rootCmd.AddCommand(classesCmd)

	classesCmd.Flags().StringVarP(&classesLibrary, "library", "l", "", "플러그인 라이브러리 경로")
	classesCmd.Flags().BoolVar(&classesJSON, "json", false, "JSON으로 출력")
	_ = classesCmd.MarkFlagRequired("library")
}

type classesReport struct {
	Library      string              `json:"library"`
	Components   []string            `json:"components"`
	Capabilities map[string][]string `json:"capabilities"`
}

func runClasses(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := newRegistry(cfg)
	if err != nil {
		return err
	}

	l := classloader.New(classesLibrary,
		classloader.WithRegistry(reg),
		classloader.WithMetrics(metrics.NewMetrics()),
		classloader.WithLogger(logger.Component("classloader")),
	)
	defer l.Close()

	if !l.IsLibraryLoaded() {
		return fmt.Errorf("라이브러리를 로드할 수 없습니다: %s", classesLibrary)
	}

	report := classesReport{
		Library:      l.GetLibraryPath(),
		Components:   classloader.GetValidClassNames[component.Component](l),
		Capabilities: map[string][]string{},
	}
	for _, info := range reg.Libraries() {
		if info.Owner == l.ID() {
			report.Capabilities = info.Classes
		}
	}

	out := cmd.OutOrStdout()
	if classesJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(out, "%s\n", report.Library)
	fmt.Fprintf(out, "  components (%d):\n", len(report.Components))
	for _, name := range report.Components {
		fmt.Fprintf(out, "    - %s\n", name)
	}
	types := make([]string, 0, len(report.Capabilities))
	for t := range report.Capabilities {
		types = append(types, t)
	}
	slices.Sort(types)
	for _, t := range types {
		fmt.Fprintf(out, "  %s: %v\n", t, report.Capabilities[t])
	}
	return nil
}
