package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the pipeline has loaded",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newCLILogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	st := client.Status()
	if statusJSON {
		return printJSON(cmd, st)
	}

	cmd.Printf("Dataset loaded:   %v (%d medicines)\n", st.DatasetLoaded, st.TotalMedicines)
	cmd.Printf("Schema version:   v%d\n", st.SchemaVersion)
	cmd.Printf("Models loaded:    %s\n", strings.Join(st.ModelsLoaded, ", "))
	if st.RankingProvider != "" {
		cmd.Printf("Ranking provider: %s (%s)\n", st.RankingProvider, st.RankingModel)
	} else {
		cmd.Println("Ranking provider: none (ensemble order only)")
	}
	cmd.Printf("Cache enabled:    %v\n", st.CacheEnabled)
	cmd.Printf("Results enabled:  %v\n", st.ResultsEnabled)

	report := client.Health(context.Background())
	cmd.Printf("Health:           %s\n", report.Status)
	return nil
}
