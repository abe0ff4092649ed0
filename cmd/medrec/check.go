package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	medrec "github.com/doshi-kevin/medrec"
)

var (
	checkMedicines  []string
	checkAllergies  []string
	checkConditions []string
	checkCandidates []string
	checkJSON       bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check candidate medicines against a patient profile",
	Long: `Asks the ranking service whether proposed medicines interact with the
patient's current medicines, allergies, or conditions. Without a configured
provider the status is "unknown".`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringSliceVar(&checkMedicines, "medicines", nil,
		"medicines the patient currently takes")
	checkCmd.Flags().StringSliceVar(&checkAllergies, "allergies", nil,
		"known allergies")
	checkCmd.Flags().StringSliceVar(&checkConditions, "conditions", nil,
		"existing medical conditions")
	checkCmd.Flags().StringSliceVar(&checkCandidates, "candidates", nil,
		"proposed medicine ids to verify")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
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

	report, err := client.CheckInteractions(context.Background(), medrec.PatientProfile{
		Medicines:  checkMedicines,
		Allergies:  checkAllergies,
		Conditions: checkConditions,
	}, checkCandidates)
	if err != nil {
		return err
	}

	if checkJSON {
		return printJSON(cmd, report)
	}

	cmd.Printf("Status: %s\n", report.Status)
	if len(report.Warnings) == 0 {
		cmd.Println("No warnings.")
		return nil
	}
	for _, w := range report.Warnings {
		cmd.Printf("  - %s\n", strings.TrimSpace(w))
	}
	return nil
}
