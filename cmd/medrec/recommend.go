package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	medrec "github.com/doshi-kevin/medrec"
)

var (
	recommendTopK   int
	recommendJSON   bool
	recommendOutput string
)

var recommendCmd = &cobra.Command{
	Use:   "recommend [symptom text]",
	Short: "Recommend medicines for symptoms",
	Long: `Runs one recommendation request through the pipeline and prints the
ordered list. Without a configured ranking provider the list keeps the
ensemble order and explanations are marked unavailable.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRecommend,
}

func init() {
	recommendCmd.Flags().IntVarP(&recommendTopK, "top-k", "k", 0,
		"number of recommendations (0 uses the configured default)")
	recommendCmd.Flags().BoolVar(&recommendJSON, "json", false, "output as JSON")
	recommendCmd.Flags().StringVarP(&recommendOutput, "output", "o", "",
		"also write the result document to a JSON file")
	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
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

	symptoms := strings.Join(args, " ")
	res, err := client.Recommend(context.Background(), symptoms, recommendTopK)
	if err != nil {
		if errors.Is(err, medrec.ErrInputRejected) {
			cmd.Println("No recognizable symptoms in input. Try terms like \"fever\", \"cough\", \"headache\".")
			return nil
		}
		if stage, ok := medrec.FailedStage(err); ok {
			return fmt.Errorf("recommendation failed at %s: %w", stage, err)
		}
		return err
	}

	if recommendOutput != "" {
		if err := writeResultFile(recommendOutput, res); err != nil {
			return err
		}
		cmd.Printf("Result written to %s\n", recommendOutput)
	}

	if recommendJSON {
		return printJSON(cmd, res)
	}
	printResult(cmd, res)
	return nil
}

func printResult(cmd *cobra.Command, res medrec.Result) {
	cmd.Printf("Symptoms: %s\n", strings.Join(res.Symptoms, ", "))
	cmd.Printf("Models: %s\n", strings.Join(res.ModelsUsed, ", "))
	if !res.ExplanationsAvailable {
		cmd.Println("Explanations unavailable; showing ensemble order.")
	}
	cmd.Println()

	if len(res.Recommendations) == 0 {
		cmd.Println("No matching medicines found.")
		return
	}
	for _, rec := range res.Recommendations {
		cmd.Printf("  [%d] %s (%.2f)\n", rec.Rank, rec.Name, rec.Confidence)
		cmd.Printf("      Class: %s", rec.TherapeuticClass)
		if rec.Manufacturer != "" {
			cmd.Printf("  Manufacturer: %s", rec.Manufacturer)
		}
		cmd.Println()
		if rec.Explanation != "" {
			cmd.Printf("      %s\n", rec.Explanation)
		}
		if len(rec.Contraindications) > 0 {
			cmd.Printf("      Contraindications: %s\n", strings.Join(rec.Contraindications, "; "))
		}
		if len(rec.SideEffects) > 0 {
			cmd.Printf("      Side effects: %s\n", strings.Join(rec.SideEffects, ", "))
		}
		if len(rec.Substitutes) > 0 {
			cmd.Printf("      Alternatives: %s\n", strings.Join(rec.Substitutes, ", "))
		}
		cmd.Println()
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func writeResultFile(path string, res medrec.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
