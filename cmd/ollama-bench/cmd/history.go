package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ollama-bench/ollama-bench/internal/storage"
)

var (
	historyLimit int
	historyModel string
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show past benchmark runs",
	Long: `History lists recent benchmark runs from the local database.

Given a run ID it shows that run's per-model results; with --model it
shows one model's results across runs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum entries to show")
	historyCmd.Flags().StringVar(&historyModel, "model", "", "Show one model's results across runs")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := storage.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	store := storage.NewRunStore(db)

	switch {
	case len(args) == 1:
		return showRun(ctx, store, args[0])
	case historyModel != "":
		return showModelHistory(ctx, store, historyModel)
	default:
		return showRuns(ctx, store)
	}
}

func showRuns(ctx context.Context, store *storage.RunStore) error {
	runs, err := store.ListRuns(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tWHEN\tMODELS\tOK\tGPU\tBACKEND")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			run.ID,
			run.CreatedAt.Format("2006-01-02 15:04"),
			run.ModelCount,
			run.SuccessCount,
			yesNo(run.GPU.GPUInUse),
			run.GPU.Backend)
	}
	return w.Flush()
}

func showRun(ctx context.Context, store *storage.RunStore, id string) error {
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s (%s)\n", run.ID, run.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Prompt: %s\n\n", run.Prompt)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tSTATUS\tTOKENS/S\tFIRST TOKEN (MS)\tTOTAL (S)\tERROR")
	for _, res := range run.Results {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%.1f\t%.2f\t%s\n",
			res.Model, res.Status, res.TokensPerSec, res.FirstTokenMS, res.TotalSeconds, res.Error)
	}
	return w.Flush()
}

func showModelHistory(ctx context.Context, store *storage.RunStore, model string) error {
	results, err := store.ListModelResults(ctx, model, historyLimit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Printf("No results recorded for %s.\n", model)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tRUN ID\tSTATUS\tTOKENS/S\tTOTAL (S)")
	for _, res := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.2f\n",
			res.CreatedAt.Format("2006-01-02 15:04"),
			res.RunID, res.Status, res.TokensPerSec, res.TotalSeconds)
	}
	return w.Flush()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
