package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var modelsRemote string

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List installed Ollama models",
	RunE:  runListModels,
}

func init() {
	modelsCmd.Flags().StringVar(&modelsRemote, "remote", "", "List models on a remote host (user@host[:port])")

	rootCmd.AddCommand(modelsCmd)
}

func runListModels(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("remote") {
		cfg.Remote.Host = modelsRemote
	}

	runner, closeRunner, err := newRunner(cfg, cmd)
	if err != nil {
		return err
	}
	defer closeRunner()

	client := newOllamaClient(cfg, runner)
	models, err := client.ListModels(cmd.Context())
	if err != nil {
		return err
	}

	if len(models) == 0 {
		fmt.Println("No models installed. Pull one with 'ollama pull <model>'.")
		return nil
	}

	for _, model := range models {
		fmt.Println(model)
	}
	return nil
}
