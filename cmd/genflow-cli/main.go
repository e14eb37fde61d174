// Genflow CLI — инструмент командной строки для jobs, generations и steps.
//
// Использование:
//
//	genflow [--db-url URL] [--rabbitmq-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	job         Поставить job в очередь или выполнить локально
//	generation  Управление generations
//	step        Управление steps
//	hash        Посчитать input_hash payload
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Genflow/internal/cli"
	"github.com/shaiso/Genflow/internal/config"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	var dbURL, mqURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "genflow",
		Short:         "Genflow CLI — generation job tooling",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", cfg.DBURL, "PostgreSQL URL")
	rootCmd.PersistentFlags().StringVar(&mqURL, "rabbitmq-url", cfg.RabbitMQURL, "RabbitMQ URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	var client *cli.Client
	clientFn := func() *cli.Client {
		if client == nil {
			client = cli.NewClient(dbURL, mqURL, logger)
		}
		return client
	}
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewJobCmd(clientFn, outputFn, cfg.DefaultMaxRetries),
		cli.NewGenerationCmd(clientFn, outputFn),
		cli.NewStepCmd(clientFn, outputFn),
		cli.NewHashCmd(outputFn),
	)

	err = rootCmd.Execute()
	if client != nil {
		client.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
