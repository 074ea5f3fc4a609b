/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/threadbare/storefront/config"
	"github.com/threadbare/storefront/internal/mailer"
	"github.com/threadbare/storefront/internal/mq"
)

// workerCmd represents the worker command. It consumes queued email jobs
// and delivers them over SMTP.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Starts the mail delivery worker",
	Long: `Starts the mail delivery worker. Usage:

	storefront worker
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig()

		queue, err := mq.NewFromConfig(cmd.Context(), cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to broker: %v\n", err)
			os.Exit(1)
		}
		defer queue.Close()

		sender := mailer.NewSMTPSender(cfg.SMTP)
		worker := mailer.NewWorker(queue, sender, logrus.StandardLogger())

		if err := worker.Run(cmd.Context()); err != nil {
			fmt.Fprintf(os.Stderr, "worker error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
