package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// options carries the persistent flags shared with every subcommand.
type options struct {
	envFile  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "mongoflow",
		Short: "MongoFlow service bridging HTTP and AWS Lambda to MongoDB Atlas",
		Long: `MongoFlow exposes a health API in front of a MongoDB Atlas database.

Without a subcommand it runs as a Lambda function when AWS_LAMBDA_FUNCTION_NAME
is set and as a local HTTP server otherwise.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if runningInLambda(os.Getenv) {
				return runLambda(cmd.Context(), opts)
			}
			return runServe(cmd.Context(), opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file to load before reading the environment")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newLambdaCmd(opts))

	return root
}

// Execute is the entry point called by main.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func runningInLambda(getenv func(string) string) bool {
	return getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}
