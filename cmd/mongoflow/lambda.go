package main

import (
	"context"
	"time"

	"mongoflow/internal/adapter"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"
)

const lambdaShutdownTimeout = 500 * time.Millisecond

func newLambdaCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Run as an AWS Lambda function behind API Gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLambda(cmd.Context(), opts)
		},
	}
}

func runLambda(ctx context.Context, opts *options) error {
	app, err := buildApp(ctx, opts, defaultParameterClient)
	if err != nil {
		return err
	}

	// Built once; every invocation reuses the same engine and proxies.
	handler := adapter.New(app.Engine)

	app.Logger.Info("starting lambda handler")
	lambda.StartWithOptions(handler.Invoke,
		lambda.WithContext(ctx),
		lambda.WithEnableSIGTERM(func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), lambdaShutdownTimeout)
			defer cancel()
			app.Close(shutCtx)
		}),
	)
	return nil
}
