// Command murmur-reconciler is the Lambda function consuming entity table
// streams. It prunes references to removed comments and accounts. The
// configured backend must be dynamo (MURMUR_BACKEND=dynamo or a config file).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/murmur/graph"
	"github.com/jacentio/murmur/internal/config"
	"github.com/jacentio/murmur/store"
	"github.com/jacentio/murmur/store/dynamo"
	"github.com/jacentio/murmur/stream"
)

func main() {
	cfg, err := config.Load(os.Getenv("MURMUR_CONFIG"))
	if err == nil {
		err = cfg.RequireBackend(config.BackendDynamo)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "murmur-reconciler:", err)
		os.Exit(1)
	}
	logger := cfg.Logger(os.Stdout)

	client, err := cfg.DynamoClient(context.Background())
	if err != nil {
		logger.Error("failed to create dynamodb client", "error", err)
		os.Exit(1)
	}

	s := store.New(dynamo.New(client, cfg.TableConfig()), store.WithLogger(logger))
	handler := stream.NewHandler(graph.New(s), logger)

	lambda.Start(handler.HandleReconcile)
}
