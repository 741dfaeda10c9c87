package main

import (
	"log"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/weappkit/server/internal/app"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	handler, cleanup, err := app.InitializeNotifyHandler(cfg)
	if err != nil {
		log.Fatalf("failed to initialize notification handler: %v", err)
	}
	defer cleanup()

	lambda.Start(handler.Handle)
}
