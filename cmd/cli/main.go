package main

import (
	"context"
	"log"

	"github.com/fieldops/sitesync/internal/cli"
	"github.com/fieldops/sitesync/internal/config"
)

func main() {

	ctx := context.Background()

	cfg := config.LoadConfig()
	app, err := cli.NewApp(ctx, cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
