// eggsctl is the interactive client for the Eggs Regaco box: it caches
// events locally, works offline and drives the confirmation workflow.
package main

import (
	"context"
	"log"
	"os"

	"github.com/eggsregaco/regaco/internal/buildinfo"
	"github.com/eggsregaco/regaco/internal/client/cli"
	"github.com/eggsregaco/regaco/internal/client/config"
	"github.com/eggsregaco/regaco/internal/logging"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := cli.NewApp(cfg, logging.NewDefault())
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)
}
