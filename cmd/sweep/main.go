// Command sweep runs one consistency pass over the project store and
// exits. It is the manual counterpart of the scheduled reconciler.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/huangang/uptask/internal/config"
	"github.com/huangang/uptask/internal/models"
	"github.com/huangang/uptask/internal/services"
	"github.com/huangang/uptask/pkg/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yaml")
	timeout := flag.Duration("timeout", 2*time.Minute, "give up after this long")
	flag.Parse()

	if *configPath == "" {
		*configPath = "config.yaml"
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)

	if err := models.InitDB(&cfg.Database, false); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := services.NewReconciler(models.GetDB(), cfg.Reconcile.Schedule).Sweep(ctx)
	if err != nil {
		logger.Fatalf("Sweep failed: %v", err)
	}

	fmt.Printf("orphan tasks removed:         %d\n", result.OrphanTasks)
	fmt.Printf("orphan collaborators removed: %d\n", result.OrphanCollaborators)
	fmt.Printf("creator rows removed:         %d\n", result.CreatorRows)
}
