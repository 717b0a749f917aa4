package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"cardscan/cmd"
	"cardscan/internal/config"
	"cardscan/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Commands validate the configuration themselves; here it only selects the
	// logger settings.
	cfg, err := config.Load()
	if err != nil {
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	} else {
		if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	}

	log := logger.WithComponent("main")
	log.Debug().Msg("Starting cardscan")

	cmd.Execute()

	log.Debug().Msg("cardscan finished")
	os.Exit(0)
}
