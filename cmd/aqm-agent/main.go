package main

import (
	"context"
	"log"

	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/agentsvc"
	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/config"
	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/directory"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadAgentConfig()

	directDB, err := directory.OpenPool(cfg.DirectoryDatabaseDSN, 2, 5)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app, err := agentsvc.NewApp(ctx, cfg, directory.NewPostgresRepository(directDB))
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)
}
