package main

import (
	"context"
	"log"

	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/config"
	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/directorysvc"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadDirectoryConfig()

	app, err := directorysvc.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)
}
