package main

import (
	"context"

	"github.com/dafibh/fortuna/fortuna-backend/internal/config"
	"github.com/dafibh/fortuna/fortuna-backend/internal/storage"
	"github.com/dafibh/fortuna/fortuna-backend/internal/storage/migrate"
	"github.com/rs/zerolog/log"
)

// cmd/migrate applies every pending migration and exits, for operators who
// want schema changes applied outside of the server's own startup pass
// (spec §5: migrations run embedded; this is the same runner invoked
// standalone).
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	gateway, err := storage.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer gateway.Close()

	applied, err := migrate.Run(context.Background(), gateway)
	if err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Int("applied", applied).Msg("migrations complete")
}
