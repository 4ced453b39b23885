package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/gallery-backend/pkg/auth"
	"github.com/angelmondragon/gallery-backend/pkg/config"
	"github.com/angelmondragon/gallery-backend/pkg/logger"
)

// Mints a bearer token for the admin API. Run on the operator's machine with
// the same GALLERY_OPERATOR_* environment the server uses.
func main() {
	logg := logger.New(logger.Options{ServiceName: "operator-token"})

	_ = godotenv.Load()

	subject := flag.String("subject", "", "operator identity to embed in the token")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "missing -subject")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	token, err := auth.MintOperatorToken(cfg.Operator, time.Now(), *subject, *ttl)
	if err != nil {
		logg.Error(context.Background(), "failed to mint token", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
