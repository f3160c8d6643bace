// Command keygen mints an access key directly in the database. It bootstraps the first
// admin key; later keys are issued through /api/v1/admin/keys.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/openscribe/internal/apikeys"
	"github.com/kiranshivaraju/openscribe/internal/config"
	"github.com/kiranshivaraju/openscribe/internal/store"
	"github.com/kiranshivaraju/openscribe/pkg/models"
)

// KeyCreator is the slice of the store keygen writes to.
type KeyCreator interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
}

func main() {
	name := flag.String("name", "bootstrap", "key name")
	scopes := flag.String("scopes", "read,write,admin", "comma-separated scopes")
	owner := flag.String("owner", store.DefaultOwnerID.String(), "owner id")
	flag.Parse()

	if err := run(*name, *scopes, *owner); err != nil {
		slog.Error("keygen failed", "error", err)
		os.Exit(1)
	}
}

func run(name, scopes, owner string) error {
	ownerID, err := uuid.Parse(owner)
	if err != nil {
		return fmt.Errorf("parse owner id: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	raw, err := createKey(ctx, store.NewPostgresStore(pool), ownerID, name, splitScopes(scopes))
	if err != nil {
		return err
	}
	fmt.Println(raw)
	return nil
}

// createKey stores a new key and returns its raw form, which is shown once.
func createKey(ctx context.Context, kc KeyCreator, ownerID uuid.UUID, name string, scopes []string) (string, error) {
	if !apikeys.ValidScopes(scopes) {
		return "", fmt.Errorf("invalid scopes %v", scopes)
	}
	raw, key, err := apikeys.New(ownerID, name, scopes)
	if err != nil {
		return "", err
	}
	if err := kc.CreateAPIKey(ctx, key); err != nil {
		return "", fmt.Errorf("store key: %w", err)
	}
	slog.Info("access key created", "id", key.ID, "prefix", key.KeyPrefix, "scopes", key.Scopes)
	return raw, nil
}

func splitScopes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
