package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/accelbench/vllmbench/internal/api"
	"github.com/accelbench/vllmbench/internal/database"
	"github.com/accelbench/vllmbench/internal/secrets"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	ctx := context.Background()

	dbURL, err := databaseURL(ctx)
	if err != nil {
		log.Fatalf("resolve database URL: %v", err)
	}

	repo, err := database.NewRepository(ctx, dbURL)
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer repo.Close()

	if err := repo.Migrate(ctx); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	srv := api.NewServer(repo)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	srv.RegisterRoutes(mux)

	log.Printf("vllmbench results API starting on :%s", port)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

// databaseURL prefers DATABASE_URL and falls back to the Secrets Manager
// secret named by DATABASE_SECRET_ID.
func databaseURL(ctx context.Context) (string, error) {
	if u := os.Getenv("DATABASE_URL"); u != "" {
		return u, nil
	}
	secretID := os.Getenv("DATABASE_SECRET_ID")
	if secretID == "" {
		return "", fmt.Errorf("DATABASE_URL or DATABASE_SECRET_ID is required")
	}
	client, err := secrets.NewClient(ctx)
	if err != nil {
		return "", err
	}
	log.Printf("Reading database credentials from secret %s", secretID)
	return secrets.DatabaseURL(ctx, client, secretID)
}
