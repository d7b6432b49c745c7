// cmd/seed/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"libraryloans/internal/catalog"
	"libraryloans/internal/clients"
	"libraryloans/internal/config"
	"libraryloans/internal/platform/observability"
)

var sampleBooks = []catalog.BookInput{
	{Title: "As aventuras", Author: "Artur", ISBN: "123456"},
	{Title: "Dom Casmurro", Author: "Machado de Assis", ISBN: "9788535910667"},
	{Title: "Grande Sertão: Veredas", Author: "João Guimarães Rosa", ISBN: "9788535908480"},
	{Title: "Vidas Secas", Author: "Graciliano Ramos", ISBN: "9788501067340"},
	{Title: "A Hora da Estrela", Author: "Clarice Lispector", ISBN: "9788520925683"},
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the library API")
	flag.Parse()

	logger, err := observability.NewLogger(config.ServiceName+"-seed", config.ServiceVersion)
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := clients.NewLibraryClient(*baseURL)

	created := 0
	for _, in := range sampleBooks {
		book, err := client.CreateBook(ctx, in)
		var apiErr *clients.APIError
		switch {
		case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest:
			logger.Info("book skipped", zap.String("isbn", in.ISBN), zap.String("reason", apiErr.Body.Message))
		case err != nil:
			logger.Fatal("seeding failed", zap.String("isbn", in.ISBN), zap.Error(err))
		default:
			created++
			logger.Info("book created", zap.Int64("id", book.ID), zap.String("isbn", book.ISBN))
		}
	}

	logger.Info("seed complete", zap.Int("created", created), zap.Int("total", len(sampleBooks)))
}
