// cmd/api/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"libraryloans/internal/catalog"
	"libraryloans/internal/circulation"
	"libraryloans/internal/config"
	"libraryloans/internal/journal"
	"libraryloans/internal/platform/observability"
	"libraryloans/internal/server"
	"libraryloans/internal/storage/memory"
	"libraryloans/internal/storage/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "library-loans: %v\n", err)
		os.Exit(1)
	}
}

type stores struct {
	books   catalog.Store
	loans   circulation.Store
	journal journal.Journal
	health  server.Pinger
	close   func() error
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(config.ServiceName, config.ServiceVersion)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, config.ServiceName, config.ServiceVersion, cfg.OtelEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	books := catalog.NewService(st.books, st.journal, logger.Named("catalog"))
	loans := circulation.NewService(st.loans, books, st.journal, logger.Named("circulation"))

	router, err := server.NewRouter(server.Deps{
		Books:          books,
		Loans:          loans,
		Health:         st.health,
		Logger:         logger,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	logger.Info("store ready", zap.String("driver", cfg.StoreDriver))
	return server.New(cfg.Addr(), router, cfg.ShutdownTimeout, logger).Run(ctx)
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.StoreDriver == config.DriverMemory {
		db := memory.New()
		return &stores{
			books:   db.Books(),
			loans:   db.Loans(),
			journal: journal.NewMemory(),
			health:  db,
			close:   func() error { return nil },
		}, nil
	}

	db, err := postgres.Open(ctx, postgres.Options{
		DSN:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &stores{
		books:   postgres.NewBookStore(db),
		loans:   postgres.NewLoanStore(db),
		journal: journal.NewStore(db),
		health:  db,
		close:   db.Close,
	}, nil
}
