package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/text/currency"

	"github.com/mshop/payments/internal/config"
	"github.com/mshop/payments/internal/converter"
	"github.com/mshop/payments/internal/fiscal"
	"github.com/mshop/payments/internal/gateway"
	"github.com/mshop/payments/internal/gateway/adapters"
	"github.com/mshop/payments/internal/manager"
	"github.com/mshop/payments/internal/port"
	"github.com/mshop/payments/internal/repository"
	"github.com/mshop/payments/internal/server"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := run(logger); err != nil {
		logger.Fatal().Err(err).Msg("paymentd failed")
	}
}

func run(logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config.Load: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("pgxpool.New: %w", err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	reference, err := currency.ParseISO(cfg.ReferenceCurrency)
	if err != nil {
		return fmt.Errorf("reference currency[%s] is not valid: %w", cfg.ReferenceCurrency, err)
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return fmt.Errorf("buildRegistry: %w", err)
	}

	queue, err := fiscal.NewQueue(rdb)
	if err != nil {
		return fmt.Errorf("fiscal.NewQueue: %w", err)
	}

	registers, worker, err := buildFiscal(cfg, queue, logger)
	if err != nil {
		return fmt.Errorf("buildFiscal: %w", err)
	}

	m, err := manager.New(manager.Config{
		Registry:     registry,
		Ledger:       repository.NewOrderLedger(pool),
		Carts:        repository.NewCart(pool),
		Clients:      repository.NewClient(pool, rdb),
		Converter:    converter.New(repository.NewRates(pool), reference),
		Audit:        repository.NewAudit(rdb),
		Delivery:     repository.NewDelivery(pool),
		Registers:    registers,
		FiscalQueue:  queue,
		Sink:         repository.NewTransactionSink(pool),
		Registration: repository.NewRegistration(pool),
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("manager.New: %w", err)
	}

	if worker != nil {
		for range cfg.FiscalWorkers {
			go worker.Run(ctx)
		}
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.New(m, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("srv.ListenAndServe: %w", err)
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("srv.Shutdown: %w", err)
		}
	}

	return nil
}

func buildRegistry(cfg config.Config) (*gateway.Registry, error) {
	var systems []gateway.System

	if cfg.Cardlink.Secret != "" {
		systems = append(systems, adapters.NewCardlink(
			cfg.Cardlink.MerchantID, cfg.Cardlink.Secret, cfg.Cardlink.GatewayURL))
	}

	if cfg.ERIPBill.ServiceID != "" {
		erip, err := adapters.NewERIPBill(cfg.ERIPBill.ServiceID, cfg.ERIPBill.AllowIPs)
		if err != nil {
			return nil, fmt.Errorf("adapters.NewERIPBill: %w", err)
		}
		systems = append(systems, erip)
	}

	if cfg.AcqBank.Secret != "" {
		systems = append(systems, adapters.NewAcqBank(
			cfg.AcqBank.Secret, cfg.AcqBank.GatewayURL, nil, cfg.AcqBank.AllowIPs))
	}

	registry, err := gateway.NewRegistry(systems...)
	if err != nil {
		return nil, fmt.Errorf("gateway.NewRegistry: %w", err)
	}

	return registry, nil
}

func buildFiscal(cfg config.Config, queue *fiscal.Queue, logger zerolog.Logger) (port.FiscalRegisters, *fiscal.Worker, error) {
	if cfg.FiscalRegisterURL == "" {
		return fiscal.NewCashRegisters(nil), nil, nil
	}

	client, err := fiscal.NewClient(cfg.FiscalRegisterURL, cfg.FiscalRegisterKey, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("fiscal.NewClient: %w", err)
	}

	byCountry := make(map[string]port.FiscalPrinter, len(cfg.FiscalCountries))
	for _, countryCode := range cfg.FiscalCountries {
		byCountry[countryCode] = client
	}

	submit, err := fiscal.NewSubmitStep(client)
	if err != nil {
		return nil, nil, fmt.Errorf("fiscal.NewSubmitStep: %w", err)
	}

	pipeline, err := fiscal.NewPipeline(logger, fiscal.ValidateStep{}, submit)
	if err != nil {
		return nil, nil, fmt.Errorf("fiscal.NewPipeline: %w", err)
	}

	return fiscal.NewCashRegisters(byCountry), fiscal.NewWorker(queue, pipeline, logger), nil
}
