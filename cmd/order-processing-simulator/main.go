// Package main runs the idempotent order processing simulation end to end.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/fairyhunter13/order-processing-simulator/internal/audit"
	"github.com/fairyhunter13/order-processing-simulator/internal/config"
	"github.com/fairyhunter13/order-processing-simulator/internal/dedup"
	httpapi "github.com/fairyhunter13/order-processing-simulator/internal/http"
	"github.com/fairyhunter13/order-processing-simulator/internal/metrics"
	"github.com/fairyhunter13/order-processing-simulator/internal/obs"
	"github.com/fairyhunter13/order-processing-simulator/internal/processor"
	"github.com/fairyhunter13/order-processing-simulator/internal/producer"
	"github.com/fairyhunter13/order-processing-simulator/internal/queue"
	"github.com/fairyhunter13/order-processing-simulator/internal/store"
	"github.com/fairyhunter13/order-processing-simulator/internal/worker"
)

const serviceName = "order-processing-simulator"

func main() {
	cfg := config.Load()
	obs.InitLogger(cfg.LogLevel)
	obs.Logger.Info().Str("store_driver", cfg.StoreDriver).
		Int("producers", cfg.ProducerCount).
		Int("workers", cfg.WorkerCount).
		Int64("initial_stock", cfg.InitialStock).
		Float64("duplicate_probability", cfg.DuplicateProbability).
		Msg("simulator starting")
	if err := run(cfg); err != nil {
		obs.Logger.Error().Err(err).Msg("simulation failed")
		os.Exit(1)
	}
	obs.Logger.Info().Msg("simulator stopped")
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := obs.InitTracerProvider(serviceName, cfg.JaegerEndpoint)
	if err != nil {
		obs.Logger.Warn().Err(err).Msg("tracing disabled")
	}
	if tp != nil {
		defer func() {
			ctxTp, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctxTp); err != nil {
				obs.Logger.Warn().Err(err).Msg("tracer shutdown")
			}
		}()
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			obs.Logger.Warn().Err(err).Msg("store close")
		}
	}()
	if err := st.SeedProduct(ctx, cfg.ProductID, cfg.InitialStock); err != nil {
		return errors.Wrap(err, "seed inventory")
	}

	var gate dedup.Gate
	if cfg.RedisAddr != "" {
		redisGate, err := dedup.NewRedisGate(ctx, cfg.RedisAddr, cfg.ProductID)
		if err != nil {
			// The gate is an optimization; the store constraint still
			// guards duplicates.
			obs.Logger.Warn().Err(err).Msg("duplicate gate disabled")
		} else {
			defer redisGate.Close()
			if err := redisGate.Reset(ctx); err != nil {
				obs.Logger.Warn().Err(err).Msg("duplicate gate reset")
			}
			gate = redisGate
		}
	}

	collector := metrics.NewCollector()
	q := queue.New(128)
	q.Start(ctx)

	var opsSrv *http.Server
	if cfg.OpsAddr != "" {
		app := httpapi.NewApp(cfg, q, collector)
		opsSrv = &http.Server{
			Addr:              cfg.OpsAddr,
			Handler:           httpapi.NewRouter(app),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			obs.Logger.Info().Str("addr", cfg.OpsAddr).Msg("ops listener up")
			if err := opsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				obs.Logger.Error().Err(err).Msg("ops listener error")
			}
		}()
		defer func() {
			ctxSrv, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := opsSrv.Shutdown(ctxSrv); err != nil {
				obs.Logger.Warn().Err(err).Msg("ops shutdown")
			}
		}()
	}

	proc := processor.New(st, gate, collector, cfg.ProductID)
	prod := producer.New(q, cfg.DuplicateProbability)

	// Producers run as one parallel batch; the intake closes once they are
	// all done, which is the workers' explicit completion signal.
	if err := prod.RunBatch(ctx, cfg.ProducerCount); err != nil {
		return errors.Wrap(err, "producer batch")
	}
	q.CloseIntake()

	pool := worker.New(q, proc, cfg.WorkerCount, cfg.PopTimeout)
	if err := pool.Run(ctx); err != nil {
		return errors.Wrap(err, "worker pool")
	}

	report, err := audit.Run(ctx, st, cfg.ProductID, cfg.InitialStock, collector.Snapshot())
	if err != nil {
		return err
	}
	report.Log(prod.Duplicates())
	if !report.Consistent {
		return errors.New("reconciliation invariant violated")
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "", "memory":
		return store.NewMemory(), nil
	case "mysql":
		return store.OpenMySQL(ctx, store.MySQLConfig{
			DSN:          cfg.StoreDSN,
			MaxOpenConns: cfg.DBMaxOpenConns,
			MaxIdleConns: cfg.DBMaxIdleConns,
			ConnRetries:  cfg.DBConnRetries,
			RetryBackoff: cfg.DBConnRetryBackoff,
		})
	default:
		return nil, errors.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
