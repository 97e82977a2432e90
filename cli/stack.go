package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cppla/rollcall/config"
	"github.com/cppla/rollcall/ledger"
	"github.com/cppla/rollcall/store"
	"github.com/cppla/rollcall/utils"
)

// openStore builds the snapshot backend STORE_DRIVER names. The returned
// close function is never nil.
func openStore(cfg config.AppConfig) (store.Store, func(), error) {
	if cfg.StoreDriver == config.DriverFile {
		fs, err := store.NewFileStore(map[string]string{
			store.KeyLedger:   cfg.StatePath,
			store.KeyRotation: cfg.RotationPath,
		})
		return fs, func() {}, err
	}
	db, err := config.OpenDatabase(cfg)
	if err != nil {
		return nil, func() {}, err
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return store.NewDBStore(db), closeFn, nil
}

// state is the ledger and rotation restored from the store.
type state struct {
	ledger   *ledger.Ledger
	rotation *ledger.Rotation
	close    func()
}

// loadState opens the store and restores both documents. Unreadable snapshots
// are logged and the process starts empty.
func loadState(ctx context.Context, cfg config.AppConfig, log *zap.Logger) (*state, error) {
	st, closeFn, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	clock := ledger.SystemClock{Location: cfg.Location()}

	led := ledger.New(clock, ledger.WithStore(st), ledger.WithLogger(log.Named("ledger")))
	if err := led.Load(ctx); err != nil {
		log.Warn("starting with an empty ledger", zap.Error(err))
	}
	rot := ledger.NewRotation(clock, ledger.FileContent{Path: cfg.ContentPath}, st, log.Named("rotation"))
	if err := rot.Load(ctx); err != nil {
		log.Warn("starting with an empty rotation", zap.Error(err))
	}
	return &state{ledger: led, rotation: rot, close: closeFn}, nil
}

// newBatchFilter builds the filter shared by every live intake path. It is
// Redis backed when REDIS_HOST is set, so only serve connects to Redis.
func newBatchFilter(cfg config.AppConfig, log *zap.Logger) ledger.BatchFilter {
	if rc := utils.GetRedis(); rc != nil {
		return ledger.NewRedisBatchFilter(rc, cfg.BatchWindow(), log.Named("batch"))
	}
	return ledger.NewMemoryBatchFilter(cfg.BatchWindow(), ledger.DefaultBatchEntries)
}
