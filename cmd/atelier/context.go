package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"atelier/internal/assetpool"
	"atelier/internal/assetstore"
	"atelier/internal/characters"
	"atelier/internal/config"
	"atelier/internal/coordinator"
	"atelier/internal/datalock"
	"atelier/internal/library"
	"atelier/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// configPath returns the --config flag value, or "" to search the defaults.
func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) loggerValue() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err == nil {
			c.logger, err = logging.NewFromConfig(cfg)
		}
		if err != nil || c.logger == nil {
			c.logger = logging.NewNop()
		}
	})
	return c.logger
}

// dataEnv is every store rooted in the configured data directory.
type dataEnv struct {
	cfg        *config.Config
	store      *assetstore.Store
	pool       *assetpool.Pool
	characters *characters.Index
	library    *library.Index
	logger     *slog.Logger
}

func (e *dataEnv) coordinator() *coordinator.Coordinator {
	return coordinator.New(e.store, e.pool, e.characters, e.library, e.logger)
}

type lockMode int

const (
	lockShared lockMode = iota
	lockExclusive
)

// withData acquires the data directory lock, opens every store and runs fn.
func (c *commandContext) withData(mode lockMode, fn func(*dataEnv) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	var release datalock.Release
	if mode == lockExclusive {
		release, err = datalock.Exclusive(cfg.LockPath())
	} else {
		release, err = datalock.Shared(cfg.LockPath())
	}
	if err != nil {
		return err
	}
	defer release()

	logger := c.loggerValue()
	store, err := assetstore.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(&dataEnv{
		cfg:        cfg,
		store:      store,
		pool:       assetpool.New(cfg.AssetsDir(), cfg.ThumbnailsDir(), logger),
		characters: characters.New(cfg.Paths.CharactersIndex, logger),
		library:    library.New(cfg.Paths.LibraryIndex, logger),
		logger:     logger,
	})
}

// signalContext cancels on SIGINT/SIGTERM so long imports and migrations
// stop between documents or files.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// skipConfigAnnotation marks commands that must run without a loadable
// config, such as config init.
const skipConfigAnnotation = "skipConfigLoad"

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations[skipConfigAnnotation] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
