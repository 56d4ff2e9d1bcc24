// Package cli is the operator command line: seed import, board and stock
// views, task commands and a live watch mode.
package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alexanderramin/shopfloor/internal/config"
	"github.com/alexanderramin/shopfloor/internal/contract"
	"github.com/alexanderramin/shopfloor/internal/db"
	"github.com/alexanderramin/shopfloor/internal/logging"
	"github.com/alexanderramin/shopfloor/internal/push"
	"github.com/alexanderramin/shopfloor/internal/service"
	"github.com/alexanderramin/shopfloor/internal/session"
)

// App holds what the commands share. When Gateway is set before the root
// command runs, configuration loading and database setup are skipped.
type App struct {
	Config  config.Config
	Logger  *zap.Logger
	Gateway *service.LocalGateway
	Now     func() time.Time

	// Feeds overrides the push feeds built from Config.Push.
	Feeds func() []contract.Feed

	database *sql.DB
}

// NewRootCmd creates the top-level "shopfloor" command and registers all
// subcommands against app.
func NewRootCmd(app *App) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "shopfloor",
		Short:         "Shop floor task board with optimistic progress sync",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")

	root.AddCommand(
		newImportCmd(app),
		newBoardCmd(app),
		newTaskCmd(app),
		newStockCmd(app),
		newWatchCmd(app),
	)
	return root
}

func (a *App) init(configPath string) error {
	if a.Now == nil {
		a.Now = time.Now
	}
	if a.Gateway != nil {
		if a.Logger == nil {
			a.Logger = zap.NewNop()
		}
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	a.Config = cfg
	a.Logger = logger
	a.database = database
	a.Gateway = service.NewLocalGateway(database,
		service.WithAuthor(cfg.Actor),
		service.WithObserver(service.NewLogUseCaseObserver(logger)),
	)
	return nil
}

// Close releases what init opened.
func (a *App) Close() error {
	var errs []error
	if a.database != nil {
		errs = append(errs, a.database.Close())
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}

func (a *App) openSession(ctx context.Context, opts ...session.Option) (*session.Session, error) {
	base := []session.Option{
		session.WithLogger(a.Logger),
		session.WithActor(a.Config.Actor),
		session.WithTickInterval(a.Config.TickInterval),
		session.WithCallTimeout(a.Config.RemoteTimeout),
	}
	return session.Open(ctx, a.Gateway, append(base, opts...)...)
}

// feeds returns the configured push sources.
func (a *App) feeds() []contract.Feed {
	if a.Feeds != nil {
		return a.Feeds()
	}
	var out []contract.Feed
	if url := a.Config.Push.URL; url != "" {
		out = append(out, push.NewWebSocketFeed(url,
			push.WithReconnectBackoff(time.Second, a.Config.Push.ReconnectMax),
			push.WithWebSocketLogger(a.Logger),
		))
	}
	if path := a.Config.Push.MaterialsFile; path != "" {
		out = append(out, push.NewFileFeed(path,
			push.WithDebounce(a.Config.Push.Debounce),
			push.WithFileLogger(a.Logger),
		))
	}
	return out
}
