package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solar-impact-insights/app"
	"solar-impact-insights/config"
	"solar-impact-insights/database"
	"solar-impact-insights/dataset"
	"solar-impact-insights/logger"
	"solar-impact-insights/warehouse"
)

// eventCopier bulk loads a table with COPY. *database.DB implements it.
type eventCopier interface {
	CopyEvents(ctx context.Context, t *dataset.Table) (int64, error)
	Close() error
}

// tableSink loads a table into the warehouse. *warehouse.Warehouse implements it.
type tableSink interface {
	Load(ctx context.Context, t *dataset.Table) (int, error)
	Close() error
}

// env carries the configuration and the connection openers shared by every command.
type env struct {
	cfg *config.Config
	log *zap.Logger

	openRepo      func(ctx context.Context) (*database.Repository, func() error, error)
	openCopier    func(ctx context.Context) (eventCopier, error)
	openWarehouse func(ctx context.Context) (tableSink, error)
}

func newEnv(cfg *config.Config) *env {
	e := &env{cfg: cfg}
	e.openRepo = e.connectRepo
	e.openCopier = e.connectCopier
	e.openWarehouse = e.connectWarehouse
	return e
}

func newRootCmd(e *env) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "solarctl",
		Short:         "SEP space-weather pipeline tools",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if e.log != nil {
				return nil
			}
			log, err := logger.New(logger.Config{
				ServiceName: "solarctl",
				Environment: e.cfg.Logging.Environment,
				Version:     app.Version,
				Level:       logLevel,
				Format:      "console",
				OutputPaths: []string{"stderr"},
			})
			if err != nil {
				return err
			}
			e.log = log
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", e.cfg.Logging.Level, "Log level (debug|info|warn|error)")

	root.AddCommand(
		runCmd(e),
		exportCmd(e),
		loadCmd(e),
		backfillKpCmd(e),
	)
	return root
}

func (e *env) connectRepo(ctx context.Context) (*database.Repository, func() error, error) {
	port, err := strconv.Atoi(e.cfg.DatabasePort)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid database port: %w", err)
	}
	db, err := database.Connect(e.cfg.DatabaseHost, port, e.cfg.DatabaseName, e.cfg.DatabaseUser, e.cfg.DatabasePassword, e.log)
	if err != nil {
		return nil, nil, err
	}
	repo := database.NewRepository(db, e.log)
	if err := repo.InitSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return repo, db.Close, nil
}

func (e *env) connectCopier(ctx context.Context) (eventCopier, error) {
	conn, err := database.NewConnection(database.Config{
		Host:     e.cfg.DatabaseHost,
		Port:     e.cfg.DatabasePort,
		User:     e.cfg.DatabaseUser,
		Password: e.cfg.DatabasePassword,
		DBName:   e.cfg.DatabaseName,
	}, e.log)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (e *env) connectWarehouse(ctx context.Context) (tableSink, error) {
	wh, err := warehouse.Dial(ctx, warehouse.Config{
		Address:  e.cfg.Warehouse.Address,
		Database: e.cfg.Warehouse.Database,
		Table:    e.cfg.Warehouse.Table,
		User:     e.cfg.Warehouse.User,
		Password: e.cfg.Warehouse.Password,
	}, e.log)
	if err != nil {
		return nil, err
	}
	if err := wh.EnsureSchema(ctx); err != nil {
		wh.Close()
		return nil, err
	}
	return wh, nil
}

// dateRange parses optional YYYY-MM-DD bounds into a filter.
func dateRange(start, end string) (dataset.Filter, error) {
	var f dataset.Filter
	if start != "" {
		d, err := dataset.ParseDate(start)
		if err != nil {
			return f, fmt.Errorf("--start: %w", err)
		}
		f.StartDate = &d
	}
	if end != "" {
		d, err := dataset.ParseDate(end)
		if err != nil {
			return f, fmt.Errorf("--end: %w", err)
		}
		f.EndDate = &d
	}
	if f.StartDate != nil && f.EndDate != nil && f.StartDate.After(*f.EndDate) {
		return f, fmt.Errorf("--end must not be before --start")
	}
	return f, nil
}

func boundOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
