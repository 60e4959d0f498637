package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/raci-tracker/backend/config"
	"github.com/raci-tracker/backend/internal/authz"
	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/internal/websiteadmins"
	"github.com/raci-tracker/backend/pkg/database"
)

// Globals are flags shared by every command.
type Globals struct {
	Debug bool
}

func (g *Globals) logger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	if g.Debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func (g *Globals) connect(ctx context.Context, logger *zap.Logger) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return database.NewPostgresPool(ctx, cfg.Database.URL, database.PoolOptions{MaxConns: 2, MinConns: 1}, logger)
}

// MigrateCmd applies the embedded schema migrations.
type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx context.Context, g *Globals) error {
	logger := g.logger()
	defer logger.Sync()
	pool, err := g.connect(ctx, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	return database.Migrate(ctx, pool, logger)
}

// MigrationsCmd prints the embedded migration names.
type MigrationsCmd struct{}

func (c *MigrationsCmd) Run() error {
	names, err := database.MigrationNames()
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

// CreateWebsiteAdminCmd bootstraps a platform admin. The first admin cannot be created
// through the API because that route requires an existing admin.
type CreateWebsiteAdminCmd struct {
	Email    string `required:"" help:"Login email."`
	Name     string `required:"" help:"Full name."`
	Password string `required:"" env:"RACI_ADMIN_PASSWORD" help:"Initial password (min 6 characters)."`
	Phone    string `help:"Contact phone."`
}

func (c *CreateWebsiteAdminCmd) Run(ctx context.Context, g *Globals) error {
	if len(c.Password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	logger := g.logger()
	defer logger.Sync()
	pool, err := g.connect(ctx, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool, logger); err != nil {
		return err
	}

	svc := websiteadmins.NewService(websiteadmins.NewRepository(pool), logger)
	operator := authz.Principal{Role: models.RoleWebsiteAdmin}
	admin, err := svc.Create(ctx, operator, websiteadmins.CreateInput{
		FullName: c.Name,
		Email:    c.Email,
		Phone:    c.Phone,
		Password: c.Password,
	})
	if err != nil {
		return err
	}
	fmt.Printf("created website admin %s (%s)\n", admin.Email, admin.ID)
	return nil
}
