// Package main is the operator CLI: schema migrations and website admin bootstrap.
package main

import (
	"context"

	"github.com/alecthomas/kong"
)

var (
	version = "dev"
	cli     struct {
		Migrate            MigrateCmd            `cmd:"" help:"Apply pending database migrations."`
		Migrations         MigrationsCmd         `cmd:"" help:"List embedded migrations in apply order."`
		CreateWebsiteAdmin CreateWebsiteAdminCmd `cmd:"" name:"create-website-admin" help:"Create a platform administrator."`
		Debug              bool                  `help:"Enable debug logging."`
		Version            kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("raci-admin"),
		kong.Description("RACI tracker operator tool."),
		kong.Vars{"version": version},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&Globals{Debug: cli.Debug})
	cmd.FatalIfErrorf(err)
}
