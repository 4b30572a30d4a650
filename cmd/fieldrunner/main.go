package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldrunner/internal/auth/session"
	"github.com/smallbiznis/fieldrunner/internal/authorization"
	"github.com/smallbiznis/fieldrunner/internal/clock"
	"github.com/smallbiznis/fieldrunner/internal/config"
	"github.com/smallbiznis/fieldrunner/internal/directory"
	"github.com/smallbiznis/fieldrunner/internal/migration"
	"github.com/smallbiznis/fieldrunner/internal/observability"
	"github.com/smallbiznis/fieldrunner/internal/server"
	"github.com/smallbiznis/fieldrunner/internal/webhook"
	"github.com/smallbiznis/fieldrunner/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional Domains
		directory.Module,
		webhook.Module,
		session.Module,
		authorization.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
