package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/doseline/doseline/internal/adherence"
	"github.com/doseline/doseline/internal/clock"
	"github.com/doseline/doseline/internal/config"
	"github.com/doseline/doseline/internal/medication"
	"github.com/doseline/doseline/internal/migration"
	"github.com/doseline/doseline/internal/notification"
	"github.com/doseline/doseline/internal/observability"
	"github.com/doseline/doseline/internal/premium"
	"github.com/doseline/doseline/internal/ratelimit"
	"github.com/doseline/doseline/internal/risk"
	"github.com/doseline/doseline/internal/server"
	"github.com/doseline/doseline/internal/stats"
	"github.com/doseline/doseline/pkg/db"
)

// API-only replica. Batch work runs in apps/scheduler.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		medication.Module,
		adherence.Module,
		stats.Module,
		risk.Module,
		premium.Module,
		notification.Module,
		ratelimit.Module,

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
