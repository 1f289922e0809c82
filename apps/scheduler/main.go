package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/doseline/doseline/internal/adherence"
	"github.com/doseline/doseline/internal/clock"
	"github.com/doseline/doseline/internal/config"
	"github.com/doseline/doseline/internal/joblock"
	"github.com/doseline/doseline/internal/medication"
	"github.com/doseline/doseline/internal/notification"
	"github.com/doseline/doseline/internal/observability"
	"github.com/doseline/doseline/internal/premium"
	"github.com/doseline/doseline/internal/risk"
	"github.com/doseline/doseline/internal/scheduler"
	"github.com/doseline/doseline/pkg/db"
)

// Scheduler-only replica. Multiple instances coordinate through the
// redis job lock; without redis they still stay correct because every
// batch write is conditional.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		medication.Module,
		adherence.Module,
		risk.Module,
		premium.Module,
		notification.Module,
		joblock.Module,

		// No server module.
		scheduler.Module,
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
