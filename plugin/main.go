package main

import (
	"context"
	"database/sql"

	"github.com/echotools/nevr-appearance/server"
	"github.com/heroiclabs/nakama-common/runtime"
)

func InitModule(ctx context.Context, runtimeLogger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	return server.InitModule(ctx, runtimeLogger, db, nk, initializer)
}

func main() {}
