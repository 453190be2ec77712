package main

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/nuggetapp/nugget-back/internal/config"
	"github.com/nuggetapp/nugget-back/internal/db"
	"github.com/nuggetapp/nugget-back/internal/googlebooks"
	"github.com/nuggetapp/nugget-back/internal/service"
	"github.com/nuggetapp/nugget-back/internal/transport"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.NewConfig,
			NewLogger,
			db.NewGormClient,
			googlebooks.NewClient,
			transport.NewHTTPServer,
		),
		service.Module,
		fx.Invoke(func(server *transport.HTTPServer) {}),
	)

	app.Run()
}

func NewLogger() (*zap.SugaredLogger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}
