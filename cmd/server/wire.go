//go:build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/janhq/jan-chat/internal/domain"
	"github.com/janhq/jan-chat/internal/infrastructure"
	"github.com/janhq/jan-chat/internal/interfaces"
	"github.com/janhq/jan-chat/internal/interfaces/httpserver/routes"
)

func CreateApplication() (*Application, error) {
	wire.Build(
		domain.ServiceProvider,
		infrastructure.InfrastructureProvider,
		routes.RouteProvider,
		interfaces.InterfacesProvider,
		wire.Struct(new(Application), "*"),
	)
	return nil, nil
}
