package interfaces

import (
	"github.com/google/wire"

	"github.com/janhq/jan-chat/internal/interfaces/httpserver"
)

var InterfacesProvider = wire.NewSet(
	httpserver.NewHttpServer,
)
