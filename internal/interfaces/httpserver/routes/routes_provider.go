package routes

import (
	"github.com/google/wire"

	"github.com/janhq/jan-chat/internal/interfaces/httpserver/handlers/conversationhandler"
	v1 "github.com/janhq/jan-chat/internal/interfaces/httpserver/routes/v1"
	"github.com/janhq/jan-chat/internal/interfaces/httpserver/routes/v1/conversation"
)

var RouteProvider = wire.NewSet(
	// Handlers
	conversationhandler.NewConversationHandler,

	// Routes
	v1.NewV1Route,
	conversation.NewConversationRoute,
)
