package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/janhq/jan-chat/internal/interfaces/httpserver/routes/v1/conversation"
)

type V1Route struct {
	conversation *conversation.ConversationRoute
}

func NewV1Route(conversation *conversation.ConversationRoute) *V1Route {
	return &V1Route{conversation: conversation}
}

func (v1Route *V1Route) RegisterRouter(router gin.IRouter) {
	v1 := router.Group("/v1")
	v1Route.conversation.RegisterRouter(v1)
}
