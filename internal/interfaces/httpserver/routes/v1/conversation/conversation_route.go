package conversation

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-chat/internal/infrastructure/logger"
	"github.com/janhq/jan-chat/internal/interfaces/httpserver/handlers/conversationhandler"
	middleware "github.com/janhq/jan-chat/internal/interfaces/httpserver/middlewares"
	"github.com/janhq/jan-chat/internal/utils/platformerrors"
)

type ConversationRoute struct {
	handler *conversationhandler.ConversationHandler
	log     zerolog.Logger
}

func NewConversationRoute(handler *conversationhandler.ConversationHandler) *ConversationRoute {
	return &ConversationRoute{
		handler: handler,
		log:     logger.Component("conversation_route"),
	}
}

func (route *ConversationRoute) RegisterRouter(router gin.IRouter) {
	conversations := router.Group("/conversations")
	conversations.GET("", route.list)
	conversations.POST("", route.create)
	conversations.GET("/:conversation_id", route.get)
	conversations.PATCH("/:conversation_id", route.updateTitle)
	conversations.DELETE("/:conversation_id", route.delete)
	conversations.POST("/:conversation_id/messages", route.continueConversation)
	conversations.POST("/:conversation_id/messages/:message_id/regenerate", route.regenerate)
	conversations.POST("/:conversation_id/messages/:message_id/interrupt", route.interrupt)
}

// respond renders result when the mutation committed, even if err reports a
// failed follow-up such as the generation trigger.
func respond[T any](c *gin.Context, log zerolog.Logger, status int, result *T, err error) {
	switch {
	case err == nil:
		c.JSON(status, result)
	case result == nil:
		platformerrors.WriteError(c, err, log)
	default:
		platformerrors.WriteErrorWithData(c, result, err, log)
	}
}

func (route *ConversationRoute) list(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			platformerrors.WriteValidationError(c, "limit must be an integer")
			return
		}
		limit = parsed
	}

	resp, err := route.handler.List(c.Request.Context(), middleware.UserID(c), limit)
	if err != nil {
		platformerrors.WriteError(c, err, route.log)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (route *ConversationRoute) create(c *gin.Context) {
	var req conversationhandler.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		platformerrors.WriteValidationError(c, "invalid request body")
		return
	}
	result, err := route.handler.Create(c.Request.Context(), middleware.UserID(c), req)
	respond(c, route.log, http.StatusCreated, result, err)
}

func (route *ConversationRoute) get(c *gin.Context) {
	resp, err := route.handler.Get(c.Request.Context(), middleware.UserID(c), c.Param("conversation_id"))
	if err != nil {
		platformerrors.WriteError(c, err, route.log)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (route *ConversationRoute) updateTitle(c *gin.Context) {
	var req conversationhandler.UpdateTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		platformerrors.WriteValidationError(c, "invalid request body")
		return
	}
	result, err := route.handler.UpdateTitle(c.Request.Context(), middleware.UserID(c), c.Param("conversation_id"), req)
	if err != nil {
		platformerrors.WriteError(c, err, route.log)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (route *ConversationRoute) delete(c *gin.Context) {
	result, err := route.handler.Delete(c.Request.Context(), middleware.UserID(c), c.Param("conversation_id"))
	if err != nil {
		platformerrors.WriteError(c, err, route.log)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (route *ConversationRoute) continueConversation(c *gin.Context) {
	var req conversationhandler.ContinueConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		platformerrors.WriteValidationError(c, "invalid request body")
		return
	}
	result, err := route.handler.Continue(c.Request.Context(), middleware.UserID(c), c.Param("conversation_id"), req)
	respond(c, route.log, http.StatusCreated, result, err)
}

func (route *ConversationRoute) regenerate(c *gin.Context) {
	var req conversationhandler.RegenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			platformerrors.WriteValidationError(c, "invalid request body")
			return
		}
	}
	result, err := route.handler.Regenerate(c.Request.Context(), middleware.UserID(c), c.Param("conversation_id"), c.Param("message_id"), req)
	respond(c, route.log, http.StatusCreated, result, err)
}

func (route *ConversationRoute) interrupt(c *gin.Context) {
	result, err := route.handler.Interrupt(c.Request.Context(), middleware.UserID(c), c.Param("conversation_id"), c.Param("message_id"))
	respond(c, route.log, http.StatusOK, result, err)
}
