package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/jan-chat/internal/config"
	"github.com/janhq/jan-chat/internal/domain/chat"
	"github.com/janhq/jan-chat/internal/domain/generation"
	"github.com/janhq/jan-chat/internal/infrastructure/database/dbtest"
	"github.com/janhq/jan-chat/internal/infrastructure/database/repository/conversationrepo"
	"github.com/janhq/jan-chat/internal/infrastructure/database/transaction"
	"github.com/janhq/jan-chat/internal/interfaces/httpserver/handlers/conversationhandler"
	"github.com/janhq/jan-chat/internal/interfaces/httpserver/responses"
	v1 "github.com/janhq/jan-chat/internal/interfaces/httpserver/routes/v1"
	"github.com/janhq/jan-chat/internal/interfaces/httpserver/routes/v1/conversation"
	"github.com/janhq/jan-chat/internal/utils/platformerrors"
)

type stubGenerator struct {
	err error
}

func (g *stubGenerator) Send(context.Context, generation.Address, generation.Command) error {
	return g.err
}

func newServer(t *testing.T) (http.Handler, *stubGenerator) {
	t.Helper()
	db := dbtest.NewSQLite(t)
	repo := conversationrepo.NewConversationGormRepository(transaction.NewDatabase(db))
	gen := &stubGenerator{}
	service := chat.NewChatService(repo, gen)
	route := v1.NewV1Route(conversation.NewConversationRoute(conversationhandler.NewConversationHandler(service)))

	server := NewHttpServer(route, db, &config.Config{ServiceName: "chat-api-test"}, zerolog.Nop())
	gin.SetMode(gin.TestMode)
	return server.Handler(), gen
}

func do(t *testing.T, h http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createBody() map[string]any {
	return map[string]any{
		"conversation_id":  "C1",
		"user_message_id":  "U1",
		"agent_message_id": "A1",
		"parts":            []map[string]string{{"content": "Hello"}},
	}
}

func TestHealthEndpoints(t *testing.T) {
	h, _ := newServer(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rec := do(t, h, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestConversationLifecycle(t *testing.T) {
	h, _ := newServer(t)

	rec := do(t, h, http.MethodPost, "/v1/conversations", "", createBody())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/conversations", "user-1", createBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created chat.GenerationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "A1", created.AgentMessageID)
	assert.NotEmpty(t, created.Marker)

	rec = do(t, h, http.MethodGet, "/v1/conversations/C1", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tree responses.ConversationTreeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tree))
	require.Len(t, tree.Messages, 2)
	assert.Equal(t, "USER", tree.Messages[0].Role)
	assert.Equal(t, "IN_PROGRESS", tree.Messages[1].Status)

	rec = do(t, h, http.MethodGet, "/v1/conversations/C1", "user-2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPatch, "/v1/conversations/C1", "user-1", map[string]any{"title": "Greetings"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/conversations?limit=10", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list responses.ListResponse[responses.ConversationResponse]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	require.NotNil(t, list.Data[0].Title)
	assert.Equal(t, "Greetings", *list.Data[0].Title)

	rec = do(t, h, http.MethodGet, "/v1/conversations?limit=ten", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/conversations/C1/messages/A1/interrupt", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var first chat.MutationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	rec = do(t, h, http.MethodPost, "/v1/conversations/C1/messages/A1/interrupt", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var second chat.MutationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(t, first.Marker, second.Marker)

	rec = do(t, h, http.MethodPost, "/v1/conversations/C1/messages", "user-1", map[string]any{
		"parent_id": "A1",
		"parts":     []map[string]string{{"content": "Again"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/v1/conversations/C1/messages/U1/regenerate", "user-1", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodDelete, "/v1/conversations/C1", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/conversations/C1", "user-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCommittedButNotTriggered(t *testing.T) {
	h, gen := newServer(t)
	gen.err = &generation.DeliveryError{ConversationID: "C1", Command: "start_generation", Reason: generation.ReasonMailboxFull}

	rec := do(t, h, http.MethodPost, "/v1/conversations", "user-1", createBody())
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Data  chat.GenerationResult           `json:"data"`
		Error platformerrors.HTTPErrorDetail `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "C1", body.Data.ConversationID)
	assert.NotEmpty(t, body.Data.Marker)
	assert.Equal(t, "unavailable_error", body.Error.Type)

	gen.err = nil
	rec = do(t, h, http.MethodGet, "/v1/conversations/C1", "user-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidationErrors(t *testing.T) {
	h, _ := newServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{name: "no parts", method: http.MethodPost, path: "/v1/conversations", body: map[string]any{}, want: http.StatusBadRequest},
		{name: "malformed body", method: http.MethodPost, path: "/v1/conversations", body: "nope", want: http.StatusBadRequest},
		{name: "missing conversation", method: http.MethodPost, path: "/v1/conversations/C9/messages/A1/interrupt", want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, "user-1", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}
