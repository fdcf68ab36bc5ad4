package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wanderhk/tourism-ai/internal/types"
)

// MockChatService is a mock implementation of Service
type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) Chat(ctx context.Context, req types.ChatRequest) (*types.ChatResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ChatResponse), args.Error(1)
}

func postChat(t *testing.T, handler *HandlerImpl, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.Chat(rec, req)
	return rec
}

func TestChatHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := new(MockChatService)
		svc.On("Chat", mock.Anything, mock.Anything).Return(&types.ChatResponse{
			Message:        "Take the Airport Express.",
			Sources:        []types.Source{},
			ConversationID: "abc",
		}, nil)

		rec := postChat(t, NewHandlerImpl(svc, testLogger()),
			[]byte(`{"message":"How do I get downtown from the airport?"}`))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp types.ChatResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Take the Airport Express.", resp.Message)
		assert.Equal(t, "abc", resp.ConversationID)
	})

	t.Run("bad json", func(t *testing.T) {
		svc := new(MockChatService)
		rec := postChat(t, NewHandlerImpl(svc, testLogger()), []byte(`{"message":`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything)
	})

	t.Run("error statuses", func(t *testing.T) {
		cases := []struct {
			err  error
			want int
		}{
			{types.ErrInvalidRequest, http.StatusBadRequest},
			{types.ErrQuotaExceeded, http.StatusTooManyRequests},
			{types.ErrProviderTimeout, http.StatusGatewayTimeout},
			{types.ErrRetrievalUnavailable, http.StatusServiceUnavailable},
			{types.ErrMalformedGeneration, http.StatusBadGateway},
		}
		for _, tc := range cases {
			svc := new(MockChatService)
			svc.On("Chat", mock.Anything, mock.Anything).Return(nil, tc.err)

			rec := postChat(t, NewHandlerImpl(svc, testLogger()), []byte(`{"message":"hi"}`))
			assert.Equal(t, tc.want, rec.Code, "error %v", tc.err)
		}
	})
}
