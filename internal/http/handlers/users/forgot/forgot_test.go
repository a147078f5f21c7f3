package forgot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/gig-messenger/internal/http/response"
	"github.com/magabrotheeeer/gig-messenger/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Forgot(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func TestForgotHandler_ServeHTTP(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		body           string
		callService    bool
		mockErr        error
		wantStatusCode int
		wantError      string
	}{
		{
			name:           "mail sent",
			body:           `{"email":"a@x.com"}`,
			callService:    true,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "padded email",
			body:           `{"email":"  a@x.com "}`,
			callService:    true,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "unknown email",
			body:           `{"email":"ghost@x.com"}`,
			callService:    true,
			mockErr:        fmt.Errorf("auth.Forgot: %w", models.ErrNotFound),
			wantStatusCode: http.StatusBadRequest,
			wantError:      MsgUnknownEmail,
		},
		{
			name:           "notifier failure",
			body:           `{"email":"a@x.com"}`,
			callService:    true,
			mockErr:        fmt.Errorf("auth.Forgot: %w: %w", models.ErrNotify, errors.New("smtp down")),
			wantStatusCode: http.StatusInternalServerError,
			wantError:      response.MsgInternal,
		},
		{
			name:           "not an email",
			body:           `{"email":"nope"}`,
			wantStatusCode: http.StatusBadRequest,
			wantError:      "field Email must be a valid email",
		},
		{
			name:           "invalid json",
			body:           `[]`,
			wantStatusCode: http.StatusBadRequest,
			wantError:      response.MsgInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.callService {
				svc.On("Forgot", mock.Anything, mock.AnythingOfType("string")).Return(tt.mockErr).Once()
			}

			req := httptest.NewRequest(http.MethodPost, "/users/forgot", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			New(logger, svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			var resp response.Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Nil(t, resp.Data)
			svc.AssertExpectations(t)
		})
	}
}
