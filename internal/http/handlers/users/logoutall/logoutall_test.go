package logoutall

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/gig-messenger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/gig-messenger/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) LogoutAll(ctx context.Context, userUID string) error {
	return m.Called(ctx, userUID).Error(0)
}

func TestLogoutAllHandler_ServeHTTP(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		mockErr        error
		wantStatusCode int
	}{
		{name: "all revoked", wantStatusCode: http.StatusOK},
		{name: "store failure", mockErr: errors.New("down"), wantStatusCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			svc.On("LogoutAll", mock.Anything, "uid-1").Return(tt.mockErr).Once()

			req := httptest.NewRequest(http.MethodPost, "/users/logoutAll", nil)
			req = req.WithContext(context.WithValue(req.Context(), middlewarectx.User, &models.User{UUID: "uid-1"}))
			rec := httptest.NewRecorder()
			New(logger, svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestLogoutAllHandler_NoUser(t *testing.T) {
	svc := new(ServiceMock)
	rec := httptest.NewRecorder()
	New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).
		ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/logoutAll", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	svc.AssertNotCalled(t, "LogoutAll", mock.Anything, mock.Anything)
}
