package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poornimax/crushline/pkg/apperr"
)

func TestFromError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"validation", apperr.Validation("bad input"), http.StatusBadRequest, "VALIDATION", "bad input"},
		{"not found", apperr.NotFound("user not found"), http.StatusNotFound, "NOT_FOUND", "user not found"},
		{"conflict", apperr.Conflict("busy"), http.StatusConflict, "CONFLICT", "busy"},
		{"transient", apperr.Transient("try again", errors.New("timeout")), http.StatusServiceUnavailable, "TRANSIENT", "try again"},
		{"internal hides detail", apperr.Internal("db exploded", errors.New("dsn secret")), http.StatusInternalServerError, "INTERNAL", "internal error"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR", "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			FromError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var body Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Equal(t, tt.message, body.Error.Message)
		})
	}
}
