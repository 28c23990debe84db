package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rechargetravels/service-booking/pkg/domain"
)

func record(t *testing.T, fn func(c *gin.Context)) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	fn(c)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestStatusFor(t *testing.T) {
	cases := map[domain.ErrorCode]int{
		domain.CodeValidation:         http.StatusBadRequest,
		domain.CodeAmountMismatch:     http.StatusBadRequest,
		domain.CodeMissingProof:       http.StatusBadRequest,
		domain.CodeInvalidTransition:  http.StatusConflict,
		domain.CodeConflict:           http.StatusConflict,
		domain.CodeAlreadyDecided:     http.StatusConflict,
		domain.CodeReferenceExhausted: http.StatusInternalServerError,
		domain.CodeNotFound:           http.StatusNotFound,
		domain.CodeUnauthorized:       http.StatusUnauthorized,
		domain.CodeForbidden:          http.StatusForbidden,
	}
	for code, status := range cases {
		assert.Equal(t, status, StatusFor(code), code)
	}
}

func TestError_SnapshotOnlyForAdmins(t *testing.T) {
	err := fmt.Errorf("verify: %w",
		domain.NewAlreadyDecidedError("payment already decided").WithSnapshot(map[string]string{"status": "paid"}))

	w, body := record(t, func(c *gin.Context) { Error(c, err) })
	assert.Equal(t, http.StatusConflict, w.Code)
	customer := body["error"].(map[string]any)
	assert.Equal(t, string(domain.CodeAlreadyDecided), customer["code"])
	assert.NotContains(t, customer, "snapshot")

	_, body = record(t, func(c *gin.Context) { AdminError(c, err) })
	admin := body["error"].(map[string]any)
	assert.Equal(t, map[string]any{"status": "paid"}, admin["snapshot"])
}

func TestError_HidesInternalErrors(t *testing.T) {
	w, body := record(t, func(c *gin.Context) { Error(c, errors.New("pq: connection refused")) })
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", body["error"].(map[string]any)["message"])
}

func TestPaginated(t *testing.T) {
	_, body := record(t, func(c *gin.Context) { Paginated(c, []string{"a"}, 41, 3, 20) })
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"total": float64(41), "page": float64(3), "limit": float64(20)}, body["meta"])
}
