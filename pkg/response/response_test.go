package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-progress-api/internal/models"
	appErrors "github.com/noah-isme/course-progress-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func record(fn func(c *gin.Context)) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	fn(c)
	return w
}

func TestJSONWithPagination(t *testing.T) {
	w := record(func(c *gin.Context) {
		JSON(c, http.StatusOK, []string{"a"}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1})
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []interface{}{"a"}, body["data"])
	assert.EqualValues(t, 20, body["pagination"].(map[string]interface{})["page_size"])
	assert.NotContains(t, body, "error")
}

func TestErrorHidesUnknownCauses(t *testing.T) {
	w := record(func(c *gin.Context) { Error(c, errors.New("pq: password authentication failed")) })

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
	assert.Contains(t, w.Body.String(), appErrors.ErrInternal.Code)
}

func TestErrorKeepsTypedStatus(t *testing.T) {
	w := record(func(c *gin.Context) {
		Error(c, appErrors.Clone(appErrors.ErrConflict, "student already enrolled"))
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "student already enrolled")
}

func TestAttachment(t *testing.T) {
	w := record(func(c *gin.Context) {
		Attachment(c, "certificate-enr-1.pdf", "application/pdf", strings.NewReader("%PDF-1.3"))
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="certificate-enr-1.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.3", w.Body.String())
}
