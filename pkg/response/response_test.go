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

	"github.com/noah-isme/timetable-solver-api/internal/models"
	appErrors "github.com/noah-isme/timetable-solver-api/pkg/errors"
)

func testContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	return c, w
}

func TestJSONEnvelope(t *testing.T) {
	c, w := testContext()
	JSON(c, http.StatusOK, gin.H{"score": 3}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, map[string]interface{}{"cached": true})

	var body map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(3), body["data"]["score"])
	assert.Equal(t, float64(1), body["pagination"]["total_count"])
	assert.Equal(t, true, body["meta"]["cached"])
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestAcceptedSetsLocation(t *testing.T) {
	c, w := testContext()
	Accepted(c, "/api/v1/schedule/runs/abc", gin.H{"runId": "abc"})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "/api/v1/schedule/runs/abc", w.Header().Get("Location"))
}

func TestErrorUsesTypedStatusAndDetails(t *testing.T) {
	c, w := testContext()
	Error(c, appErrors.WithDetails(appErrors.ErrNoValidSchedule, map[string]int{"nodes": 9}))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]int `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "NO_VALID_SCHEDULE", body.Error.Code)
	assert.Equal(t, "No valid schedule found that satisfies all hard constraints", body.Error.Message)
	assert.Equal(t, 9, body.Error.Details["nodes"])
}

func TestErrorWrapsUnknownErrors(t *testing.T) {
	c, w := testContext()
	Error(c, errors.New("disk on fire"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk on fire")
}

func TestAttachmentStreamsBody(t *testing.T) {
	c, w := testContext()
	Attachment(c, "schedule-abc.csv", "text/csv", strings.NewReader("course_id\nC1\n"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="schedule-abc.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, "course_id\nC1\n", w.Body.String())
}
