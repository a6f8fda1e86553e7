package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-idempotent-contests/internal/events"
)

var start = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func photographyRequest() CreateEventRequest {
	deadline := start.Add(36 * time.Hour)
	return CreateEventRequest{
		Title:                   "Monsoon Walk",
		EventType:               "photography",
		StartingDate:            start,
		EventEndDate:            start.Add(48 * time.Hour),
		Themes:                  []string{"rain", "streets"},
		MaxPhotos:               20,
		PhotoSubmissionDeadline: &deadline,
	}
}

func TestCreateEventRequest_Valid(t *testing.T) {
	v := New()

	if err := v.Struct(photographyRequest()); err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}

	quiz := CreateEventRequest{
		Title:        "Trivia",
		EventType:    "quiz",
		StartingDate: start,
		EventEndDate: start.Add(time.Hour),
		EntryFee:     4900,
		Currency:     "INR",
		Questions:    []QuestionInput{{Text: "2+2?", Options: []string{"3", "4"}, Answer: 1}},
		TimeLimit:    600,
	}
	if err := v.Struct(quiz); err != nil {
		t.Fatalf("expected valid quiz, got error: %v", err)
	}
}

func TestCreateEventRequest_Invalid(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(r *CreateEventRequest)
		field  string
	}{
		{"missing_title", func(r *CreateEventRequest) { r.Title = "" }, "CreateEventRequest.title"},
		{"unknown_type", func(r *CreateEventRequest) { r.EventType = "hackathon" }, "CreateEventRequest.eventType"},
		{"end_before_start", func(r *CreateEventRequest) { r.EventEndDate = start.Add(-time.Hour) }, "CreateEventRequest.eventEndDate"},
		{"no_themes", func(r *CreateEventRequest) { r.Themes = nil }, "CreateEventRequest.themes"},
		{"no_capacity", func(r *CreateEventRequest) { r.MaxPhotos = 0 }, "CreateEventRequest.maxPhotos"},
		{"no_deadline", func(r *CreateEventRequest) { r.PhotoSubmissionDeadline = nil }, "CreateEventRequest.photoSubmissionDeadline"},
		{"deadline_after_end", func(r *CreateEventRequest) {
			late := start.Add(72 * time.Hour)
			r.PhotoSubmissionDeadline = &late
		}, "CreateEventRequest.photoSubmissionDeadline"},
		{"fee_without_currency", func(r *CreateEventRequest) { r.EntryFee = 100 }, "CreateEventRequest.currency"},
		{"negative_fee", func(r *CreateEventRequest) { r.EntryFee = -1; r.Currency = "INR" }, "CreateEventRequest.entryFee"},
	}

	v := New()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := photographyRequest()
			tc.mutate(&req)
			err := v.Struct(req)
			require.Error(t, err)
			assert.Contains(t, validationErrorsToMap(err), tc.field)
		})
	}
}

func TestCreateEventRequest_QuizAnswerOutOfRange(t *testing.T) {
	req := CreateEventRequest{
		Title:        "Trivia",
		EventType:    "quiz",
		StartingDate: start,
		EventEndDate: start.Add(time.Hour),
		Questions:    []QuestionInput{{Text: "2+2?", Options: []string{"3", "4"}, Answer: 2}},
	}
	err := New().Struct(req)
	require.Error(t, err)
	assert.Contains(t, validationErrorsToMap(err), "CreateEventRequest.questions[0].answer")
}

func TestCreateEventRequest_Event(t *testing.T) {
	e := photographyRequest().Event("e1", "admin", start)
	p, ok := e.Photography()
	require.True(t, ok)
	assert.Equal(t, events.TypePhotography, e.Type())
	assert.Equal(t, 20, p.MaxPhotos)
	assert.Equal(t, start.Add(36*time.Hour), p.SubmissionDeadline)
	assert.Empty(t, p.Photos)
	assert.NoError(t, e.Validate())
}

func TestBindAndValidate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v := New()

	testCases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"ok", `{"eventId":"e1","themeChosen":"rain"}`, http.StatusOK, ""},
		{"malformed", `{"eventId":`, http.StatusBadRequest, "invalid_request_body"},
		{"missing_field", `{"eventId":"e1"}`, http.StatusBadRequest, "validation_failed"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/photos/upload-url", strings.NewReader(tc.body))
			c.Request.Header.Set("Content-Type", "application/json")

			var req UploadURLRequest
			err := BindAndValidate(c, &req, v)
			if tc.code == "" {
				require.NoError(t, err)
				assert.Equal(t, "rain", req.ThemeChosen)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), tc.code)
		})
	}
}
