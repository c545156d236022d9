package controller

import (
	"assessment_engine/internal/config"
	"assessment_engine/internal/middleware"
	"assessment_engine/internal/model"
	"assessment_engine/internal/repository"
	"assessment_engine/internal/service"
	"assessment_engine/internal/util"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret-test-secret-test-secret"

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Reason  string          `json:"reason"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router       *gin.Engine
	assessmentID uint
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.AutoMigrate(&model.Assessment{}, &model.AssessmentQuestion{}, &model.Attempt{}); err != nil {
		t.Fatal(err)
	}

	assessments := repository.NewAssessmentRepository(db)
	def := &model.AssessmentDefinition{
		Title:            "Quiz",
		TotalTimeMinutes: 10,
		PassPercentage:   70,
		MaxAttempts:      1,
		Questions: []model.Question{
			{Type: model.QuestionMultipleChoice, Prompt: "q0", Options: []string{"A", "B"}, CorrectAnswer: "B", Explanation: "hidden-explanation", Points: 1},
			{Type: model.QuestionShortAnswer, Prompt: "q1", CorrectAnswer: "Paris", Points: 1},
		},
	}
	if err := assessments.Upsert(context.Background(), def); err != nil {
		t.Fatal(err)
	}

	perms := service.NewRolePermissions(map[string][]string{
		util.CapabilityTakeAssessment: {"student"},
		util.CapabilityPreviewScore:   {"teacher"},
	})
	svc := service.NewAssessmentService(assessments, repository.NewAttemptRepository(db), perms, nil, &config.AssessmentConfig{TimeSpentGraceSeconds: 5})
	ctrl := NewAssessmentController(svc)

	cfg := &config.Config{JWT: config.JWTConfig{Secret: testSecret}}
	r := gin.New()
	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(cfg))
	api.POST("/assessments/:id/start", ctrl.Start)
	api.GET("/assessments/:id/attempts", ctrl.ListAttempts)
	api.POST("/assessments/:id/preview", ctrl.PreviewScore)
	api.GET("/attempts/:id", ctrl.GetAttempt)
	api.POST("/attempts/:id/answers", ctrl.RecordAnswer)
	api.POST("/attempts/:id/submit", ctrl.Submit)
	api.POST("/assessment/start", ctrl.StartByBody)
	api.POST("/assessment/record_answer", ctrl.RecordAnswerByBody)
	api.POST("/assessment/submit", ctrl.SubmitByBody)

	return &testServer{router: r, assessmentID: def.ID}
}

func token(t *testing.T, userID uint, role model.UserRole) string {
	t.Helper()
	tok, err := util.GenerateJWT(userID, role, "", testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (s *testServer) do(t *testing.T, method, path, tok, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode body %q: %v", method, path, w.Body.String(), err)
	}
	return w, env
}

func (s *testServer) path(format string) string {
	return strings.Replace(format, "{id}", jsonNumber(s.assessmentID), 1)
}

func jsonNumber(v uint) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestAssessmentFlow(t *testing.T) {
	s := newTestServer(t)
	tok := token(t, 7, model.Student)

	w, env := s.do(t, http.MethodPost, s.path("/api/assessments/{id}/start"), tok, "")
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d body %s", w.Code, w.Body.String())
	}
	if bytes.Contains(env.Data, []byte("correct_answer")) || bytes.Contains(env.Data, []byte("hidden-explanation")) {
		t.Fatalf("start leaks answer key: %s", env.Data)
	}
	var started service.StartResult
	if err := json.Unmarshal(env.Data, &started); err != nil {
		t.Fatal(err)
	}
	if started.AttemptID == "" || started.AttemptNumber != 1 || len(started.Definition.Questions) != 2 {
		t.Fatalf("start = %+v", started)
	}

	answerPath := "/api/attempts/" + started.AttemptID + "/answers"
	for i := 0; i < 2; i++ {
		w, _ = s.do(t, http.MethodPost, answerPath, tok, `{"question_index":0,"answer":"b"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("record status = %d body %s", w.Code, w.Body.String())
		}
	}
	w, _ = s.do(t, http.MethodPost, "/api/assessment/record_answer", tok,
		`{"attempt_id":"`+started.AttemptID+`","question_index":1,"answer":" paris "}`)
	if w.Code != http.StatusOK {
		t.Fatalf("body-form record status = %d body %s", w.Code, w.Body.String())
	}

	w, env = s.do(t, http.MethodPost, s.path("/api/assessments/{id}/start"), tok, "")
	if w.Code != http.StatusOK {
		t.Fatalf("resume status = %d", w.Code)
	}
	var resumed service.StartResult
	json.Unmarshal(env.Data, &resumed)
	if !resumed.Resumed || resumed.AttemptID != started.AttemptID || len(resumed.ExistingAnswers) != 2 {
		t.Fatalf("resume = %+v", resumed)
	}

	submitPath := "/api/attempts/" + started.AttemptID + "/submit"
	w, env = s.do(t, http.MethodPost, submitPath, tok, "")
	if w.Code != http.StatusOK {
		t.Fatalf("submit status = %d body %s", w.Code, w.Body.String())
	}
	var result service.SubmitResult
	json.Unmarshal(env.Data, &result)
	if result.ScorePercentage != 100 || result.Status != model.AttemptCompleted || result.CorrectCount != 2 || result.PassPercentage != 70 {
		t.Fatalf("submit = %+v", result)
	}

	w, env = s.do(t, http.MethodPost, submitPath, tok, `{"answers":{"0":"A"}}`)
	if w.Code != http.StatusConflict || env.Reason != "attempt_already_finalized" {
		t.Fatalf("resubmit = %d %+v", w.Code, env)
	}

	w, env = s.do(t, http.MethodPost, s.path("/api/assessments/{id}/start"), tok, "")
	if w.Code != http.StatusConflict || env.Reason != "max_attempts_exceeded" {
		t.Fatalf("start over cap = %d %+v", w.Code, env)
	}

	w, env = s.do(t, http.MethodGet, "/api/attempts/"+started.AttemptID, tok, "")
	if w.Code != http.StatusOK || !bytes.Contains(env.Data, []byte(`"score_percentage":100`)) {
		t.Fatalf("get attempt = %d %s", w.Code, env.Data)
	}
	w, env = s.do(t, http.MethodGet, "/api/attempts/"+started.AttemptID, token(t, 8, model.Student), "")
	if w.Code != http.StatusForbidden || env.Reason != "attempt_not_owned" {
		t.Fatalf("get other attempt = %d %+v", w.Code, env)
	}

	w, env = s.do(t, http.MethodGet, s.path("/api/assessments/{id}/attempts"), tok, "")
	var list []model.Attempt
	json.Unmarshal(env.Data, &list)
	if w.Code != http.StatusOK || len(list) != 1 {
		t.Fatalf("list = %d %s", w.Code, env.Data)
	}
}

func TestSubmitWithSnapshotByBody(t *testing.T) {
	s := newTestServer(t)
	tok := token(t, 7, model.Student)

	_, env := s.do(t, http.MethodPost, "/api/assessment/start", tok, `{"assessment_id":`+jsonNumber(s.assessmentID)+`}`)
	var started service.StartResult
	json.Unmarshal(env.Data, &started)
	if started.AttemptID == "" {
		t.Fatalf("start by body = %+v", env)
	}

	body := `{"attempt_id":"` + started.AttemptID + `","answers":{"0":{"answer":"A"},"1":{"answer":"paris"}},"time_spent_seconds":12}`
	w, env := s.do(t, http.MethodPost, "/api/assessment/submit", tok, body)
	if w.Code != http.StatusOK {
		t.Fatalf("submit status = %d body %s", w.Code, w.Body.String())
	}
	var result service.SubmitResult
	json.Unmarshal(env.Data, &result)
	if result.ScorePercentage != 50 || result.Status != model.AttemptFailed {
		t.Fatalf("submit = %+v", result)
	}
}

func TestAssessmentErrors(t *testing.T) {
	s := newTestServer(t)
	student := token(t, 7, model.Student)

	_, env := s.do(t, http.MethodPost, s.path("/api/assessments/{id}/start"), student, "")
	var started service.StartResult
	json.Unmarshal(env.Data, &started)
	answers := "/api/attempts/" + started.AttemptID + "/answers"

	tests := []struct {
		name   string
		method string
		path   string
		tok    string
		body   string
		status int
		reason string
	}{
		{"no token", http.MethodPost, s.path("/api/assessments/{id}/start"), "", "", http.StatusUnauthorized, ""},
		{"unknown assessment", http.MethodPost, "/api/assessments/999/start", student, "", http.StatusNotFound, "assessment_not_found"},
		{"bad assessment id", http.MethodPost, "/api/assessments/abc/start", student, "", http.StatusNotFound, "assessment_not_found"},
		{"teacher cannot take", http.MethodPost, s.path("/api/assessments/{id}/start"), token(t, 9, model.Teacher), "", http.StatusForbidden, "permission_denied"},
		{"missing index", http.MethodPost, answers, student, `{"answer":"A"}`, http.StatusBadRequest, "invalid_answer_payload"},
		{"index out of range", http.MethodPost, answers, student, `{"question_index":5,"answer":"A"}`, http.StatusBadRequest, "invalid_answer_payload"},
		{"malformed json", http.MethodPost, answers, student, `{"question_index":`, http.StatusBadRequest, "invalid_answer_payload"},
		{"unknown attempt", http.MethodPost, "/api/attempts/nope/answers", student, `{"question_index":0}`, http.StatusNotFound, "attempt_not_found"},
		{"negative time", http.MethodPost, "/api/attempts/" + started.AttemptID + "/submit", student, `{"time_spent_seconds":-1}`, http.StatusBadRequest, "invalid_answer_payload"},
		{"bad answer key", http.MethodPost, "/api/attempts/" + started.AttemptID + "/submit", student, `{"answers":{"x":"A"}}`, http.StatusBadRequest, "invalid_answer_payload"},
		{"student preview", http.MethodPost, s.path("/api/assessments/{id}/preview"), student, `{"answers":{}}`, http.StatusForbidden, "permission_denied"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := s.do(t, tt.method, tt.path, tt.tok, tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d, body %s", w.Code, tt.status, w.Body.String())
			}
			if env.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", env.Reason, tt.reason)
			}
		})
	}

	w, env := s.do(t, http.MethodPost, s.path("/api/assessments/{id}/preview"), token(t, 9, model.Teacher), `{"answers":{"0":"B"}}`)
	if w.Code != http.StatusOK || !bytes.Contains(env.Data, []byte(`"percentage":50`)) {
		t.Fatalf("teacher preview = %d %s", w.Code, env.Data)
	}
}
