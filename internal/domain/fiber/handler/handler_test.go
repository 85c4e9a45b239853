package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fadilmartias/questy/internal/authcache"
	"github.com/fadilmartias/questy/internal/config"
	"github.com/fadilmartias/questy/internal/domain/fiber/handler"
	"github.com/fadilmartias/questy/internal/dto"
	"github.com/fadilmartias/questy/internal/gate"
	"github.com/fadilmartias/questy/internal/interview"
	"github.com/fadilmartias/questy/internal/localstore"
	"github.com/fadilmartias/questy/internal/middleware"
	"github.com/fadilmartias/questy/internal/model"
	"github.com/fadilmartias/questy/internal/realm"
	"github.com/fadilmartias/questy/internal/realm/realmtest"
	"github.com/fadilmartias/questy/internal/repository"
	"github.com/fadilmartias/questy/internal/repository/repotest"
	"github.com/fadilmartias/questy/internal/service"
	"github.com/fadilmartias/questy/internal/usecase"
	"github.com/fadilmartias/questy/pkg/log"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type idleWorkflow struct{}

func (idleWorkflow) StartInterview(context.Context, interview.StartRequest) error { return nil }
func (idleWorkflow) LatestQuestion(context.Context, string) (interview.Poll, error) {
	return interview.Poll{}, nil
}
func (idleWorkflow) SubmitAnswer(context.Context, interview.AnswerRequest) (interview.AnswerReply, error) {
	return interview.AnswerReply{}, nil
}

type tokenRecorder struct{ tokens []string }

func (r *tokenRecorder) Upload(_ context.Context, token, _, _ string, _ []byte) error {
	r.tokens = append(r.tokens, token)
	return nil
}

type fixedSearch struct{}

func (fixedSearch) Search(_ context.Context, companyID, requirements string) (*dto.HRSearchRecord, error) {
	return &dto.HRSearchRecord{
		HRCompanyID:      companyID,
		RequirementsText: requirements,
		MatchingResults: []model.MatchResult{
			{StudentID: "s1", Name: "Jane", Rank: 1, Score: 0.9},
			{StudentID: "s2", Name: "Ann", Rank: 2, Score: 0.8},
		},
	}, nil
}

type testApp struct {
	app     *fiber.App
	srv     *realmtest.Server
	uploads *tokenRecorder
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	srv := realmtest.New(t)
	student := realm.NewClient(srv.Config(realm.RoleStudent), log.Nop())
	recruiter := realm.NewClient(srv.Config(realm.RoleRecruiter), log.Nop())
	clients := []*realm.Client{student, recruiter}
	t.Cleanup(authcache.NewProjector(log.Nop()).Attach(clients...))
	g := gate.New(clients, &config.GateConfig{MaxAttempts: 1, Interval: time.Millisecond}, log.Nop())

	db := repotest.Open(t)
	profiles := repository.NewProfileRepository(db)
	cvs := repository.NewStudentCVRepository(db)
	summaries := repository.NewStudentSummaryRepository(db)

	authUC := usecase.NewAuthUsecase(clients, profiles, repository.NewOrphanedIdentityRepository(db), usecase.AuthOptions{
		SignUpAttempts:         1,
		SignUpRetryDelay:       time.Millisecond,
		ProfileWriteMaxElapsed: 20 * time.Millisecond,
	}, log.Nop())

	registry := interview.NewRegistry(idleWorkflow{}, interview.Options{MaxQuestions: 20},
		interview.PollerOptions{Interval: 10 * time.Millisecond}, log.Nop())
	t.Cleanup(registry.Close)
	uploads := &tokenRecorder{}
	interviewUC := usecase.NewInterviewUsecase(registry, summaries, cvs, uploads, 1<<20, log.Nop())

	links := service.NewStorageService("http://127.0.0.1:1", "cv", "anon", log.Nop())
	matchingUC := usecase.NewMatchingUsecase(fixedSearch{}, repository.NewHRNeedRepository(db), cvs, summaries, links,
		usecase.MatchingOptions{LookupTimeout: time.Second}, log.Nop())

	app := fiber.New()
	app.Use(middleware.Device(localstore.NewMemoryProvider(time.Hour)))
	handler.NewLegacyHandler(authUC, g).RegisterRoutes(app)
	handler.NewAuthHandler(authUC, g).RegisterRoutes(app)
	handler.NewInterviewHandler(interviewUC, g).RegisterRoutes(app)
	handler.NewMatchingHandler(matchingUC, g).RegisterRoutes(app)
	return &testApp{app: app, srv: srv, uploads: uploads}
}

type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Details    json.RawMessage `json:"details"`
	Pagination map[string]any  `json:"pagination"`
}

func (a *testApp) do(t *testing.T, method, path, device, contentType string, body io.Reader) (*http.Response, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if device != "" {
		req.Header.Set(middleware.HeaderDeviceID, device)
	}
	resp, err := a.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()
	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

func (a *testApp) json(t *testing.T, method, path, device string, body any) (*http.Response, envelope) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	return a.do(t, method, path, device, fiber.MIMEApplicationJSON, r)
}

func (a *testApp) login(t *testing.T, role, email, password string) string {
	t.Helper()
	device := uuid.NewString()
	resp, env := a.json(t, http.MethodPost, "/api/auth/"+role+"/login", device, map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	return device
}

func TestHealth(t *testing.T) {
	a := newTestApp(t)
	resp, env := a.json(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var data struct {
		Status    string   `json:"status"`
		Timestamp string   `json:"timestamp"`
		Endpoints []string `json:"endpoints"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "healthy", data.Status)
	assert.NotEmpty(t, data.Timestamp)
	assert.Len(t, data.Endpoints, 5)
	_, err := uuid.Parse(resp.Header.Get(middleware.HeaderDeviceID))
	assert.NoError(t, err, "a device id is issued")
}

func TestRegisterThenSession(t *testing.T) {
	a := newTestApp(t)
	device := uuid.NewString()

	resp, env := a.json(t, http.MethodPost, "/api/auth/student/register", device, map[string]string{
		"name": "Jane Doe", "university": "MIT", "email": "jane@mit.edu",
		"password": "abc123", "confirm_password": "abc123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)
	assert.Equal(t, device, resp.Header.Get(middleware.HeaderDeviceID))

	_, env = a.json(t, http.MethodGet, "/api/auth/student/session?from=/interview", device, nil)
	var d gate.Decision
	require.NoError(t, json.Unmarshal(env.Data, &d))
	assert.Equal(t, gate.StateAuthenticated, d.State)
	assert.Equal(t, "/interview", d.From)

	_, env = a.json(t, http.MethodGet, "/api/auth/recruiter/session", device, nil)
	require.NoError(t, json.Unmarshal(env.Data, &d))
	assert.Equal(t, gate.StateWrongRole, d.State)
	assert.Equal(t, "/", d.Redirect)

	resp, _ = a.json(t, http.MethodPost, "/api/auth/student/logout", device, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_, env = a.json(t, http.MethodGet, "/api/auth/student/session", device, nil)
	require.NoError(t, json.Unmarshal(env.Data, &d))
	assert.Equal(t, gate.StateUnauthenticated, d.State)
	assert.Equal(t, "/student", d.Redirect)
}

func TestRegisterValidationErrorCarriesFields(t *testing.T) {
	a := newTestApp(t)
	resp, env := a.json(t, http.MethodPost, "/api/auth/recruiter/register", "", map[string]string{
		"name": "Ann", "company": "Acme", "email": "ann@acme.io", "phone": "555",
		"password": "Secret1!", "confirm_password": "Secret2!",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var fields map[string]string
	require.NoError(t, json.Unmarshal(env.Details, &fields))
	assert.Contains(t, fields, "confirm_password")
	assert.Zero(t, a.srv.TotalCalls())
}

func TestUnknownRole(t *testing.T) {
	a := newTestApp(t)
	resp, _ := a.json(t, http.MethodPost, "/api/auth/admin/login", "", map[string]string{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGatedRoutes(t *testing.T) {
	a := newTestApp(t)
	a.srv.AddUser("ann@acme.io", "Secret1!", realm.Metadata{FullName: "Ann", Role: realm.RoleRecruiter})

	resp, env := a.json(t, http.MethodGet, "/api/interview", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var d gate.Decision
	require.NoError(t, json.Unmarshal(env.Details, &d))
	assert.Equal(t, "/student", d.Redirect)

	recruiter := a.login(t, realm.RoleRecruiter, "ann@acme.io", "Secret1!")
	resp, env = a.json(t, http.MethodGet, "/api/interview", recruiter, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "You are signed in with a different role", env.Message)
	require.NoError(t, json.Unmarshal(env.Details, &d))
	assert.Equal(t, gate.StateWrongRole, d.State)
	assert.Equal(t, "/", d.Redirect)

	resp, _ = a.json(t, http.MethodGet, "/api/verify-recruiter", recruiter, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func multipartBody(t *testing.T, fields map[string]string, filename string, content []byte) (string, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		fw, err := w.CreateFormFile("cv", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return w.FormDataContentType(), buf
}

func TestInterviewStart(t *testing.T) {
	a := newTestApp(t)
	a.srv.AddUser("jane@mit.edu", "abc123", realm.Metadata{FullName: "Jane", Role: realm.RoleStudent})
	device := a.login(t, realm.RoleStudent, "jane@mit.edu", "abc123")

	_, env := a.json(t, http.MethodGet, "/api/interview", device, nil)
	var st interview.State
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, interview.StageStart, st.Stage)

	ct, body := multipartBody(t, map[string]string{"name": "Jane"}, "", nil)
	resp, env := a.do(t, http.MethodPost, "/api/interview/start", device, ct, body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var fields map[string]string
	require.NoError(t, json.Unmarshal(env.Details, &fields))
	assert.Contains(t, fields, "phone")
	assert.Contains(t, fields, "cv")

	ct, body = multipartBody(t, map[string]string{"name": "Jane", "phone": "555"}, "cv.txt", []byte("Jane Doe, MIT"))
	resp, env = a.do(t, http.MethodPost, "/api/interview/start", device, ct, body)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, interview.StageInterview, st.Stage)
	require.Len(t, a.uploads.tokens, 1)
	assert.NotEmpty(t, a.uploads.tokens[0], "the student's token is used for the upload")

	resp, _ = a.json(t, http.MethodPost, "/api/interview/answer", device, map[string]string{"answer": "hi"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "no question has arrived yet")

	resp, _ = a.json(t, http.MethodDelete, "/api/interview", device, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMatchingFlow(t *testing.T) {
	a := newTestApp(t)
	a.srv.AddUser("ann@acme.io", "Secret1!", realm.Metadata{FullName: "Ann", Role: realm.RoleRecruiter})
	device := a.login(t, realm.RoleRecruiter, "ann@acme.io", "Secret1!")

	resp, _ := a.json(t, http.MethodPost, "/api/matching/search", device, map[string]string{"requirements_text": " "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, env := a.json(t, http.MethodPost, "/api/matching/search", device, map[string]string{"requirements_text": "Go"})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	var view usecase.WorkspaceView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, usecase.ViewResults, view.View)
	require.NotNil(t, view.Current)
	id := view.Current.ID

	resp, env = a.json(t, http.MethodPost, "/api/matching/unlock", device, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	var unlocked []model.MatchResult
	require.NoError(t, json.Unmarshal(env.Data, &unlocked))
	assert.Len(t, unlocked, 2)

	_, env = a.json(t, http.MethodPost, "/api/matching/new", device, nil)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, usecase.ViewSearch, view.View)

	resp, env = a.json(t, http.MethodGet, "/api/matching/history?page=1&page_size=5", device, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var records []dto.HRSearchRecord
	require.NoError(t, json.Unmarshal(env.Data, &records))
	require.Len(t, records, 1)
	assert.EqualValues(t, 1, env.Pagination["total_items"])

	resp, env = a.json(t, http.MethodPost, "/api/matching/history/"+id+"/select", device, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, id, view.Current.ID)

	resp, _ = a.json(t, http.MethodPost, "/api/matching/history/"+uuid.NewString()+"/select", device, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLegacyRegisterAndLogin(t *testing.T) {
	a := newTestApp(t)

	resp, env := a.json(t, http.MethodPost, "/api/register", "", map[string]string{"mail": "ann@acme.io"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var details usecase.MissingFieldsDetails
	require.NoError(t, json.Unmarshal(env.Details, &details))
	assert.Equal(t, []string{"name", "company", "password"}, details.MissingFields)

	body := map[string]string{"fullName": "Ann Lee", "companyName": "Acme", "email": "ann@acme.io", "password": "Secret1!"}
	resp, env = a.json(t, http.MethodPost, "/api/register", "", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)

	resp, _ = a.json(t, http.MethodPost, "/api/register", "", body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, env = a.json(t, http.MethodPost, "/api/login", "", map[string]string{"email": "ann@acme.io", "password": "Secret1!"})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	var res usecase.LegacyLoginResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "Ann Lee", res.User.Name)
	assert.Equal(t, "Acme", res.User.Company)
	assert.NotEmpty(t, res.Token)
}
