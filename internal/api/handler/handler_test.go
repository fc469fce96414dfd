package handler_test

import (
	"bytes"
	"complaintdesk/backend/internal/api/handler"
	"complaintdesk/backend/internal/auth"
	"complaintdesk/backend/internal/changefeed"
	"complaintdesk/backend/internal/complaint"
	"complaintdesk/backend/internal/models"
	"complaintdesk/backend/internal/storage/storagetest"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	studentID = "11111111-1111-1111-1111-111111111111"
	otherID   = "22222222-2222-2222-2222-222222222222"
	adminID   = "33333333-3333-3333-3333-333333333333"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAttachments struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (f *fakeAttachments) Put(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[name] = data
	return "https://storage.example.com/bucket/" + name, nil
}

type testEnv struct {
	router   *gin.Engine
	store    *storagetest.MemStore
	hub      *changefeed.Hub
	files    *fakeAttachments
	verifier *auth.TokenVerifier
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	store := storagetest.NewMemStore()
	require.NoError(t, store.SetRole(context.Background(), adminID, models.RoleAdmin))
	store.AddProfile(models.Profile{ID: studentID, Email: "asha@example.com", Name: "Asha"})

	hub := changefeed.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	verifier := auth.NewTokenVerifier("test-secret", "complaintdesk-test")
	svc := complaint.NewService(store, hub)
	h := handler.NewHandler(svc, store, auth.NewAuthenticator(verifier, store), hub)
	files := &fakeAttachments{objects: make(map[string][]byte)}
	h.Attachments = files
	h.Now = func() time.Time { return time.UnixMilli(1709283600123) }

	r := gin.New()
	h.RegisterRoutes(r)
	return &testEnv{router: r, store: store, hub: hub, files: files, verifier: verifier}
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := e.verifier.Issue(userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(t, userID))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (e *testEnv) createWiFi(t *testing.T) models.Complaint {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/complaints", studentID, map[string]string{
		"title":       "Wi-Fi down",
		"category":    "Working Hub",
		"description": "Lab 2 offline",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Complaint](t, w)
}

func TestComplaintLifecycle(t *testing.T) {
	env := newEnv(t)
	c := env.createWiFi(t)
	assert.Equal(t, models.StatusOpen, c.Status)
	assert.Equal(t, studentID, c.StudentID)

	w := env.do(t, http.MethodPatch, "/api/v1/complaints/"+c.ID+"/status", adminID, map[string]string{
		"status": "In Progress", "remarks": "Checking router",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusInProgress, decode[models.Complaint](t, w).Status)

	w = env.do(t, http.MethodPatch, "/api/v1/complaints/"+c.ID+"/status", adminID, map[string]string{
		"status": "Resolved", "remarks": "Fixed",
	})
	require.Equal(t, http.StatusOK, w.Code)
	resolved := decode[models.Complaint](t, w)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, adminID, *resolved.ResolvedBy)

	w = env.do(t, http.MethodGet, "/api/v1/complaints/"+c.ID+"/history", studentID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[[]models.StatusHistoryEntry](t, w)
	require.Len(t, history, 2)
	assert.Equal(t, models.StatusInProgress, history[0].OldStatus)
	assert.Equal(t, models.StatusResolved, history[0].NewStatus)

	w = env.do(t, http.MethodGet, "/api/v1/complaints/"+c.ID, studentID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusResolved, decode[models.Complaint](t, w).Status)
}

func TestErrorMapping(t *testing.T) {
	env := newEnv(t)
	c := env.createWiFi(t)

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   any
		want   int
	}{
		{"no token", http.MethodGet, "/api/v1/complaints", "", nil, http.StatusUnauthorized},
		{"empty title", http.MethodPost, "/api/v1/complaints", studentID, map[string]string{"category": "Peer", "description": "d"}, http.StatusBadRequest},
		{"bad category", http.MethodPost, "/api/v1/complaints", studentID, map[string]string{"title": "t", "category": "Canteen", "description": "d"}, http.StatusBadRequest},
		{"bad status", http.MethodPatch, "/api/v1/complaints/" + c.ID + "/status", adminID, map[string]string{"status": "Closed"}, http.StatusBadRequest},
		{"student transition", http.MethodPatch, "/api/v1/complaints/" + c.ID + "/status", studentID, map[string]string{"status": "Resolved"}, http.StatusForbidden},
		{"unknown complaint", http.MethodPatch, "/api/v1/complaints/00000000-0000-0000-0000-000000000000/status", adminID, map[string]string{"status": "Resolved"}, http.StatusNotFound},
		{"other student's complaint", http.MethodGet, "/api/v1/complaints/" + c.ID, otherID, nil, http.StatusNotFound},
		{"student stats", http.MethodGet, "/api/v1/stats", studentID, nil, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), "error")
		})
	}
	assert.Equal(t, 0, env.store.HistoryCount())
}

func TestPersistenceErrorIsHidden(t *testing.T) {
	env := newEnv(t)
	env.store.FailOn("ListComplaintsForOwner", errors.New("pq: connection refused"))

	w := env.do(t, http.MethodGet, "/api/v1/complaints", studentID, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "pq:")
}

func TestMalformedComplaintIDIsNotFound(t *testing.T) {
	env := newEnv(t)
	uuidErr := errors.New("pq: invalid input syntax for type uuid")
	env.store.FailOn("GetComplaint", uuidErr)
	env.store.FailOn("GetComplaintForUpdate", uuidErr)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"get", http.MethodGet, "/api/v1/complaints/not-a-uuid", nil},
		{"history", http.MethodGet, "/api/v1/complaints/not-a-uuid/history", nil},
		{"transition", http.MethodPatch, "/api/v1/complaints/not-a-uuid/status", map[string]string{"status": "Resolved"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, adminID, tt.body)
			assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
		})
	}
}

func TestListComplaints_Scope(t *testing.T) {
	env := newEnv(t)
	env.createWiFi(t)
	w := env.do(t, http.MethodPost, "/api/v1/complaints", otherID, map[string]string{
		"title": "Noise", "category": "Peer", "description": "Loud",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/complaints", studentID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Complaint](t, w), 1)

	w = env.do(t, http.MethodGet, "/api/v1/complaints", adminID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Complaint](t, w), 2)
}

func TestStats(t *testing.T) {
	env := newEnv(t)
	env.createWiFi(t)

	w := env.do(t, http.MethodGet, "/api/v1/stats", adminID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]any](t, w)
	assert.EqualValues(t, 1, body["total"])
	assert.EqualValues(t, 1, body["pending"])
	assert.EqualValues(t, 1, body["by_status"].(map[string]any)["Open"])
	assert.EqualValues(t, 1, body["by_category"].(map[string]any)["Working Hub"])
}

func TestMe(t *testing.T) {
	env := newEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/me", studentID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[map[string]string](t, w)
	assert.Equal(t, "student", me["role"])
	assert.Equal(t, "Asha", me["name"])
	assert.Equal(t, "asha@example.com", me["email"])

	w = env.do(t, http.MethodGet, "/api/v1/me", adminID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me = decode[map[string]string](t, w)
	assert.Equal(t, "admin", me["role"])
	assert.Equal(t, "Student", me["name"])
}

func multipartUpload(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadAttachment(t *testing.T) {
	env := newEnv(t)
	body, contentType := multipartUpload(t, "file", "router.PNG", []byte("png-bytes"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/attachments", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+env.token(t, studentID))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[map[string]string](t, w)
	assert.Equal(t, studentID+"/1709283600123.png", resp["name"])
	assert.Equal(t, "https://storage.example.com/bucket/"+studentID+"/1709283600123.png", resp["url"])
	assert.Equal(t, []byte("png-bytes"), env.files.objects[resp["name"]])
}

func TestUploadAttachment_Errors(t *testing.T) {
	env := newEnv(t)

	body, contentType := multipartUpload(t, "document", "a.pdf", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/attachments", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+env.token(t, studentID))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.files.err = errors.New("bucket gone")
	body, contentType = multipartUpload(t, "file", "a.pdf", []byte("x"))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/attachments", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+env.token(t, studentID))
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHealthz(t *testing.T) {
	env := newEnv(t)
	w := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServeWebSocket_StudentSeesOwnRows(t *testing.T) {
	env := newEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws?access_token=" + env.token(t, studentID)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	got := make(chan changefeed.Event, 4)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var evt changefeed.Event
			if json.Unmarshal(data, &evt) == nil {
				select {
				case got <- evt:
				default:
				}
			}
		}
	}()

	// The subscription is registered asynchronously; keep producing rows until one arrives.
	deadline := time.After(3 * time.Second)
	for {
		w := env.do(t, http.MethodPost, "/api/v1/complaints", otherID, map[string]string{
			"title": "Noise", "category": "Peer", "description": "Loud",
		})
		require.Equal(t, http.StatusCreated, w.Code)
		mine := env.createWiFi(t)

		select {
		case evt := <-got:
			assert.Equal(t, changefeed.TableComplaints, evt.Table)
			assert.Equal(t, changefeed.KindInsert, evt.Kind)
			assert.Equal(t, studentID, evt.OwnerID)
			assert.NotEmpty(t, mine.ID)
			return
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("no event received")
		}
	}
}

func TestServeWebSocket_RequiresToken(t *testing.T) {
	env := newEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
