package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/appdotbuilder/vehicle-refuel-manager/internal/middleware"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/model"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/repository"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/service"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type envelope struct {
	Status     string            `json:"status"`
	StatusCode int               `json:"status_code"`
	Data       json.RawMessage   `json:"data"`
	Error      string            `json:"error"`
	Errors     map[string]string `json:"errors"`
}

type testServer struct {
	router      *gin.Engine
	distributor string
	sales       string
	shift       string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	log, _ := testutil.NullLogger()
	auth := middleware.NewAuthenticator([]byte(testutil.Secret), false)

	refuelingService := service.NewRefuelingService(
		repository.NewRefuelingRepository(db),
		repository.NewTransactionManager(db),
		log,
	)
	userService := service.NewUserService(repository.NewUserRepository(db), []byte(testutil.Secret), time.Hour)

	r := gin.New()
	api := r.Group("")
	NewRefuelingHandler(refuelingService).RegisterRoutes(api, auth.Authenticate())
	NewUserHandler(userService, auth, time.Hour).RegisterRoutes(api)

	return &testServer{
		router:      r,
		distributor: testutil.SignToken(t, testutil.CreateUser(t, db, model.RoleDistributor, "Dina"), time.Hour),
		sales:       testutil.SignToken(t, testutil.CreateUser(t, db, model.RoleSales, "Sam"), time.Hour),
		shift:       testutil.SignToken(t, testutil.CreateUser(t, db, model.RoleShift, "Shiro"), time.Hour),
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, env
}

func decodeData(t *testing.T, env envelope, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}

func TestRefuelingHandler_Workflow(t *testing.T) {
	s := newTestServer(t)
	payload := gin.H{"deliveryOrderNumber": "DO-2024-001", "vehiclePlate": "B1234ABC", "distributorName": "PT Test"}

	code, env := s.do(t, http.MethodPost, "/requests", s.distributor, payload)
	if code != http.StatusCreated {
		t.Fatalf("create: %d %+v", code, env)
	}
	var created service.RefuelingRequestResponse
	decodeData(t, env, &created)
	if created.Status != "pending" || created.DeliveryOrderNumber != "DO-2024-001" {
		t.Fatalf("created: %+v", created)
	}
	path := "/requests/" + created.ID

	code, env = s.do(t, http.MethodPost, "/requests", s.distributor, payload)
	if code != http.StatusUnprocessableEntity || env.Errors["deliveryOrderNumber"] != "This Delivery Order Number already exists." {
		t.Fatalf("duplicate: %d %+v", code, env)
	}

	code, env = s.do(t, http.MethodPost, "/requests", s.sales, payload)
	if code != http.StatusForbidden || env.Error != "Unauthorized action." {
		t.Fatalf("sales create: %d %+v", code, env)
	}

	code, env = s.do(t, http.MethodGet, "/requests?role=sales", s.sales, nil)
	if code != http.StatusOK {
		t.Fatalf("sales list: %d %+v", code, env)
	}
	var list service.RefuelingListResponse
	decodeData(t, env, &list)
	if list.Meta.Total != 1 || list.UserRole != model.RoleSales || list.CanCreateRequest {
		t.Fatalf("sales list: %+v", list)
	}

	if code, _ := s.do(t, http.MethodGet, "/requests?role=shift", s.sales, nil); code != http.StatusForbidden {
		t.Fatalf("role mismatch: %d", code)
	}

	if code, env := s.do(t, http.MethodPatch, path, s.sales, gin.H{"action": "reject"}); code != http.StatusUnprocessableEntity || env.Errors["rejectionReason"] == "" {
		t.Fatalf("reject without reason: %d %+v", code, env)
	}
	if code, env := s.do(t, http.MethodPatch, path, s.sales, gin.H{"action": "archive"}); code != http.StatusUnprocessableEntity || env.Errors["action"] == "" {
		t.Fatalf("unknown action: %d %+v", code, env)
	}

	code, env = s.do(t, http.MethodPatch, path, s.sales, gin.H{"action": "approve"})
	if code != http.StatusOK {
		t.Fatalf("approve: %d %+v", code, env)
	}
	if code, _ := s.do(t, http.MethodPatch, path, s.sales, gin.H{"action": "approve"}); code != http.StatusForbidden {
		t.Fatalf("approve twice: %d", code)
	}
	if code, _ := s.do(t, http.MethodPatch, path, s.distributor, gin.H{"vehiclePlate": "X"}); code != http.StatusForbidden {
		t.Fatalf("edit approved: %d", code)
	}
	if code, _ := s.do(t, http.MethodDelete, path, s.distributor, nil); code != http.StatusForbidden {
		t.Fatalf("delete approved: %d", code)
	}

	code, env = s.do(t, http.MethodPatch, path, s.shift, gin.H{"action": "complete"})
	if code != http.StatusOK {
		t.Fatalf("complete: %d %+v", code, env)
	}
	var completed service.RefuelingRequestResponse
	decodeData(t, env, &completed)
	if completed.Status != "completed" || completed.ApproverName != "Sam" {
		t.Fatalf("completed: %+v", completed)
	}
}

func TestRefuelingHandler_EditAndDelete(t *testing.T) {
	s := newTestServer(t)
	code, env := s.do(t, http.MethodPost, "/requests", s.distributor,
		gin.H{"deliveryOrderNumber": "DO-1", "vehiclePlate": "B1", "distributorName": "PT"})
	if code != http.StatusCreated {
		t.Fatalf("create: %d %+v", code, env)
	}
	var created service.RefuelingRequestResponse
	decodeData(t, env, &created)
	path := "/requests/" + created.ID

	code, env = s.do(t, http.MethodPatch, path, s.distributor, gin.H{"vehiclePlate": "B2"})
	var edited service.RefuelingRequestResponse
	decodeData(t, env, &edited)
	if code != http.StatusOK || edited.VehiclePlate != "B2" || edited.DeliveryOrderNumber != "DO-1" {
		t.Fatalf("edit: %d %+v", code, edited)
	}

	if code, _ := s.do(t, http.MethodDelete, path, s.sales, nil); code != http.StatusForbidden {
		t.Fatalf("sales delete: %d", code)
	}
	if code, _ := s.do(t, http.MethodDelete, path, s.distributor, nil); code != http.StatusOK {
		t.Fatalf("delete: %d", code)
	}
	if code, _ := s.do(t, http.MethodGet, path, s.distributor, nil); code != http.StatusNotFound {
		t.Fatalf("get deleted: %d", code)
	}
}

func TestRefuelingHandler_BadInput(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		want   int
	}{
		{"no token", http.MethodGet, "/requests", "", nil, http.StatusUnauthorized},
		{"bad id", http.MethodGet, "/requests/not-a-uuid", s.sales, nil, http.StatusBadRequest},
		{"missing", http.MethodGet, "/requests/" + uuid.NewString(), s.sales, nil, http.StatusNotFound},
		{"malformed json", http.MethodPost, "/requests", s.distributor, "{", http.StatusBadRequest},
		{"empty fields", http.MethodPost, "/requests", s.distributor, gin.H{}, http.StatusUnprocessableEntity},
		{"patch missing", http.MethodPatch, "/requests/" + uuid.NewString(), s.sales, gin.H{"action": "approve"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if code, env := s.do(t, tc.method, tc.path, tc.token, tc.body); code != tc.want {
				t.Fatalf("status = %d, want %d (%+v)", code, tc.want, env)
			}
		})
	}
}

func TestUserHandler_Session(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodPost, "/register", "", gin.H{
		"name": "Rina", "email": "rina@example.com", "password": "password1", "role": "distributor",
	})
	if code != http.StatusCreated {
		t.Fatalf("register: %d %+v", code, env)
	}
	if code, _ := s.do(t, http.MethodPost, "/register", "", gin.H{
		"name": "Rina", "email": "rina@example.com", "password": "password1", "role": "distributor",
	}); code != http.StatusUnprocessableEntity {
		t.Fatalf("duplicate register: %d", code)
	}

	if code, _ := s.do(t, http.MethodPost, "/login", "", gin.H{"email": "rina@example.com", "password": "nope-nope"}); code != http.StatusUnauthorized {
		t.Fatalf("bad login: %d", code)
	}

	raw, _ := json.Marshal(gin.H{"email": "rina@example.com", "password": "password1"})
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	var cookie *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == middleware.AccessTokenCookie {
			cookie = ck
		}
	}
	if cookie == nil || cookie.Value == "" {
		t.Fatalf("login did not set the token cookie")
	}

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("me: %d %s", w.Code, w.Body.String())
	}
	var env2 envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env2)
	var me service.UserResponse
	decodeData(t, env2, &me)
	if me.Email != "rina@example.com" || me.Role != model.RoleDistributor {
		t.Fatalf("me: %+v", me)
	}

	if code, _ := s.do(t, http.MethodPost, "/logout", "", nil); code != http.StatusOK {
		t.Fatalf("logout: %d", code)
	}
}

func TestWriteError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err  error
		want int
	}{
		{&service.ValidationError{Fields: map[string]string{"x": "bad"}}, http.StatusUnprocessableEntity},
		{fmt.Errorf("wrapped: %w", service.ErrForbidden), http.StatusForbidden},
		{service.ErrNotFound, http.StatusNotFound},
		{service.ErrUserNotFound, http.StatusNotFound},
		{service.ErrConflict, http.StatusConflict},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		writeError(c, tc.err)
		if w.Code != tc.want {
			t.Errorf("%v: status = %d, want %d", tc.err, w.Code, tc.want)
		}
	}
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", Health)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.Code != http.StatusOK || body["status"] != "OK" {
		t.Fatalf("health: %d %v", w.Code, body)
	}
	if _, err := time.Parse(time.RFC3339, body["timestamp"]); err != nil {
		t.Fatalf("timestamp %q: %v", body["timestamp"], err)
	}
}
