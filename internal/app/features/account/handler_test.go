package account_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/questhub/internal/app/features/account"
	userstore "github.com/dalemusser/questhub/internal/app/store/users"
	"github.com/dalemusser/questhub/internal/app/system/auth"
	"github.com/dalemusser/questhub/internal/app/system/ratelimit"
	"github.com/dalemusser/questhub/internal/domain/models"
	"github.com/dalemusser/questhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type session struct {
	User struct {
		ID       string `json:"id"`
		FullName string `json:"full_name"`
		Email    string `json:"email"`
		Role     string `json:"role"`
		Level    int    `json:"level"`
	} `json:"user"`
	Token string `json:"token"`
}

func newHandler(t *testing.T, ipLimit int) (*account.Handler, *mongo.Database, *auth.SessionManager) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	sm, err := auth.NewSessionManager("test-session-key-must-be-32-chars-long", "test-session", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	if err := sm.EnableTokens("test-jwt-secret-that-is-long-enough!!", time.Hour); err != nil {
		t.Fatalf("EnableTokens: %v", err)
	}
	limiter := ratelimit.NewLoginLimiter(ipLimit)
	t.Cleanup(limiter.Close)
	return account.NewHandler(db, sm, limiter, nil, false, zap.NewNop()), db, sm
}

func register(t *testing.T, h *account.Handler, body map[string]any) *testutil.ResponseRecorder {
	t.Helper()
	rec := testutil.NewRecorder()
	h.HandleRegister(rec, testutil.NewJSONRequest(http.MethodPost, "/api/auth/register", body))
	return rec
}

func login(h *account.Handler, email, password string) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	h.HandleLogin(rec, testutil.NewJSONRequest(http.MethodPost, "/api/auth/login",
		map[string]any{"email": email, "password": password}))
	return rec
}

func TestHandleRegister(t *testing.T) {
	h, _, sm := newHandler(t, 50)

	rec := register(t, h, map[string]any{"full_name": "  Ada  Lovelace ", "email": "Ada@Example.com", "password": "analytical"})
	rec.AssertStatus(t, http.StatusCreated)

	var got session
	rec.DecodeJSON(t, &got)
	if got.User.FullName != "Ada Lovelace" || got.User.Email != "ada@example.com" || got.User.Role != models.RoleStudent || got.User.Level != 1 {
		t.Errorf("user = %+v", got.User)
	}
	if got.Token == "" {
		t.Fatal("no token returned")
	}
	if id, role, err := sm.ParseToken(got.Token); err != nil || id != got.User.ID || role != models.RoleStudent {
		t.Errorf("ParseToken = %q, %q, %v", id, role, err)
	}
	if rec.Header().Get("Set-Cookie") == "" {
		t.Error("session cookie not set")
	}
	rec.AssertContains(t, `"level":1`)
	if body := rec.Body.String(); strings.Contains(body, "password") {
		t.Errorf("response leaks password field: %s", body)
	}
}

func TestHandleRegister_Rejects(t *testing.T) {
	h, _, _ := newHandler(t, 50)
	register(t, h, map[string]any{"full_name": "First", "email": "taken@example.com", "password": "longenough"}).
		AssertStatus(t, http.StatusCreated)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"duplicate email", map[string]any{"full_name": "Second", "email": "TAKEN@example.com", "password": "longenough"}, http.StatusConflict},
		{"short password", map[string]any{"full_name": "X", "email": "x@example.com", "password": "short"}, http.StatusBadRequest},
		{"bad email", map[string]any{"full_name": "X", "email": "nope", "password": "longenough"}, http.StatusBadRequest},
		{"admin role", map[string]any{"full_name": "X", "email": "x@example.com", "password": "longenough", "role": "admin"}, http.StatusBadRequest},
		{"teacher signup closed", map[string]any{"full_name": "X", "email": "x@example.com", "password": "longenough", "role": "teacher"}, http.StatusForbidden},
		{"blank name", map[string]any{"full_name": "   ", "email": "x@example.com", "password": "longenough"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			register(t, h, tt.body).AssertStatus(t, tt.want)
		})
	}
}

func TestHandleLogin(t *testing.T) {
	h, db, _ := newHandler(t, 50)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := userstore.New(db).Create(ctx, models.User{FullName: "Tess Teacher", Email: "tess@example.com", Role: models.RoleTeacher}, "correct horse")
	if err != nil {
		t.Fatal(err)
	}

	login(h, "tess@example.com", "wrong horse").AssertStatus(t, http.StatusUnauthorized)
	login(h, "nobody@example.com", "correct horse").AssertStatus(t, http.StatusUnauthorized)

	rec := login(h, "TESS@example.com", "correct horse")
	rec.AssertStatus(t, http.StatusOK)
	var got session
	rec.DecodeJSON(t, &got)
	if got.User.ID != u.ID.Hex() || got.Token == "" {
		t.Errorf("session = %+v", got)
	}

	n, err := db.Collection("login_records").CountDocuments(ctx, bson.M{"user_id": u.ID})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("login records = %d, want 1", n)
	}

	if err := userstore.New(db).SetActive(ctx, u.ID, false); err != nil {
		t.Fatal(err)
	}
	login(h, "tess@example.com", "correct horse").AssertStatus(t, http.StatusForbidden)
}

func TestHandleLogin_RateLimited(t *testing.T) {
	h, _, _ := newHandler(t, 3)
	for i := 0; i < 3; i++ {
		login(h, "who@example.com", "guess").AssertStatus(t, http.StatusUnauthorized)
	}
	rec := login(h, "who@example.com", "guess")
	rec.AssertStatus(t, http.StatusForbidden)
	rec.AssertContains(t, "too many")
}

func TestHandleLogout(t *testing.T) {
	h, _, _ := newHandler(t, 50)
	rec := testutil.NewRecorder()
	h.HandleLogout(rec, testutil.NewAuthenticatedRequest(http.MethodPost, "/api/auth/logout", testutil.StudentUser(), nil))
	rec.AssertStatus(t, http.StatusNoContent)
	if rec.Header().Get("Set-Cookie") == "" {
		t.Error("expected an expiring session cookie")
	}
}

func TestMe(t *testing.T) {
	h, db, _ := newHandler(t, 50)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := userstore.New(db).Create(ctx, models.User{FullName: "Sam Student", Email: "sam@example.com", Role: models.RoleStudent, XP: 250}, "old password")
	if err != nil {
		t.Fatal(err)
	}
	me := testutil.AsTestUser(u)

	rec := testutil.NewRecorder()
	h.ServeMe(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/api/me", me, nil))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"level":3`)

	rec = testutil.NewRecorder()
	h.HandleUpdateMe(rec, testutil.NewAuthenticatedRequest(http.MethodPut, "/api/me", me, map[string]any{"full_name": "Samantha Student"}))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"full_name":"Samantha Student"`)

	rec = testutil.NewRecorder()
	h.HandleUpdateMe(rec, testutil.NewAuthenticatedRequest(http.MethodPut, "/api/me", me, map[string]any{"full_name": "X", "role": "admin"}))
	rec.AssertStatus(t, http.StatusBadRequest)

	t.Run("change password", func(t *testing.T) {
		rec := testutil.NewRecorder()
		h.HandleChangePassword(rec, testutil.NewAuthenticatedRequest(http.MethodPut, "/api/me/password", me,
			map[string]any{"current_password": "not it", "new_password": "new password"}))
		rec.AssertStatus(t, http.StatusBadRequest)

		rec = testutil.NewRecorder()
		h.HandleChangePassword(rec, testutil.NewAuthenticatedRequest(http.MethodPut, "/api/me/password", me,
			map[string]any{"current_password": "old password", "new_password": "new password"}))
		rec.AssertStatus(t, http.StatusNoContent)

		login(h, "sam@example.com", "old password").AssertStatus(t, http.StatusUnauthorized)
		login(h, "sam@example.com", "new password").AssertStatus(t, http.StatusOK)
	})

	t.Run("logins", func(t *testing.T) {
		rec := testutil.NewRecorder()
		h.ServeLogins(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/api/me/logins", me, nil))
		rec.AssertStatus(t, http.StatusOK)
		rec.AssertContains(t, `"method":"password"`)
	})
}
