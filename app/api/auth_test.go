package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/lysyi3m/khabar/app/database"
)

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == tokenCookie {
			return c
		}
	}
	return nil
}

func TestLoginAndMe(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.createUser("Reza", "reza@example.com", database.RoleEditor)

	w := env.do(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"identifier": "  REZA@example.com ",
		"password":   "password123",
	}, "")
	expectStatus(t, w, http.StatusOK)

	cookie := sessionCookie(w)
	if cookie == nil || cookie.Value == "" {
		t.Fatal("Expected session cookie to be set")
	}
	if !cookie.HttpOnly {
		t.Error("Expected session cookie to be HttpOnly")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusOK)

	me := decode(t, rec)["user"].(map[string]any)
	if me["id"] != float64(user.ID) {
		t.Errorf("Expected user %d, got %v", user.ID, me["id"])
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("Expected password hash to be omitted")
	}
}

func TestLoginThrottle(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("Reza", "reza@example.com", database.RoleUser)

	login := func(password string) *httptest.ResponseRecorder {
		return env.do(http.MethodPost, "/api/v1/auth/login", map[string]string{
			"identifier": "reza@example.com",
			"password":   password,
		}, "")
	}

	for i := 1; i <= 2; i++ {
		w := login("wrong")
		expectStatus(t, w, http.StatusUnauthorized)
		if body := decode(t, w); body["remaining"] != float64(3-i) {
			t.Errorf("Expected %d remaining attempts, got %v", 3-i, body["remaining"])
		}
	}

	w := login("wrong")
	expectStatus(t, w, http.StatusTooManyRequests)
	if w.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}

	// Correct password is rejected while blocked.
	w = login("password123")
	expectStatus(t, w, http.StatusTooManyRequests)
	if msg := decode(t, w)["error"]; msg != msgTooManyRequests {
		t.Errorf("Expected throttle message, got %v", msg)
	}
}

func TestLoginThrottleConcurrent(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("Reza", "reza@example.com", database.RoleUser)

	var mu sync.Mutex
	counts := map[int]int{}

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := env.do(http.MethodPost, "/api/v1/auth/login", map[string]string{
				"identifier": "reza@example.com",
				"password":   "wrong",
			}, "")
			mu.Lock()
			counts[w.Code]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	// Two plain failures, then the third failure blocks and the rest are
	// rejected without a password check.
	if counts[http.StatusUnauthorized] != 2 || counts[http.StatusTooManyRequests] != 18 {
		t.Errorf("Expected 2x401 and 18x429, got %v", counts)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"identifier": "ghost@example.com",
		"password":   "whatever",
	}, "")
	expectStatus(t, w, http.StatusUnauthorized)
	if msg := decode(t, w)["error"]; msg != msgInvalidLogin {
		t.Errorf("Expected invalid login message, got %v", msg)
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/auth/logout", nil, "")
	expectStatus(t, w, http.StatusOK)

	cookie := sessionCookie(w)
	if cookie == nil || cookie.MaxAge >= 0 {
		t.Error("Expected session cookie to be expired")
	}
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{"email", map[string]string{"name": "Ali", "email": "Ali@Example.com", "password": "password123"}, http.StatusCreated},
		{"duplicate email", map[string]string{"name": "Ali", "email": "ali@example.com", "password": "password123"}, http.StatusConflict},
		{"persian phone", map[string]string{"name": "Sara", "phone": "+98 ۹۱۲ ۳۴۵ ۶۷۸۹", "password": "password123"}, http.StatusCreated},
		{"bad phone", map[string]string{"name": "Sara", "phone": "12345", "password": "password123"}, http.StatusBadRequest},
		{"short password", map[string]string{"name": "Ali", "email": "x@example.com", "password": "short"}, http.StatusBadRequest},
		{"no identifier", map[string]string{"name": "Ali", "password": "password123"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/v1/auth/register", tt.body, "")
			expectStatus(t, w, tt.status)
		})
	}

	user, err := env.handler.Users.GetByPhone(t.Context(), "09123456789")
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}
	if user == nil || user.Role != database.RoleUser {
		t.Errorf("Expected normalized phone user with role user, got %+v", user)
	}
}

func TestOTPLogin(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"name": "Sara", "phone": "09123456789", "password": "password123",
	}, "")
	expectStatus(t, w, http.StatusCreated)

	w = env.do(http.MethodPost, "/api/v1/auth/otp/send", map[string]string{"phone": "0912 345 6789"}, "")
	expectStatus(t, w, http.StatusOK)

	code := env.sms.code("09123456789")
	if code == "" {
		t.Fatal("Expected OTP code to be sent")
	}

	w = env.do(http.MethodPost, "/api/v1/auth/otp/send", map[string]string{"phone": "09123456789"}, "")
	expectStatus(t, w, http.StatusTooManyRequests)

	w = env.do(http.MethodPost, "/api/v1/auth/otp/verify", map[string]string{"phone": "09123456789", "code": "000000x"}, "")
	expectStatus(t, w, http.StatusBadRequest)

	w = env.do(http.MethodPost, "/api/v1/auth/otp/verify", map[string]string{"phone": "09123456789", "code": code}, "")
	expectStatus(t, w, http.StatusOK)
	if sessionCookie(w) == nil {
		t.Error("Expected session cookie after OTP login")
	}
	if verified := decode(t, w)["user"].(map[string]any)["phone_verified"]; verified != true {
		t.Errorf("Expected phone to be verified, got %v", verified)
	}

	// Codes are single use.
	w = env.do(http.MethodPost, "/api/v1/auth/otp/verify", map[string]string{"phone": "09123456789", "code": code}, "")
	expectStatus(t, w, http.StatusBadRequest)
}

func TestOTPInvalidPurpose(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/auth/otp/send", map[string]string{"phone": "09123456789", "purpose": "reset"}, "")
	expectStatus(t, w, http.StatusBadRequest)

	w = env.do(http.MethodPost, "/api/v1/auth/otp/send", map[string]string{"phone": "123"}, "")
	expectStatus(t, w, http.StatusBadRequest)
	if msg := decode(t, w)["error"]; msg != msgInvalidPhone {
		t.Errorf("Expected invalid phone message, got %v", msg)
	}
}

func TestRoleAccess(t *testing.T) {
	env := newTestEnv(t)
	_, userToken := env.createUser("User", "user@example.com", database.RoleUser)
	_, editorToken := env.createUser("Editor", "editor@example.com", database.RoleEditor)
	_, adminToken := env.createUser("Admin", "admin@example.com", database.RoleAdmin)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"anonymous staff route", "/api/v1/admin/blogs", "", http.StatusUnauthorized},
		{"bad token", "/api/v1/admin/blogs", "not-a-token", http.StatusUnauthorized},
		{"user staff route", "/api/v1/admin/blogs", userToken, http.StatusForbidden},
		{"editor staff route", "/api/v1/admin/blogs", editorToken, http.StatusOK},
		{"editor admin route", "/api/v1/admin/ads", editorToken, http.StatusForbidden},
		{"admin admin route", "/api/v1/admin/ads", adminToken, http.StatusOK},
		{"admin jobs", "/api/v1/admin/jobs", adminToken, http.StatusOK},
		{"anonymous me", "/api/v1/auth/me", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodGet, tt.path, nil, tt.token)
			expectStatus(t, w, tt.status)
		})
	}
}
