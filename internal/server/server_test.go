package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/visitorlog/internal/account"
	"github.com/dukerupert/visitorlog/internal/auth"
	"github.com/dukerupert/visitorlog/internal/config"
	"github.com/dukerupert/visitorlog/internal/database"
)

var testLoc = time.FixedZone("TRT", 3*60*60)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type testApp struct {
	t      *testing.T
	srv    *Server
	router http.Handler
	clock  *fakeClock
}

func newTestApp(t *testing.T, loginLimit int) *testApp {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Location:       testLoc,
		AdminUsername:  "admin",
		AdminPassword:  "admin1234",
		LoginRateLimit: loginLimit,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv := New(db, cfg, logger)
	_, err = account.SeedAdmin(srv.UserStore(), cfg.AdminUsername, cfg.AdminPassword, logger)
	require.NoError(t, err)

	clock := &fakeClock{t: time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)}
	srv.VisitorStore().SetClock(clock.Now)

	return &testApp{t: t, srv: srv, router: srv.Router(), clock: clock}
}

func (a *testApp) do(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) login(username, password string) *http.Cookie {
	a.t.Helper()
	rec := a.do("POST", "/api/login", map[string]string{"username": username, "password": password}, nil)
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	a.t.Fatal("login did not set a session cookie")
	return nil
}

func (a *testApp) createVisitor(name, entry string) int64 {
	a.t.Helper()
	rec := a.do("POST", "/api/visitors", map[string]string{
		"name": name, "tc": "12345678901", "entry": entry, "meet": "Toplantı", "host": "Ayşe Hanım",
	}, nil)
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Message string `json:"message"`
		ID      int64  `json:"id"`
	}
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(a.t, "Kayıt başarılı", resp.Message)
	return resp.ID
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]any](t, rec)["message"].(string)
}

type reportRow struct {
	ID                    int64  `json:"id"`
	Name                  string `json:"name"`
	Entry                 string `json:"entry"`
	Exit                  string `json:"exit"`
	Deleted               int    `json:"deleted"`
	DeletedAt             string `json:"deleted_at"`
	PurgeAllowed          bool   `json:"purge_allowed"`
	PurgeRemainingSeconds int64  `json:"purge_remaining_seconds"`
}

func (a *testApp) report(query string) []reportRow {
	a.t.Helper()
	rec := a.do("GET", "/api/reports?"+query, nil, nil)
	require.Equal(a.t, http.StatusOK, rec.Code)
	return decode[struct {
		Visitors []reportRow `json:"visitors"`
	}](a.t, rec).Visitors
}

func TestCreateAndListActive(t *testing.T) {
	app := newTestApp(t, 100)

	id := app.createVisitor("Ali Veli", "2024-05-01T09:30")

	rec := app.do("GET", "/api/visitors/active", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store, no-cache, must-revalidate, max-age=0", rec.Header().Get("Cache-Control"))

	rows := decode[[]map[string]any](t, rec)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.EqualValues(t, id, row["id"])
	assert.Equal(t, "Ali Veli", row["name"])
	assert.Equal(t, "12345678901", row["tc"])
	assert.Equal(t, "01.05.2024 09:30", row["entry"])
	assert.Equal(t, "Toplantı", row["meet"])
	assert.Equal(t, "Ayşe Hanım", row["host"])
	assert.EqualValues(t, 1, row["active"])
	assert.EqualValues(t, 0, row["deleted"])
	assert.Nil(t, row["exit"])
	assert.Nil(t, row["deleted_at"])
	assert.Equal(t, "01.05.2024 10:00", row["created_at"])
}

func TestCreateRejectsMissingFields(t *testing.T) {
	app := newTestApp(t, 100)

	tests := []struct {
		name string
		body any
	}{
		{"missing host", map[string]string{"name": "Ali", "entry": "2024-05-01T09:30", "meet": "x"}},
		{"blank name", map[string]string{"name": "   ", "entry": "2024-05-01T09:30", "meet": "x", "host": "y"}},
		{"not an object", []int{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do("POST", "/api/visitors", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "Tüm alanlar doldurulmalıdır.", message(t, rec))
		})
	}
}

func TestCreateIDsIncrease(t *testing.T) {
	app := newTestApp(t, 100)
	first := app.createVisitor("Bir", "2024-05-01T09:00")
	second := app.createVisitor("İki", "2024-05-01T09:05")
	assert.Greater(t, second, first)
}

func TestCheckout(t *testing.T) {
	app := newTestApp(t, 100)
	id := app.createVisitor("Ali Veli", "2024-05-01T09:30")
	app.clock.Advance(45 * time.Minute)

	rec := app.do("POST", fmt.Sprintf("/api/visitors/%d/checkout", id), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ziyaretçi çıkışı tamamlandı.", message(t, rec))

	rec = app.do("POST", fmt.Sprintf("/api/visitors/%d/checkout", id), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Ziyaretçi bulunamadı veya zaten çıkış yapmış.", message(t, rec))

	active := decode[[]map[string]any](t, app.do("GET", "/api/visitors/active", nil, nil))
	assert.Empty(t, active)

	rows := app.report("")
	require.Len(t, rows, 1)
	assert.Equal(t, "01.05.2024 10:45", rows[0].Exit)
	assert.Equal(t, "", rows[0].DeletedAt)
}

func TestNonNumericIDIsNotFound(t *testing.T) {
	app := newTestApp(t, 100)
	for _, action := range []string{"checkout", "delete", "purge"} {
		rec := app.do("POST", "/api/visitors/abc/"+action, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, action)
	}
}

func TestDeleteAndPurgeWithinGrace(t *testing.T) {
	app := newTestApp(t, 100)
	id := app.createVisitor("Ali Veli", "2024-05-01T09:30")

	rec := app.do("POST", fmt.Sprintf("/api/visitors/%d/delete", id), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Kayıt silindi.", message(t, rec))

	rec = app.do("POST", fmt.Sprintf("/api/visitors/%d/delete", id), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Kayıt bulunamadı veya zaten silinmiş.", message(t, rec))

	assert.Empty(t, app.report(""))
	deleted := app.report("deleted=1")
	require.Len(t, deleted, 1)
	assert.Equal(t, 1, deleted[0].Deleted)
	assert.Equal(t, "01.05.2024 10:00", deleted[0].DeletedAt)
	assert.True(t, deleted[0].PurgeAllowed)
	assert.EqualValues(t, 600, deleted[0].PurgeRemainingSeconds)

	app.clock.Advance(10 * time.Minute)
	assert.True(t, app.report("deleted=1")[0].PurgeAllowed)

	rec = app.do("POST", fmt.Sprintf("/api/visitors/%d/purge", id), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Kayıt kalıcı olarak silindi.", message(t, rec))
	assert.Empty(t, app.report("deleted=1"))

	rec = app.do("POST", fmt.Sprintf("/api/visitors/%d/purge", id), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Kayıt bulunamadı.", message(t, rec))
}

func TestPurgeAfterGraceExpires(t *testing.T) {
	app := newTestApp(t, 100)
	id := app.createVisitor("Ali Veli", "2024-05-01T09:30")
	require.Equal(t, http.StatusOK, app.do("POST", fmt.Sprintf("/api/visitors/%d/delete", id), nil, nil).Code)

	app.clock.Advance(10*time.Minute + time.Second)

	rows := app.report("deleted=1")
	require.Len(t, rows, 1)
	assert.False(t, rows[0].PurgeAllowed)
	assert.EqualValues(t, 0, rows[0].PurgeRemainingSeconds)

	rec := app.do("POST", fmt.Sprintf("/api/visitors/%d/purge", id), nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "10 dakikayı geçtiği için kalıcı silinemez.", message(t, rec))
	assert.Len(t, app.report("deleted=1"), 1)
}

func TestPurgeRequiresSoftDelete(t *testing.T) {
	app := newTestApp(t, 100)
	id := app.createVisitor("Ali Veli", "2024-05-01T09:30")

	rec := app.do("POST", fmt.Sprintf("/api/visitors/%d/purge", id), nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Önce silinenler listesinde olmalı.", message(t, rec))
}

func TestReportMonthScopeAndSearch(t *testing.T) {
	app := newTestApp(t, 100)
	app.createVisitor("Nisan Ziyaretçi", "2024-04-30T23:59")
	may := app.createVisitor("Mayıs Ziyaretçi", "2024-05-01T00:00")
	app.createVisitor("Haziran Ziyaretçi", "2024-06-01T00:00")

	rows := app.report("scope=month&year=2024&month=5")
	require.Len(t, rows, 1)
	assert.Equal(t, may, rows[0].ID)

	all := app.report("scope=all")
	require.Len(t, all, 3)
	assert.Greater(t, all[0].ID, all[1].ID, "newest first")

	found := app.report("q=MAY")
	require.Len(t, found, 1)
	assert.Equal(t, "Mayıs Ziyaretçi", found[0].Name)

	byDate := app.report("q=30.04.2024")
	require.Len(t, byDate, 1)
	assert.Equal(t, "Nisan Ziyaretçi", byDate[0].Name)
}

func TestLoginAndMe(t *testing.T) {
	app := newTestApp(t, 100)

	me := decode[map[string]any](t, app.do("GET", "/api/me", nil, nil))
	assert.Equal(t, false, me["logged_in"])

	rec := app.do("POST", "/api/login", map[string]string{"username": "admin", "password": "admin1234"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "admin", body["username"])
	assert.Equal(t, true, body["is_admin"])

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	me = decode[map[string]any](t, app.do("GET", "/api/me", nil, cookie))
	assert.Equal(t, true, me["logged_in"])
	assert.Equal(t, "admin", me["username"])
	assert.Equal(t, true, me["is_admin"])

	rec = app.do("POST", "/api/logout", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	me = decode[map[string]any](t, app.do("GET", "/api/me", nil, cookie))
	assert.Equal(t, false, me["logged_in"])
}

func TestLoginFailures(t *testing.T) {
	app := newTestApp(t, 100)

	rec := app.do("POST", "/api/login", map[string]string{"username": "admin", "password": "yanlis"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do("POST", "/api/login", map[string]string{"username": "yok", "password": "admin1234"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do("POST", "/api/login", map[string]string{"username": "", "password": ""}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginReplacesPreviousSession(t *testing.T) {
	app := newTestApp(t, 100)
	first := app.login("admin", "admin1234")

	rec := app.do("POST", "/api/login", map[string]string{"username": "admin", "password": "admin1234"}, first)
	require.Equal(t, http.StatusOK, rec.Code)

	me := decode[map[string]any](t, app.do("GET", "/api/me", nil, first))
	assert.Equal(t, false, me["logged_in"])
}

func TestLoginRateLimited(t *testing.T) {
	app := newTestApp(t, 2)
	creds := map[string]string{"username": "admin", "password": "yanlis"}

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusUnauthorized, app.do("POST", "/api/login", creds, nil).Code)
	}
	rec := app.do("POST", "/api/login", creds, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestUserAdministration(t *testing.T) {
	app := newTestApp(t, 100)

	rec := app.do("POST", "/api/users", map[string]string{"username": "resepsiyon", "password": "12345678"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	admin := app.login("admin", "admin1234")

	rec = app.do("POST", "/api/users", map[string]string{"username": "resepsiyon", "password": "1234567"}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Şifre en az 8 karakter olmalıdır.", message(t, rec))

	rec = app.do("POST", "/api/users", map[string]string{"username": "resepsiyon", "password": "12345678"}, admin)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = app.do("POST", "/api/users", map[string]string{"username": "resepsiyon", "password": "87654321"}, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)

	staff := app.login("resepsiyon", "12345678")
	me := decode[map[string]any](t, app.do("GET", "/api/me", nil, staff))
	assert.Equal(t, false, me["is_admin"])
	assert.Equal(t, http.StatusForbidden, app.do("GET", "/api/users/list", nil, staff).Code)
	assert.Equal(t, http.StatusForbidden, app.do("POST", "/api/users", map[string]string{"username": "x", "password": "12345678"}, staff).Code)

	list := decode[struct {
		Users []struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
			IsAdmin  bool   `json:"is_admin"`
		} `json:"users"`
	}](t, app.do("GET", "/api/users/list", nil, admin))
	require.Len(t, list.Users, 1)
	assert.Equal(t, "resepsiyon", list.Users[0].Username)
	assert.False(t, list.Users[0].IsAdmin)

	rec = app.do("POST", "/api/users/delete", map[string]any{"username": "resepsiyon", "admin_password": "yanlis"}, admin)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Yönetici şifresi hatalı.", message(t, rec))

	rec = app.do("POST", "/api/users/delete", map[string]any{"user_id": list.Users[0].ID, "admin_password": "admin1234"}, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Kullanıcı silindi.", message(t, rec))

	after := decode[map[string][]any](t, app.do("GET", "/api/users/list", nil, admin))
	assert.Empty(t, after["users"])

	// The deleted account's session is gone and it can no longer log in.
	me = decode[map[string]any](t, app.do("GET", "/api/me", nil, staff))
	assert.Equal(t, false, me["logged_in"])
	rec = app.do("POST", "/api/login", map[string]string{"username": "resepsiyon", "password": "12345678"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeleteUserFailures(t *testing.T) {
	app := newTestApp(t, 100)
	admin := app.login("admin", "admin1234")

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"no target", map[string]any{"admin_password": "admin1234"}, http.StatusBadRequest},
		{"no admin password", map[string]any{"username": "kimse"}, http.StatusBadRequest},
		{"unknown user", map[string]any{"username": "kimse", "admin_password": "admin1234"}, http.StatusNotFound},
		{"unknown id as string", map[string]any{"user_id": "999", "admin_password": "admin1234"}, http.StatusNotFound},
		{"admin target", map[string]any{"username": "admin", "admin_password": "admin1234"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do("POST", "/api/users/delete", tt.body, admin)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestPingAndIndex(t *testing.T) {
	app := newTestApp(t, 100)

	rec := app.do("GET", "/api/ping", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = app.do("GET", "/", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "Ziyaretçi Kayıt"))

	rec = app.do("GET", "/static/app.js", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
