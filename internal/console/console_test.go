package console

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/tgsitter/tgsitter/internal/bus"
	"github.com/tgsitter/tgsitter/internal/config"
	"github.com/tgsitter/tgsitter/internal/platform"
	"github.com/tgsitter/tgsitter/internal/session"
)

type testConsole struct {
	server *httptest.Server
	feed   *bus.Feed
	dir    string
}

func newTestConsole(t *testing.T) *testConsole {
	t.Helper()
	feed := bus.NewFeed()
	reg := session.NewRegistry(session.Options{
		NewClient: func(session.Credentials) (platform.Client, error) {
			return platform.NewFake(platform.Profile{ID: 7, Username: "owner"}, true), nil
		},
		Reply: config.ReplyConfig{DirectTimeout: time.Hour, GroupTimeout: time.Hour},
		Feed:  feed,
	})
	dir := t.TempDir()
	srv := New(config.ConsoleConfig{AdminPassword: "sekrit"}, dir, reg, feed, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testConsole{server: ts, feed: feed, dir: dir}
}

func (tc *testConsole) postJSON(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	data, _ := json.Marshal(body)
	res, err := http.Post(tc.server.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer res.Body.Close()
	var out map[string]any
	json.NewDecoder(res.Body).Decode(&out)
	return res, out
}

func (tc *testConsole) adminCookie(t *testing.T) *http.Cookie {
	t.Helper()
	data, _ := json.Marshal(map[string]string{"password": "sekrit"})
	res, err := http.Post(tc.server.URL+"/api/admin/login", "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", res.StatusCode)
	}
	for _, c := range res.Cookies() {
		if c.Name == authCookie {
			return c
		}
	}
	t.Fatal("no auth cookie set")
	return nil
}

func TestBotStartValidation(t *testing.T) {
	tc := newTestConsole(t)

	res, body := tc.postJSON(t, "/api/bot/start", map[string]string{"phone": "+1"})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %v", res.StatusCode, body)
	}

	res, body = tc.postJSON(t, "/api/bot/start", map[string]string{
		"phone": "+15550100", "api_id": "12345", "api_hash": "hash",
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %v", res.StatusCode, body)
	}
	if body["status"] != "initiated" {
		t.Fatalf("body = %v, want initiated ack", body)
	}
}

func TestBotStopUnknown(t *testing.T) {
	tc := newTestConsole(t)

	res, _ := tc.postJSON(t, "/api/bot/stop", map[string]string{})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing id: status = %d, want 400", res.StatusCode)
	}
	res, _ = tc.postJSON(t, "/api/bot/stop", map[string]string{"id": "ghost_1"})
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown id: status = %d, want 404", res.StatusCode)
	}
}

func TestBotStatusListsSessions(t *testing.T) {
	tc := newTestConsole(t)
	events, cancel := tc.feed.Subscribe()
	defer cancel()

	tc.postJSON(t, "/api/bot/start", map[string]string{
		"phone": "+15550100", "api_id": "12345", "api_hash": "hash",
	})
	waitStarted(t, events)

	res, err := http.Get(tc.server.URL + "/api/bot/status")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	var body struct {
		Sessions []session.Info `json:"sessions"`
	}
	json.NewDecoder(res.Body).Decode(&body)
	if len(body.Sessions) != 1 || !body.Sessions[0].Running {
		t.Fatalf("sessions = %+v", body.Sessions)
	}
}

func waitStarted(t *testing.T, ch <-chan bus.Event) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if status, _ := ev.Payload["status"].(string); status == session.StatusStarted {
				return
			}
		case <-deadline:
			t.Fatal("session never started")
		}
	}
}

func TestAdminEndpointsRequireAuth(t *testing.T) {
	tc := newTestConsole(t)

	for _, path := range []string{"/api/admin/sessions/list", "/api/admin/sessions/download"} {
		res, err := http.Get(tc.server.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d, want 401", path, res.StatusCode)
		}
	}
}

func TestLoginWrongPassword(t *testing.T) {
	tc := newTestConsole(t)
	res, _ := tc.postJSON(t, "/api/admin/login", map[string]string{"password": "wrong"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", res.StatusCode)
	}
}

func TestEmptyConfiguredPasswordDisablesLogin(t *testing.T) {
	feed := bus.NewFeed()
	reg := session.NewRegistry(session.Options{
		NewClient: func(session.Credentials) (platform.Client, error) {
			return platform.NewFake(platform.Profile{}, false), nil
		},
		Feed: feed,
	})
	srv := New(config.ConsoleConfig{}, t.TempDir(), reg, feed, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	data, _ := json.Marshal(map[string]string{"password": ""})
	res, err := http.Post(ts.URL+"/api/admin/login", "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 when no password is configured", res.StatusCode)
	}
}

func TestSessionBackupRoundTrip(t *testing.T) {
	tc := newTestConsole(t)
	cookie := tc.adminCookie(t)

	if err := os.WriteFile(filepath.Join(tc.dir, "a.session"), []byte("creds"), 0o600); err != nil {
		t.Fatal(err)
	}

	// Download.
	req, _ := http.NewRequest(http.MethodGet, tc.server.URL+"/api/admin/sessions/download", nil)
	req.AddCookie(cookie)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK || res.Header.Get("Content-Type") != "application/zip" {
		t.Fatalf("download: status=%d type=%s", res.StatusCode, res.Header.Get("Content-Type"))
	}
	var archive bytes.Buffer
	archive.ReadFrom(res.Body)

	// Wipe and re-upload.
	os.Remove(filepath.Join(tc.dir, "a.session"))
	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	fw, _ := mw.CreateFormFile("archive", "sessions.zip")
	fw.Write(archive.Bytes())
	mw.Close()

	req, _ = http.NewRequest(http.MethodPost, tc.server.URL+"/api/admin/sessions/upload", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(cookie)
	res, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("upload: status = %d", res.StatusCode)
	}
	if _, err := os.Stat(filepath.Join(tc.dir, "a.session")); err != nil {
		t.Fatalf("restored file missing: %v", err)
	}
}

func TestSessionListRequiresAuthThenLists(t *testing.T) {
	tc := newTestConsole(t)
	cookie := tc.adminCookie(t)
	os.WriteFile(filepath.Join(tc.dir, "a.session"), []byte("x"), 0o600)

	req, _ := http.NewRequest(http.MethodGet, tc.server.URL+"/api/admin/sessions/list", nil)
	req.AddCookie(cookie)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	var body struct {
		Files []sessionFileInfo `json:"files"`
	}
	json.NewDecoder(res.Body).Decode(&body)
	if len(body.Files) != 1 || body.Files[0].Name != "a.session" {
		t.Fatalf("files = %+v", body.Files)
	}
}

func TestLogoutInvalidatesToken(t *testing.T) {
	tc := newTestConsole(t)
	cookie := tc.adminCookie(t)

	req, _ := http.NewRequest(http.MethodPost, tc.server.URL+"/api/admin/logout", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()

	req, _ = http.NewRequest(http.MethodGet, tc.server.URL+"/api/admin/sessions/list", nil)
	req.AddCookie(cookie)
	res, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 after logout", res.StatusCode)
	}
}

func TestWebsocketStreamsFeed(t *testing.T) {
	tc := newTestConsole(t)
	cookie := tc.adminCookie(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(tc.server.URL, "http") + "/api/ws"
	header := http.Header{}
	header.Set("Cookie", cookie.Name+"="+cookie.Value)
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Give the feed pump time to subscribe before publishing.
	deadlineAt := time.Now().Add(2 * time.Second)
	for tc.feed.SubscriberCount() == 0 && time.Now().Before(deadlineAt) {
		time.Sleep(5 * time.Millisecond)
	}
	tc.feed.Terminal("hello operator")

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev bus.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Kind != bus.KindTerminal || ev.Message != "hello operator" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestWebsocketRequiresAuth(t *testing.T) {
	tc := newTestConsole(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(tc.server.URL, "http") + "/api/ws"
	_, res, err := websocket.Dial(ctx, wsURL, nil)
	if err == nil {
		t.Fatal("dial must fail without the admin cookie")
	}
	if res != nil && res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", res.StatusCode)
	}
}

func TestShellRunnerStreamsOutput(t *testing.T) {
	feed := bus.NewFeed()
	events, cancel := feed.Subscribe()
	defer cancel()

	sh := &shellRunner{feed: feed}
	sh.run(context.Background(), "echo one && echo two")

	var lines []string
	deadline := time.After(3 * time.Second)
	for len(lines) < 3 {
		select {
		case ev := <-events:
			lines = append(lines, ev.Message)
		case <-deadline:
			t.Fatalf("lines so far: %v", lines)
		}
	}
	if lines[0] != "one" || lines[1] != "two" || !strings.HasPrefix(lines[2], "exit:") {
		t.Fatalf("lines = %v", lines)
	}
}

func TestShellRunnerInterrupt(t *testing.T) {
	feed := bus.NewFeed()
	events, cancel := feed.Subscribe()
	defer cancel()

	sh := &shellRunner{feed: feed}
	// The forked sleep keeps the stdout pipe open; interrupt must kill
	// the whole process group, not just the shell.
	sh.run(context.Background(), "sleep 30 & wait")
	time.Sleep(50 * time.Millisecond)
	sh.interrupt()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-events:
			if strings.HasPrefix(ev.Message, "exit:") {
				return
			}
		case <-deadline:
			t.Fatal("interrupted command never reported exit")
		}
	}
}
