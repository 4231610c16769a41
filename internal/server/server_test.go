package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"collabforge/internal/config"
	"collabforge/internal/db"
	"collabforge/internal/domain"
	"collabforge/internal/engine"
	"collabforge/internal/migrate"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default("test"))
	ctx := context.Background()
	for _, a := range []domain.Author{
		{ID: "alice", DisplayName: "Alice", CollabEnabled: true, CreatedAt: "2024-01-01T00:00:00Z"},
		{ID: "bob", DisplayName: "Bob", CollabEnabled: true, CreatedAt: "2024-01-01T00:00:00Z"},
	} {
		if err := e.Repo.UpsertAuthor(ctx, a); err != nil {
			t.Fatalf("seed author: %v", err)
		}
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/api",
		Auth:     AuthConfig{JWTSecret: "test-secret", AllowActorHeader: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func asAlice() map[string]string { return map[string]string{"X-Actor-Id": "alice"} }
func asBob() map[string]string   { return map[string]string{"X-Actor-Id": "bob"} }

func TestCollabLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/collabs", map[string]any{
		"partner_id":     "bob",
		"title":          "Split EP",
		"proposer_share": 70,
	}, asAlice())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, string(data))
	}
	var created CollabResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if created.Status != "pending" || created.Author1Share != 70 || created.Author2Share != 30 {
		t.Fatalf("created = %+v", created)
	}

	// the proposer cannot confirm their own invitation
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/collabs/"+created.ID+"/confirm", nil, asAlice())
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("self confirm status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/collabs/"+created.ID+"/confirm", nil, asBob())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("confirm status %d: %s", res.StatusCode, string(data))
	}
	var confirmed CollabResponse
	_ = json.Unmarshal(data, &confirmed)
	if confirmed.Status != "active" {
		t.Fatalf("status = %s, want active", confirmed.Status)
	}

	// confirming again is a conflict: the contract already moved on
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/collabs/"+created.ID+"/confirm", nil, asBob())
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("double confirm status %d: %s", res.StatusCode, string(data))
	}
}

func TestShareChangeOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	ctx := context.Background()

	c, err := srv.Engine.CreateCollab(ctx, "alice", engine.CreateCollabOptions{PartnerID: "bob", Title: "x", ProposerShare: 70})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := srv.Engine.ConfirmCollab(ctx, c.ID, "bob"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/collabs/"+c.ID+"/share-change", map[string]any{
		"share": 50,
	}, asBob())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("request status %d: %s", res.StatusCode, string(data))
	}
	var proposed CollabResponse
	_ = json.Unmarshal(data, &proposed)
	if proposed.ShareProposal == nil || proposed.ShareProposal.Author1Share != 50 {
		t.Fatalf("proposal = %+v", proposed.ShareProposal)
	}

	// proposer resolving their own proposal is forbidden
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/collabs/"+c.ID+"/share-change/confirm", nil, asBob())
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("self resolve status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/collabs/"+c.ID+"/share-change/confirm", nil, asAlice())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("confirm status %d: %s", res.StatusCode, string(data))
	}
	var resolved CollabResponse
	_ = json.Unmarshal(data, &resolved)
	if resolved.Author1Share != 50 || resolved.ShareProposal != nil {
		t.Fatalf("resolved = share:%d proposal:%+v", resolved.Author1Share, resolved.ShareProposal)
	}
}

func TestMaterialEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	ctx := context.Background()

	c, err := srv.Engine.CreateCollab(ctx, "alice", engine.CreateCollabOptions{PartnerID: "bob", Title: "x"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := srv.Engine.ConfirmCollab(ctx, c.ID, "bob"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/collabs/"+c.ID+"/materials", map[string]any{
		"title":       "Track one",
		"preview_url": "https://cdn.example/t1.png",
	}, asAlice())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add status %d: %s", res.StatusCode, string(data))
	}
	var m MaterialResponse
	_ = json.Unmarshal(data, &m)
	if m.Status != "pending" || m.PendingApprovalFrom == nil || *m.PendingApprovalFrom != "bob" {
		t.Fatalf("material = %+v", m)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/collabs/"+c.ID+"/materials/"+m.ID+"/approve", nil, asBob())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("approve status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/collabs/"+c.ID+"/materials", nil, asAlice())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("board status %d: %s", res.StatusCode, string(data))
	}
	var board MaterialBoardResponse
	_ = json.Unmarshal(data, &board)
	if len(board.Gallery) != 1 {
		t.Fatalf("gallery = %d entries, want 1", len(board.Gallery))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/collabs/"+c.ID+"/history", nil, asBob())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("history status %d: %s", res.StatusCode, string(data))
	}
	var entries []HistoryEntryResponse
	_ = json.Unmarshal(data, &entries)
	if len(entries) != 4 { // created, confirmed, material added, material approved
		t.Fatalf("history = %d entries, want 4", len(entries))
	}
}

func TestErrorEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/collabs/nope", nil, asAlice())
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Error.Code != "not_found" {
		t.Fatalf("code = %q, want not_found", envelope.Error.Code)
	}
}

func TestAuthModes(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	// no credentials at all
	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/api/collabs", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous status %d, want 401", res.StatusCode)
	}

	// health and gallery stay open
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/api/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d, want 200", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/api/gallery", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("gallery status %d, want 200", res.StatusCode)
	}

	// a dev token round-trips through bearer auth
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/auth/dev/login", map[string]any{"actor_id": "alice"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login status %d: %s", res.StatusCode, string(data))
	}
	var login DevLoginResponse
	_ = json.Unmarshal(data, &login)
	if login.Token == "" {
		t.Fatal("empty token")
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/me", nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}
	var me MeResponse
	_ = json.Unmarshal(data, &me)
	if me.Author.ID != "alice" {
		t.Fatalf("me = %+v", me)
	}

	// API keys authenticate too
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/apikeys", map[string]any{"name": "ci"}, asBob())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("mint status %d: %s", res.StatusCode, string(data))
	}
	var minted APIKeyResponse
	_ = json.Unmarshal(data, &minted)
	if minted.Key == "" {
		t.Fatal("mint did not return the plain key")
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/me", nil, map[string]string{
		"X-Api-Key": minted.Key,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me via api key status %d: %s", res.StatusCode, string(data))
	}
	var me2 MeResponse
	_ = json.Unmarshal(data, &me2)
	if me2.Author.ID != "bob" {
		t.Fatalf("me via key = %+v", me2)
	}
}
