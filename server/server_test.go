package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/wave/config"
	"github.com/teilomillet/wave/server/dispatch"
	"github.com/teilomillet/wave/server/mocks"
	"github.com/teilomillet/wave/server/persona"
	"github.com/teilomillet/wave/server/provider"
	"github.com/teilomillet/wave/server/scheduler"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.Port = 0
	cfg.Server.MaxMessageTokens = 0
	cfg.Diary.ArchivePath = filepath.Join(t.TempDir(), "drafts.db")
	return cfg
}

func offline() Option {
	return WithProviders(
		mocks.NewUnconfiguredProvider("hyperclova"),
		mocks.NewUnconfiguredProvider("ollama"),
	)
}

func call(t *testing.T, h http.Handler, method, path, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code, rec.Body.Bytes()
}

func TestServerEndToEndOffline(t *testing.T) {
	s, err := New(testConfig(t), zap.NewNop(), offline(), WithVersion("1.2.3"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	h := s.Handler()

	code, body := call(t, h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, code)
	var root map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &root))
	assert.Equal(t, "1.2.3", root["version"])

	code, body = call(t, h, http.MethodPost, "/chat", `{
		"character_id": "char_4",
		"messages": [{"role": "user", "content": "안녕"}]
	}`)
	require.Equal(t, http.StatusOK, code)
	var chat map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &chat))
	assert.Equal(t, "fallback", chat["model_used"])
	assert.Equal(t, true, chat["fallback"])

	code, body = call(t, h, http.MethodPost, "/diary/generate", `{"messages": ["오늘은 너무 피곤했다"]}`)
	require.Equal(t, http.StatusOK, code)
	var draft map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &draft))
	assert.Equal(t, "tired", draft["emotion"])

	code, body = call(t, h, http.MethodGet, "/diary/drafts?limit=5", "")
	require.Equal(t, http.StatusOK, code)
	var drafts struct {
		Drafts []map[string]interface{} `json:"drafts"`
	}
	require.NoError(t, json.Unmarshal(body, &drafts))
	require.Len(t, drafts.Drafts, 1)
	assert.Equal(t, "tired", drafts.Drafts[0]["emotion"])

	code, body = call(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "wave_memory_sessions 1")
	assert.Contains(t, string(body), "wave_http_requests_total")
}

func TestGroupChatFallsBackBeforeRequestTimeout(t *testing.T) {
	failing := func(name string) *mocks.MockProvider {
		return mocks.NewMockProvider(name, func(ctx context.Context, _ provider.Request) (string, error) {
			select {
			case <-time.After(400 * time.Millisecond):
			case <-ctx.Done():
			}
			return "", errors.New("upstream 500")
		})
	}

	cfg := testConfig(t)
	cfg.Server.RequestTimeout = time.Second
	cfg.Routing.Strategy = "llm"

	s, err := New(cfg, zap.NewNop(), WithProviders(failing("hyperclova"), failing("ollama")))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	code, body := call(t, s.Handler(), http.MethodPost, "/ai/chat", `{"characterId":"char_group","message":"안녕"}`)
	require.Equal(t, http.StatusOK, code, string(body))

	var reply struct {
		Content             string `json:"content"`
		Fallback            bool   `json:"fallback"`
		RespondingCharacter struct {
			ID string `json:"charId"`
		} `json:"respondingCharacter"`
	}
	require.NoError(t, json.Unmarshal(body, &reply))
	assert.True(t, reply.Fallback)

	registry, err := persona.Builtin()
	require.NoError(t, err)
	assert.Contains(t, registry.Fallbacks(reply.RespondingCharacter.ID), reply.Content)
}

func TestCloseStopsUnstartedScheduler(t *testing.T) {
	cfg := testConfig(t)
	cfg.HealthCheck.Enabled = true

	s, err := New(cfg, zap.NewNop(), offline())
	require.NoError(t, err)

	s.Close()
	assert.Nil(t, s.scheduler)
	assert.NotPanics(t, s.Close)
}

func TestInjectedProvidersUseConfiguredTimeout(t *testing.T) {
	slow := mocks.NewMockProvider("ollama", func(ctx context.Context, _ provider.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	cfg := testConfig(t)
	cfg.ProviderPreference = []string{"ollama"}
	ollama := cfg.Providers["ollama"]
	ollama.Timeout = 50 * time.Millisecond
	cfg.Providers["ollama"] = ollama

	s, err := New(cfg, zap.NewNop(), WithProviders(slow))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	start := time.Now()
	_, err = s.gateway.Generate(context.Background(), provider.Request{Message: "hi"}, nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestServerDiaryArchiveDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Diary.ArchivePath = ""

	s, err := New(cfg, zap.NewNop(), offline())
	require.NoError(t, err)
	t.Cleanup(s.Close)

	code, _ := call(t, s.Handler(), http.MethodGet, "/diary/drafts", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown default character", func(c *config.Config) { c.Routing.DefaultCharacter = "char_99" }},
		{"unknown strategy", func(c *config.Config) { c.Routing.Strategy = "random" }},
		{"unknown memory backend", func(c *config.Config) { c.Memory.Backend = "etcd" }},
		{"unknown preferred provider", func(c *config.Config) { c.ProviderPreference = []string{"gpt"} }},
		{"missing persona file", func(c *config.Config) { c.Personas.File = "/nonexistent/personas.yaml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)

			_, err := New(cfg, zap.NewNop(), offline())
			assert.Error(t, err)
		})
	}
}

func TestNewSchedulesJobs(t *testing.T) {
	cfg := testConfig(t)
	cfg.HealthCheck.Enabled = true
	cfg.Sessions.IdleTTL = time.Hour

	s, err := New(cfg, zap.NewNop(), offline())
	require.NoError(t, err)
	t.Cleanup(s.Close)

	assert.ElementsMatch(t, []string{scheduler.JobHealthProbe, scheduler.JobSessionSweep}, s.scheduler.Jobs())
}

func TestServeAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	cfg.ProviderPreference = []string{"ollama"}

	s, err := New(cfg, zap.NewNop(), WithProviders(mocks.NewStaticProvider("ollama", "hello")))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/chat"
	body := `{"character_id":"char_1","messages":[{"role":"user","content":"hi"}]}`

	var reply map[string]interface{}
	require.Eventually(t, func() bool {
		resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK && json.Unmarshal(raw, &reply) == nil
	}, 5*time.Second, 50*time.Millisecond)

	assert.Equal(t, "hello", reply["content"])
	assert.Equal(t, "ollama", reply["model_used"])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestWatcherAppliesReload(t *testing.T) {
	cfg := testConfig(t)
	watcher := mocks.NewMockConfigWatcher(cfg)

	s, err := New(cfg, zap.NewNop(), offline(), WithWatcher(watcher))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	updated := *cfg
	updated.ProviderPreference = []string{"ollama"}
	updated.Routing.Strategy = "hybrid"

	assert.Eventually(t, func() bool {
		watcher.UpdateConfig(&updated)
		return assert.ObjectsAreEqual([]string{"ollama"}, s.gateway.Preference()) &&
			s.router.Strategy() == dispatch.StrategyHybrid
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestApplyKeepsSettingsOnInvalidReload(t *testing.T) {
	s, err := New(testConfig(t), zap.NewNop(), offline())
	require.NoError(t, err)
	t.Cleanup(s.Close)

	bad := config.DefaultConfig()
	bad.ProviderPreference = []string{"nope"}
	bad.Routing.Strategy = "dice"
	s.Apply(bad)

	assert.Equal(t, []string{"hyperclova", "ollama"}, s.gateway.Preference())
	assert.Equal(t, dispatch.StrategyKeyword, s.router.Strategy())
}
