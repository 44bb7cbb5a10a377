// ABOUTME: HTTP API tests against an httptest server
// ABOUTME: Sessions use the real preparer with an endless generated decoder
package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resonix-audio/resonix-go/internal/decoder"
	"github.com/resonix-audio/resonix-go/internal/failure"
	"github.com/resonix-audio/resonix-go/internal/player"
	"github.com/resonix-audio/resonix-go/internal/resolver"
	"github.com/resonix-audio/resonix-go/internal/source"
	"github.com/resonix-audio/resonix-go/pkg/audio"
)

// endlessDecoder yields full frames of a constant level forever
type endlessDecoder struct {
	level float32
}

func (d *endlessDecoder) Next() (audio.Block, error) {
	b := audio.Block{
		Left:  make([]float32, audio.FrameSamples),
		Right: make([]float32, audio.FrameSamples),
	}
	for i := range b.Left {
		b.Left[i] = d.level
		b.Right[i] = d.level
	}
	return b, nil
}

func (d *endlessDecoder) Info() decoder.Info {
	return decoder.Info{Codec: "wav", SampleRate: audio.SampleRate, Channels: audio.Channels, Title: "Endless"}
}

func (d *endlessDecoder) Close() error { return nil }

type fakeResolver struct {
	enabled bool
	policy  *resolver.Policy

	mu       sync.Mutex
	resolved string
	err      error
}

func (f *fakeResolver) Enabled() bool { return f.enabled }

func (f *fakeResolver) Policy() *resolver.Policy { return f.policy }

func (f *fakeResolver) set(resolved string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved, f.err = resolved, err
}

func (f *fakeResolver) ResolveWithRetry(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolved, f.err
}

type testEnv struct {
	srv   *Server
	ts    *httptest.Server
	dir   string
	track string
}

func newTestEnv(t *testing.T, cfg Config, res Resolver) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	track := filepath.Join(dir, "song.wav")
	require.NoError(t, os.WriteFile(track, nil, 0o644))

	registry := player.NewRegistry(player.Options{
		Preparer: source.NewPreparer(source.Options{TempDir: dir}),
		Open: func(string) (player.Decoder, error) {
			return &endlessDecoder{level: 0.5}, nil
		},
		TickInterval: time.Millisecond,
	})

	srv := New(cfg, registry, res)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		registry.StopAll(ctx)
	})

	return &testEnv{srv: srv, ts: ts, dir: dir, track: track}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) createPlayer(t *testing.T, id string) *player.Player {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/players", map[string]any{"id": id, "uri": e.track})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	p, ok := e.srv.registry.Get(id)
	require.True(t, ok)
	return p
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func readString(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestInfo(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)

	resp := env.do(t, http.MethodGet, "/info", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]any](t, resp)
	assert.NotEmpty(t, body["version"])
	assert.NotZero(t, body["buildTime"])
}

func TestPasswordRequired(t *testing.T) {
	env := newTestEnv(t, Config{Password: "hunter2"}, nil)

	resp := env.do(t, http.MethodGet, "/info", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/info", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "hunter2")
	ok, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer ok.Body.Close()
	assert.Equal(t, http.StatusOK, ok.StatusCode)
}

func TestCreatePlayer(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)

	resp := env.do(t, http.MethodPost, "/players", map[string]any{"id": "p1", "uri": env.track})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "p1", decodeBody[map[string]string](t, resp)["id"])

	dup := env.do(t, http.MethodPost, "/players", map[string]any{"id": "p1", "uri": env.track})
	assert.Equal(t, http.StatusConflict, dup.StatusCode)

	generated := env.do(t, http.MethodPost, "/players", map[string]any{"uri": env.track})
	require.Equal(t, http.StatusCreated, generated.StatusCode)
	assert.NotEmpty(t, decodeBody[map[string]string](t, generated)["id"])
}

func TestCreatePlayerFailures(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"missing uri", map[string]any{"id": "x"}, http.StatusBadRequest},
		{"missing file", map[string]any{"id": "x", "uri": filepath.Join(env.dir, "nope.wav")}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/players", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}

	assert.Equal(t, 0, env.srv.registry.Len())
}

func TestUnknownPlayer(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)

	for _, path := range []string{"/players/nope/play", "/players/nope/skip"} {
		resp := env.do(t, http.MethodPost, path, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
	resp := env.do(t, http.MethodGet, "/players/nope/track", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListPlayers(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	env.createPlayer(t, "b")
	env.createPlayer(t, "a")

	resp := env.do(t, http.MethodGet, "/players", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list := decodeBody[[]playerSummary](t, resp)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte(env.track)), list[0].Track.Encoded)
	assert.Equal(t, "Endless", list[0].Track.Info.Title)
	assert.Equal(t, "file", list[0].Track.Info.SourceName)
	assert.JSONEq(t, "{}", string(list[0].Track.PluginInfo))
}

func TestPlaybackControls(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	p := env.createPlayer(t, "p1")

	resp := env.do(t, http.MethodPost, "/players/p1/pause", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Eventually(t, func() bool { return p.State() == player.StatePaused }, time.Second, time.Millisecond)

	resp = env.do(t, http.MethodPost, "/players/p1/play", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Eventually(t, func() bool { return p.State() == player.StateStreaming }, time.Second, time.Millisecond)
}

func TestFilters(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	p := env.createPlayer(t, "p1")

	resp := env.do(t, http.MethodPatch, "/players/p1/filters", map[string]any{
		"volume": 9,
		"eq":     []map[string]any{{"band": 1, "gain_db": 3.5}},
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, float32(5), p.Volume())
	assert.Equal(t, float32(3.5), p.EQ()[1])

	resp = env.do(t, http.MethodPatch, "/players/p1/filters", map[string]any{"volume": -1})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, float32(0), p.Volume())

	resp = env.do(t, http.MethodPatch, "/players/p1/filters", map[string]any{
		"eq": []map[string]any{{"band": 9, "gain_db": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetadata(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	env.createPlayer(t, "p1")

	resp := env.do(t, http.MethodPut, "/players/p1/metadata", map[string]any{"value": map[string]any{"a": 1}})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/players/p1/metadata", map[string]any{"merge": true, "value": map[string]any{"b": 2}})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/players/p1/metadata", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"a":1,"b":2}`, readString(t, resp))
}

func TestQueueAndLoop(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	env.createPlayer(t, "p1")

	resp := env.do(t, http.MethodPost, "/players/p1/queue", map[string]any{"uri": env.track, "metadata": map[string]any{"k": "v"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	trackID := decodeBody[map[string]string](t, resp)["trackId"]
	require.NotEmpty(t, trackID)

	resp = env.do(t, http.MethodGet, "/players/p1/queue", nil)
	queue := decodeBody[[]player.TrackItem](t, resp)
	require.Len(t, queue, 1)
	assert.Equal(t, trackID, queue[0].ID)
	assert.JSONEq(t, `{"k":"v"}`, string(queue[0].Metadata))

	resp = env.do(t, http.MethodPut, "/players/p1/loop", map[string]any{"mode": "queue"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/players/p1/loop", nil)
	assert.Equal(t, "queue", decodeBody[map[string]string](t, resp)["mode"])

	resp = env.do(t, http.MethodPut, "/players/p1/loop", map[string]any{"mode": "shuffle"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEnqueueResolvesAhead(t *testing.T) {
	res := &fakeResolver{enabled: true}
	env := newTestEnv(t, Config{}, res)
	p := env.createPlayer(t, "p1")

	downloaded := filepath.Join(env.dir, "resonix_dl.m4a")
	require.NoError(t, os.WriteFile(downloaded, nil, 0o644))
	res.set(downloaded, nil)

	page := "https://www.youtube.com/watch?v=abc"
	resp := env.do(t, http.MethodPost, "/players/p1/queue", map[string]any{"uri": page})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	queue := p.Queue()
	require.Len(t, queue, 1)
	assert.Equal(t, page, queue[0].URI)
	assert.Equal(t, downloaded, queue[0].PreparedPath)

	res.set("", failure.New(failure.PolicyRejection, "blocked", errors.New("host not allowed")))
	resp = env.do(t, http.MethodPost, "/players/p1/queue", map[string]any{"uri": page})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Len(t, p.Queue(), 1)
}

func TestEnqueueRejectsBlockedSource(t *testing.T) {
	res := &fakeResolver{policy: resolver.NewPolicy(nil, []string{`blocked\.example`})}
	env := newTestEnv(t, Config{}, res)
	p := env.createPlayer(t, "p1")

	resp := env.do(t, http.MethodPost, "/players/p1/queue", map[string]any{"uri": "https://blocked.example/x.mp3"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, p.Queue())

	good := filepath.Join(env.dir, "good.wav")
	resp = env.do(t, http.MethodPost, "/players/p1/queue", map[string]any{"uri": good})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	queue := p.Queue()
	require.Len(t, queue, 1)
	assert.Equal(t, good, queue[0].URI)
	assert.Equal(t, player.StateStreaming, p.State())
}

func TestTrackAndDelete(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	env.createPlayer(t, "p1")

	resp := env.do(t, http.MethodGet, "/players/p1/track", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	info := decodeBody[player.TrackInfo](t, resp)
	assert.Equal(t, env.track, info.Identifier)
	assert.True(t, info.IsStream)
	assert.False(t, info.IsSeekable)

	resp = env.do(t, http.MethodDelete, "/players/p1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/players/p1/track", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLoadTracks(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)

	resp := env.do(t, http.MethodGet, "/loadtracks?identifier=", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"loadType":"empty","data":{}}`, readString(t, resp))

	resp = env.do(t, http.MethodGet, "/loadtracks?identifier=https://example.com/a.mp3", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		LoadType string   `json:"loadType"`
		Data     trackOut `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "track", result.LoadType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("https://example.com/a.mp3")), result.Data.Encoded)
	assert.Equal(t, "direct", result.Data.Info.SourceName)
}

func TestDecodeTrack(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)

	resp := env.do(t, http.MethodGet, "/decodetrack?encodedTrack=%25%25%25", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid base64", readString(t, resp))

	encoded := base64.StdEncoding.EncodeToString([]byte("song.mp3"))
	resp = env.do(t, http.MethodGet, "/decodetrack?encodedTrack="+encoded, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "song.mp3", decodeBody[trackOut](t, resp).Info.Identifier)
}

func TestDecodeTracksSkipsInvalid(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)

	body := []string{base64.StdEncoding.EncodeToString([]byte("a.flac")), "%%%"}
	resp := env.do(t, http.MethodPost, "/decodetracks", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tracks := decodeBody[[]trackOut](t, resp)
	require.Len(t, tracks, 1)
	assert.Equal(t, "a.flac", tracks[0].Info.Title)
}

func TestResolveEndpoint(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv(t, Config{}, &fakeResolver{})
		resp := env.do(t, http.MethodGet, "/resolve?url=x", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "resolver disabled", readString(t, resp))
	})

	t.Run("missing url", func(t *testing.T) {
		env := newTestEnv(t, Config{}, &fakeResolver{enabled: true})
		resp := env.do(t, http.MethodGet, "/resolve", nil)
		assert.Equal(t, "missing url param", readString(t, resp))
	})

	t.Run("resolved", func(t *testing.T) {
		env := newTestEnv(t, Config{}, &fakeResolver{enabled: true, resolved: "/tmp/resonix_x.m4a"})
		resp := env.do(t, http.MethodGet, "/resolve?url=https://youtu.be/x", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "/tmp/resonix_x.m4a", readString(t, resp))
	})

	t.Run("failed", func(t *testing.T) {
		env := newTestEnv(t, Config{}, &fakeResolver{enabled: true, err: errors.New("boom")})
		resp := env.do(t, http.MethodGet, "/resolve?url=https://youtu.be/x", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "error: boom", readString(t, resp))
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"exists", player.ErrSessionExists, http.StatusConflict},
		{"policy", failure.New(failure.PolicyRejection, "x", nil), http.StatusForbidden},
		{"missing", failure.New(failure.SourceUnavailable, "x", nil), http.StatusNotFound},
		{"resolution", failure.New(failure.ResolutionFailure, "x", nil), http.StatusBadRequest},
		{"decode open", failure.New(failure.DecodeOpenFailure, "x", nil), http.StatusUnsupportedMediaType},
		{"tool", failure.New(failure.ToolFailure, "x", nil), http.StatusBadGateway},
		{"other", errors.New("x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
