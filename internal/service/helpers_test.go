package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository/memory"
	"github.com/maheshrc27/crosspost/internal/storage"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"github.com/maheshrc27/crosspost/pkg/httpclient"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Form parses a urlencoded request body.
func (c recordedCall) Form() url.Values {
	v, _ := url.ParseQuery(string(c.Body))
	return v
}

// fakePlatform is an httptest server standing in for every provider API. Routes are keyed
// by "METHOD /path"; unknown routes answer 404.
type fakePlatform struct {
	srv    *httptest.Server
	mu     sync.Mutex
	calls  []recordedCall
	routes map[string]http.HandlerFunc
}

func newFakePlatform(t *testing.T) *fakePlatform {
	t.Helper()
	f := &fakePlatform{routes: map[string]http.HandlerFunc{}}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.calls = append(f.calls, recordedCall{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		h, ok := f.routes[r.Method+" "+r.URL.Path]
		f.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"no route"}`))
			return
		}
		r.Body = io.NopCloser(strings.NewReader(string(body)))
		h(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakePlatform) URL() string {
	return f.srv.URL
}

func (f *fakePlatform) Handle(route string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[route] = h
}

func (f *fakePlatform) JSON(route string, status int, body string) {
	f.Handle(route, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func (f *fakePlatform) Calls() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

func (f *fakePlatform) Paths() []string {
	var paths []string
	for _, c := range f.Calls() {
		paths = append(paths, c.Method+" "+c.Path)
	}
	return paths
}

func noSleep(context.Context, time.Duration) error { return nil }

func testConfig(base string) config.Config {
	return config.Config{
		OAuthStateTTL: 10 * time.Minute,
		Facebook: config.Facebook{
			AppID:       "fb-app",
			AppSecret:   "fb-secret",
			RedirectURI: "http://localhost/auth/facebook/callback",
			GraphURL:    base,
			DialogURL:   base + "/dialog/oauth",
		},
		Instagram: config.Instagram{GraphURL: base},
		Tiktok: config.Tiktok{
			ClientKey:    "tt-key",
			ClientSecret: "tt-secret",
			RedirectURI:  "http://localhost/auth/tiktok/callback",
			APIURL:       base,
			AuthURL:      base + "/v2/auth/authorize/",
		},
		Google: config.Google{
			ClientID:     "g-client",
			ClientSecret: "g-secret",
			RedirectURI:  "http://localhost/auth/youtube/callback",
			AuthURL:      base + "/o/oauth2/auth",
			TokenURL:     base + "/token",
			YoutubeURL:   base + "/",
		},
	}
}

type testEnv struct {
	db        *memory.DB
	fake      *fakePlatform
	cfg       config.Config
	hc        *httpclient.Client
	files     storage.Files
	creds     CredentialService
	publisher PublishService
	posts     PostService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	fake := newFakePlatform(t)
	db := memory.New()
	cfg := testConfig(fake.URL())
	hc := httpclient.New(httpclient.WithSleeper(noSleep), httpclient.WithTimeout(5*time.Second))
	files := storage.NewLocalStore(t.TempDir())
	creds := NewCredentialService(cfg, hc, db.Channels())

	adapters := NewRegistry(
		NewFacebookService(cfg, hc, creds),
		NewInstagramService(cfg, hc, creds),
		NewTiktokService(cfg, hc, creds, files),
		NewYoutubeService(cfg, hc, creds, files),
	)
	return &testEnv{
		db:        db,
		fake:      fake,
		cfg:       cfg,
		hc:        hc,
		files:     files,
		creds:     creds,
		publisher: NewPublishService(db.Posts(), db.Targets(), db.Channels(), db.Videos(), adapters),
		posts:     NewPostService(db.Posts(), db.Channels(), db.Videos(), nil),
	}
}

func (e *testEnv) channel(platform models.Platform, externalID string) *models.Channel {
	return e.db.Put(&models.Channel{
		Platform:    platform,
		ExternalID:  externalID,
		Name:        externalID,
		AccessToken: "tok-" + externalID,
		IsActive:    true,
	})
}

// video writes content to a temp file and records it.
func (e *testEnv) video(t *testing.T, content []byte) *models.Video {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	v := &models.Video{Title: "Clip", FilePath: path, ContentType: "video/mp4", FileSize: int64(len(content))}
	_, err := e.db.Videos().Create(context.Background(), v)
	require.NoError(t, err)
	return v
}

func (e *testEnv) createPost(t *testing.T, pc *transfer.PostCreation) *models.Post {
	t.Helper()
	post, err := e.posts.Create(context.Background(), 7, pc)
	require.NoError(t, err)
	return post
}

func inHours(h int) *time.Time {
	t := time.Now().Add(time.Duration(h) * time.Hour).Truncate(time.Second)
	return &t
}

func targetsTo(ids ...int64) []transfer.TargetCreation {
	out := make([]transfer.TargetCreation, 0, len(ids))
	for _, id := range ids {
		out = append(out, transfer.TargetCreation{ChannelID: id})
	}
	return out
}
