package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/timmy/museguide/internal/domain"
	"github.com/timmy/museguide/internal/repository"
)

type fakeSpeech struct {
	audio  []byte
	err    error
	calls  int
	voices []string
}

func (f *fakeSpeech) Speak(_ context.Context, _ string, voice string) ([]byte, error) {
	f.calls++
	f.voices = append(f.voices, voice)
	if f.err != nil {
		return nil, f.err
	}
	return f.audio, nil
}

type cacheKey struct {
	artworkID string
	style     domain.Style
}

type fakeAudioCache struct {
	entries map[cacheKey]string
	voices  map[cacheKey]string
	saveErr error
}

func newFakeAudioCache() *fakeAudioCache {
	return &fakeAudioCache{
		entries: make(map[cacheKey]string),
		voices:  make(map[cacheKey]string),
	}
}

func (f *fakeAudioCache) GetURL(_ context.Context, artworkID string, style domain.Style) (string, error) {
	url, ok := f.entries[cacheKey{artworkID, style}]
	if !ok {
		return "", repository.ErrNoCacheEntry
	}
	return url, nil
}

func (f *fakeAudioCache) Save(_ context.Context, artworkID string, style domain.Style, voice, audioURL string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.entries[cacheKey{artworkID, style}] = audioURL
	f.voices[cacheKey{artworkID, style}] = voice
	return nil
}

// fakeBlobStore keeps objects in memory and serves them over an
// httptest server so the cached-audio download path is exercised for
// real.
type fakeBlobStore struct {
	baseURL string
	objects map[string][]byte
}

func newFakeBlobStore(t *testing.T) (*fakeBlobStore, *httptest.Server) {
	t.Helper()
	store := &fakeBlobStore{objects: make(map[string][]byte)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/")
		data, ok := store.objects[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	store.baseURL = srv.URL
	return store, srv
}

func (f *fakeBlobStore) EnsureBucket(_ context.Context) error { return nil }

func (f *fakeBlobStore) Upload(_ context.Context, key string, reader io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeBlobStore) Download(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeBlobStore) GetURL(key string) string {
	return f.baseURL + "/" + key
}

func (f *fakeBlobStore) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeBlobStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := f.objects[key]
	return ok, nil
}

var testVoices = map[domain.Style]string{
	domain.StyleProfessional: "tongtong",
	domain.StyleCasual:       "xiaochen",
}

func TestSynthesizeSecondRequestServedFromCache(t *testing.T) {
	speech := &fakeSpeech{audio: []byte("RIFF-fake-wav")}
	cache := newFakeAudioCache()
	blobs, _ := newFakeBlobStore(t)
	svc := NewTTSService(speech, cache, blobs, &TTSConfig{Voices: testVoices})

	ctx := context.Background()
	artworkID := "a8098c1a-f86e-11da-bd1a-00112444be1e"

	first := svc.Synthesize(ctx, artworkID, "讲解词", domain.StyleProfessional)
	if !first.Success {
		t.Fatalf("first synthesis failed: %q", first.Err)
	}
	if first.Origin != domain.OriginGenerated {
		t.Errorf("first Origin = %q, want %q", first.Origin, domain.OriginGenerated)
	}
	wantKey := artworkID + "_professional.wav"
	if _, ok := blobs.objects[wantKey]; !ok {
		t.Errorf("blob %q not uploaded, have %v", wantKey, blobs.objects)
	}
	if voice := cache.voices[cacheKey{artworkID, domain.StyleProfessional}]; voice != "tongtong" {
		t.Errorf("cached voice = %q, want tongtong", voice)
	}

	second := svc.Synthesize(ctx, artworkID, "讲解词", domain.StyleProfessional)
	if !second.Success {
		t.Fatalf("second synthesis failed: %q", second.Err)
	}
	if second.Origin != domain.OriginCached {
		t.Errorf("second Origin = %q, want %q", second.Origin, domain.OriginCached)
	}
	if speech.calls != 1 {
		t.Errorf("speech calls = %d, want exactly one synthesis", speech.calls)
	}
	if !bytes.Equal(second.AudioData, speech.audio) {
		t.Errorf("cached AudioData = %q, want the original waveform", second.AudioData)
	}
	if second.AudioURL != first.AudioURL {
		t.Errorf("AudioURL changed between requests: %q vs %q", first.AudioURL, second.AudioURL)
	}
}

func TestSynthesizeStaleCacheEntryIsHardFailure(t *testing.T) {
	speech := &fakeSpeech{audio: []byte("RIFF-fake-wav")}
	cache := newFakeAudioCache()
	blobs, _ := newFakeBlobStore(t)
	svc := NewTTSService(speech, cache, blobs, &TTSConfig{Voices: testVoices})

	artworkID := "a8098c1a-f86e-11da-bd1a-00112444be1e"
	// Ledger entry points at a blob that no longer exists.
	cache.entries[cacheKey{artworkID, domain.StyleCasual}] = blobs.GetURL("gone.wav")

	result := svc.Synthesize(context.Background(), artworkID, "讲解词", domain.StyleCasual)

	if result.Success {
		t.Fatal("expected a hard failure for a stale cache pointer")
	}
	if !strings.Contains(result.Err, "缓存音频下载失败") {
		t.Errorf("Err = %q, want the cache download failure message", result.Err)
	}
	if speech.calls != 0 {
		t.Errorf("speech calls = %d, a stale entry must never be resynthesized over", speech.calls)
	}
}

func TestSynthesizeVoicePerStyle(t *testing.T) {
	speech := &fakeSpeech{audio: []byte("RIFF-fake-wav")}
	cache := newFakeAudioCache()
	blobs, _ := newFakeBlobStore(t)
	svc := NewTTSService(speech, cache, blobs, &TTSConfig{Voices: testVoices})

	ctx := context.Background()
	artworkID := "a8098c1a-f86e-11da-bd1a-00112444be1e"

	svc.Synthesize(ctx, artworkID, "讲解词", domain.StyleProfessional)
	svc.Synthesize(ctx, artworkID, "讲解词", domain.StyleCasual)

	want := []string{"tongtong", "xiaochen"}
	if len(speech.voices) != 2 || speech.voices[0] != want[0] || speech.voices[1] != want[1] {
		t.Errorf("voices = %v, want %v", speech.voices, want)
	}
}

func TestSynthesizeSpeechFailure(t *testing.T) {
	speech := &fakeSpeech{err: fmt.Errorf("synthesis quota exceeded")}
	cache := newFakeAudioCache()
	blobs, _ := newFakeBlobStore(t)
	svc := NewTTSService(speech, cache, blobs, &TTSConfig{Voices: testVoices})

	result := svc.Synthesize(context.Background(), "id-1", "讲解词", domain.StyleProfessional)

	if result.Success {
		t.Fatal("expected failure when synthesis fails")
	}
	if !strings.Contains(result.Err, "synthesis quota exceeded") {
		t.Errorf("Err = %q", result.Err)
	}
	if len(cache.entries) != 0 {
		t.Errorf("no cache entry should be written on failure, got %v", cache.entries)
	}
}

func TestSynthesizeDirect(t *testing.T) {
	speech := &fakeSpeech{audio: []byte("RIFF-fake-wav")}
	cache := newFakeAudioCache()
	blobs, _ := newFakeBlobStore(t)
	svc := NewTTSService(speech, cache, blobs, &TTSConfig{Voices: testVoices})

	ctx := context.Background()

	audio := svc.SynthesizeDirect(ctx, "讲解词", domain.StyleCasual)
	if !bytes.Equal(audio, speech.audio) {
		t.Errorf("audio = %q, want the synthesized waveform", audio)
	}
	if len(cache.entries) != 0 || len(blobs.objects) != 0 {
		t.Error("direct synthesis must not touch the cache or the blob store")
	}

	speech.err = fmt.Errorf("synthesis down")
	if audio := svc.SynthesizeDirect(ctx, "讲解词", domain.StyleCasual); audio != nil {
		t.Errorf("audio = %q, want nil on failure", audio)
	}
}
