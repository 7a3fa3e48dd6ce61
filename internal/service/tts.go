package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/museguide/internal/domain"
	"github.com/timmy/museguide/internal/logger"
	"github.com/timmy/museguide/internal/repository"
	"github.com/timmy/museguide/internal/storage"
)

// speechSynthesizer is the slice of ZhipuSpeechClient used here.
type speechSynthesizer interface {
	Speak(ctx context.Context, text, voice string) ([]byte, error)
}

// audioCache is the ledger of previously synthesized narrations.
type audioCache interface {
	GetURL(ctx context.Context, artworkID string, style domain.Style) (string, error)
	Save(ctx context.Context, artworkID string, style domain.Style, voice, audioURL string) error
}

// TTSConfig holds configuration for the speech service.
type TTSConfig struct {
	// Voices maps a narration style to a provider voice ID. Every
	// supported style must have an entry.
	Voices map[domain.Style]string
}

// TTSService turns narration text into audio. For catalogued artworks
// each (artwork, style) pair is synthesized at most once; repeat
// requests are served from the blob store via the cache ledger.
type TTSService struct {
	speech     speechSynthesizer
	cache      audioCache
	blobs      storage.ObjectStorage
	downloader *resty.Client
	voices     map[domain.Style]string
}

// NewTTSService creates a new speech service.
// Parameters:
//   - speech: text-to-speech client.
//   - cache: audio cache ledger.
//   - blobs: audio blob store.
//   - cfg: style-to-voice mapping.
// Returns:
//   - *TTSService: initialized service.
func NewTTSService(speech speechSynthesizer, cache audioCache, blobs storage.ObjectStorage, cfg *TTSConfig) *TTSService {
	downloader := resty.New()
	downloader.SetTimeout(30 * time.Second)

	return &TTSService{
		speech:     speech,
		cache:      cache,
		blobs:      blobs,
		downloader: downloader,
		voices:     cfg.Voices,
	}
}

// Synthesize returns audio for a catalogued artwork's narration,
// serving from the cache when a prior synthesis exists. A cache hit
// whose audio cannot be fetched is a hard failure: the entry is the
// record of truth and is never silently resynthesized over.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - artworkID: catalog ID the cache ledger is keyed by.
//   - text: narration text to voice on a cache miss.
//   - style: narration style selecting the voice.
// Returns:
//   - *domain.SynthesisResult: synthesis outcome with audio bytes,
//     public URL and origin.
func (s *TTSService) Synthesize(ctx context.Context, artworkID, text string, style domain.Style) *domain.SynthesisResult {
	voice, ok := s.voices[style]
	if !ok {
		return &domain.SynthesisResult{Err: fmt.Sprintf("no voice configured for style %q", style)}
	}

	audioURL, err := s.cache.GetURL(ctx, artworkID, style)
	switch {
	case err == nil:
		data, err := s.download(ctx, audioURL)
		if err != nil {
			return &domain.SynthesisResult{Err: "缓存音频下载失败: " + err.Error()}
		}
		logger.FromContext(ctx).WithFields(logger.Fields{
			logger.FieldArtworkID: artworkID,
			logger.FieldStyle:     style,
		}).Debug("Serving cached audio")
		return &domain.SynthesisResult{
			Success:   true,
			Origin:    domain.OriginCached,
			AudioURL:  audioURL,
			AudioData: data,
		}
	case !errors.Is(err, repository.ErrNoCacheEntry):
		return &domain.SynthesisResult{Err: "audio cache lookup failed: " + err.Error()}
	}

	data, err := s.speech.Speak(ctx, text, voice)
	if err != nil {
		return &domain.SynthesisResult{Err: err.Error()}
	}

	key := fmt.Sprintf("%s_%s.wav", artworkID, style)
	if err := s.blobs.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), "audio/wav"); err != nil {
		return &domain.SynthesisResult{Err: "audio upload failed: " + err.Error()}
	}
	publicURL := s.blobs.GetURL(key)

	if err := s.cache.Save(ctx, artworkID, style, voice, publicURL); err != nil {
		// The audio is already durable; a ledger write failure costs
		// one redundant synthesis later, not correctness.
		logger.CtxWarn(ctx, "Failed to record audio cache entry for %s/%s: %v", artworkID, style, err)
	}

	return &domain.SynthesisResult{
		Success:   true,
		Origin:    domain.OriginGenerated,
		AudioURL:  publicURL,
		AudioData: data,
	}
}

// SynthesizeDirect voices text without touching the cache or blob
// store, for artworks that are not in the catalog. Returns nil when
// synthesis fails.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - text: narration text to voice.
//   - style: narration style selecting the voice.
// Returns:
//   - []byte: WAV audio bytes, or nil on failure.
func (s *TTSService) SynthesizeDirect(ctx context.Context, text string, style domain.Style) []byte {
	voice, ok := s.voices[style]
	if !ok {
		logger.CtxWarn(ctx, "No voice configured for style %q", style)
		return nil
	}

	data, err := s.speech.Speak(ctx, text, voice)
	if err != nil {
		logger.CtxWarn(ctx, "Direct synthesis failed: %v", err)
		return nil
	}
	return data
}

// download fetches previously synthesized audio from its public URL.
func (s *TTSService) download(ctx context.Context, url string) ([]byte, error) {
	resp, err := s.downloader.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() >= 400 {
		return nil, fmt.Errorf("status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}
