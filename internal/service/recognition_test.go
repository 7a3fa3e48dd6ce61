package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/timmy/museguide/internal/domain"
	"github.com/timmy/museguide/internal/repository"
)

// testImage returns a small valid PNG for pipeline tests.
func testImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

// fakeChat returns a canned response (or error) per model ID and
// records the order models were called in.
type fakeChat struct {
	responses map[string]string
	errs      map[string]error
	calls     []string
	requests  []*ChatRequest
}

func (f *fakeChat) ChatCompletion(_ context.Context, req *ChatRequest) (string, error) {
	f.calls = append(f.calls, req.Model)
	f.requests = append(f.requests, req)
	if err, ok := f.errs[req.Model]; ok {
		return "", err
	}
	return f.responses[req.Model], nil
}

type fakeEmbedder struct {
	vector []float32
	err    error
	texts  []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.texts = append(f.texts, text)
	return f.vector, f.err
}

type fakeVectorIndex struct {
	matches []repository.ArtworkMatch
	err     error
	queries int
}

func (f *fakeVectorIndex) NearestArtworks(_ context.Context, _ []float32, _ float32, _ int) ([]repository.ArtworkMatch, error) {
	f.queries++
	return f.matches, f.err
}

type fakeCatalog struct {
	artworks map[string]*domain.Artwork
}

func (f *fakeCatalog) GetByIDWithHall(_ context.Context, id string) (*domain.Artwork, error) {
	if a, ok := f.artworks[id]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("artwork %s not found", id)
}

func newTestRecognitionService(chat *fakeChat, embedder *fakeEmbedder, catalog *fakeCatalog, vectors *fakeVectorIndex) *RecognitionService {
	if embedder == nil {
		embedder = &fakeEmbedder{vector: []float32{0.1, 0.2}}
	}
	if catalog == nil {
		catalog = &fakeCatalog{}
	}
	if vectors == nil {
		vectors = &fakeVectorIndex{}
	}
	return NewRecognitionService(chat, embedder, catalog, vectors, &RecognitionConfig{
		VLMModel:            "primary-model",
		SecondaryVLMModel:   "secondary-model",
		SimilarityThreshold: 0.8,
	})
}

func TestIsInsufficient(t *testing.T) {
	testCases := []struct {
		name    string
		artwork domain.Artwork
		want    bool
	}{
		{
			name:    "full record",
			artwork: domain.Artwork{NameCN: "星月夜", Artist: "梵高", DescriptionCasual: "一幅名画"},
			want:    false,
		},
		{
			name:    "name known artist unknown with description",
			artwork: domain.Artwork{NameCN: "星月夜", Artist: "Unknown", DescriptionCasual: "一幅名画"},
			want:    false,
		},
		{
			name:    "name and artist known without description",
			artwork: domain.Artwork{NameCN: "蒙娜丽莎", Artist: "达芬奇"},
			want:    false,
		},
		{
			name:    "name and artist unknown despite description",
			artwork: domain.Artwork{NameCN: "未知", Artist: "Unknown", DescriptionCasual: "一幅画"},
			want:    true,
		},
		{
			name:    "name unknown and no description",
			artwork: domain.Artwork{NameCN: "unknown", Artist: "梵高"},
			want:    true,
		},
		{
			name:    "artist unknown and no description",
			artwork: domain.Artwork{NameCN: "星月夜", Artist: "不详"},
			want:    true,
		},
		{
			name:    "placeholder comparison ignores case and spacing",
			artwork: domain.Artwork{NameCN: "  UNKNOWN  ", Artist: "NULL", DescriptionCasual: "text"},
			want:    true,
		},
		{
			name:    "whitespace-only description counts as empty",
			artwork: domain.Artwork{NameCN: "星月夜", Artist: "none", DescriptionCasual: "   "},
			want:    true,
		},
		{
			name:    "professional description also counts",
			artwork: domain.Artwork{NameCN: "星月夜", Artist: "未知", DescriptionProfessional: "专业描述"},
			want:    false,
		},
		{
			name:    "empty everything",
			artwork: domain.Artwork{},
			want:    true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isInsufficient(&tc.artwork); got != tc.want {
				t.Errorf("isInsufficient() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseExtraction(t *testing.T) {
	testCases := []struct {
		name     string
		content  string
		wantName string
		wantErr  bool
	}{
		{
			name:     "bare JSON",
			content:  `{"name_cn": "星月夜", "artist": "梵高"}`,
			wantName: "星月夜",
		},
		{
			name:     "fenced JSON",
			content:  "```json\n{\"name_cn\": \"星月夜\"}\n```",
			wantName: "星月夜",
		},
		{
			name:     "fence without language tag",
			content:  "```\n{\"name_cn\": \"星月夜\"}\n```",
			wantName: "星月夜",
		},
		{
			name:     "JSON embedded in prose",
			content:  "好的，以下是识别结果：{\"name_cn\": \"星月夜\", \"style\": \"后印象派\"} 希望有帮助。",
			wantName: "星月夜",
		},
		{
			name:     "nested braces in prose",
			content:  `前言 {"name_cn": "星月夜", "extra": {"k": "v"}} 后记`,
			wantName: "星月夜",
		},
		{
			name:    "no JSON at all",
			content: "这张图片我看不清楚。",
			wantErr: true,
		},
		{
			name:    "empty response",
			content: "   ",
			wantErr: true,
		},
		{
			name:    "malformed object",
			content: `{"name_cn": }`,
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			extraction, err := parseExtraction(tc.content)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parseExtraction(%q) expected error, got %+v", tc.content, extraction)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseExtraction(%q) unexpected error: %v", tc.content, err)
			}
			if extraction.NameCN != tc.wantName {
				t.Errorf("NameCN = %q, want %q", extraction.NameCN, tc.wantName)
			}
		})
	}
}

func TestBuildEmbeddingText(t *testing.T) {
	testCases := []struct {
		name    string
		artwork domain.Artwork
		want    string
	}{
		{
			name: "all fields in fixed order",
			artwork: domain.Artwork{
				NameCN:            "星月夜",
				NameEN:            "The Starry Night",
				Artist:            "梵高",
				Year:              "1889",
				Style:             "后印象派",
				DescriptionCasual: "旋转的星空",
			},
			want: "名称:星月夜\n英文名:The Starry Night\n作者:梵高\n年代:1889\n风格:后印象派\n描述:旋转的星空",
		},
		{
			name:    "empty fields skipped",
			artwork: domain.Artwork{NameCN: "星月夜", Artist: "梵高"},
			want:    "名称:星月夜\n作者:梵高",
		},
		{
			name: "professional description used when casual missing",
			artwork: domain.Artwork{
				NameCN:                  "星月夜",
				DescriptionProfessional: "专业描述",
			},
			want: "名称:星月夜\n描述:专业描述",
		},
		{
			name:    "nothing to embed",
			artwork: domain.Artwork{},
			want:    "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := BuildEmbeddingText(&tc.artwork); got != tc.want {
				t.Errorf("BuildEmbeddingText() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRecognizePrimaryErrorSecondarySucceeds(t *testing.T) {
	chat := &fakeChat{
		responses: map[string]string{
			"primary-model":   `{"error": "无法识别为艺术品"}`,
			"secondary-model": `{"name_cn": "蒙娜丽莎", "artist": "达芬奇", "description": "文艺复兴肖像"}`,
		},
	}
	vectors := &fakeVectorIndex{}
	svc := newTestRecognitionService(chat, nil, nil, vectors)

	result := svc.Recognize(context.Background(), testImage(t))

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Err)
	}
	if result.Source != domain.SourceKimi {
		t.Errorf("Source = %q, want %q", result.Source, domain.SourceKimi)
	}
	if result.Artwork.NameCN != "蒙娜丽莎" {
		t.Errorf("NameCN = %q, want 蒙娜丽莎", result.Artwork.NameCN)
	}
	if got := chat.calls; len(got) != 2 || got[0] != "primary-model" || got[1] != "secondary-model" {
		t.Errorf("model call order = %v", got)
	}
	// No catalog hit, the model answer stands.
	if vectors.queries != 1 {
		t.Errorf("vector queries = %d, want 1", vectors.queries)
	}
}

func TestRecognizeInsufficientPrimarySecondaryFailsKeepsPrimary(t *testing.T) {
	chat := &fakeChat{
		responses: map[string]string{
			// Structurally valid but name and artist are placeholders
			"primary-model": `{"name_cn": "未知", "artist": "Unknown", "description": "一幅油画"}`,
		},
		errs: map[string]error{
			"secondary-model": fmt.Errorf("upstream timeout"),
		},
	}
	svc := newTestRecognitionService(chat, nil, nil, nil)

	result := svc.Recognize(context.Background(), testImage(t))

	if !result.Success {
		t.Fatalf("expected the insufficient primary result to stand, got error %q", result.Err)
	}
	if result.Source != domain.SourceVLM {
		t.Errorf("Source = %q, want %q", result.Source, domain.SourceVLM)
	}
	if result.Artwork.Artist != "Unknown" {
		t.Errorf("Artist = %q, want Unknown", result.Artwork.Artist)
	}
}

func TestRecognizeAllStrategiesFail(t *testing.T) {
	chat := &fakeChat{
		errs: map[string]error{
			"primary-model":   fmt.Errorf("primary down"),
			"secondary-model": fmt.Errorf("secondary down"),
		},
	}
	svc := newTestRecognitionService(chat, nil, nil, nil)

	result := svc.Recognize(context.Background(), testImage(t))

	if result.Success {
		t.Fatal("expected failure when every strategy fails")
	}
	// Last failure wins.
	if result.Source != domain.SourceKimi {
		t.Errorf("Source = %q, want %q", result.Source, domain.SourceKimi)
	}
	if !strings.Contains(result.Err, "secondary down") {
		t.Errorf("Err = %q, want the last failure's message", result.Err)
	}
}

func TestRecognizeSufficientPrimaryShortCircuits(t *testing.T) {
	chat := &fakeChat{
		responses: map[string]string{
			"primary-model": `{"name_cn": "星月夜", "artist": "梵高", "description": "旋转的星空"}`,
		},
		errs: map[string]error{
			"secondary-model": fmt.Errorf("must not be called"),
		},
	}
	svc := newTestRecognitionService(chat, nil, nil, nil)

	result := svc.Recognize(context.Background(), testImage(t))

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Err)
	}
	if len(chat.calls) != 1 {
		t.Errorf("chat calls = %v, want only the primary model", chat.calls)
	}
	if chat.requests[0].Temperature != 0.2 || chat.requests[0].MaxTokens != 800 {
		t.Errorf("extraction request params = (%v, %v), want (0.2, 800)",
			chat.requests[0].Temperature, chat.requests[0].MaxTokens)
	}
}

func TestRecognizeCatalogMatchReplacesModelAnswer(t *testing.T) {
	catalogued := &domain.Artwork{
		ID:     "a8098c1a-f86e-11da-bd1a-00112444be1e",
		NameCN: "星月夜",
		Artist: "文森特·梵高",
		Hall:   &domain.Hall{HallName: "名画厅", Floor: 2},
	}
	chat := &fakeChat{
		responses: map[string]string{
			"primary-model": `{"name_cn": "星月夜", "artist": "梵高", "description": "旋转的星空"}`,
		},
	}
	vectors := &fakeVectorIndex{
		matches: []repository.ArtworkMatch{{ArtworkID: catalogued.ID, Similarity: 0.93}},
	}
	catalog := &fakeCatalog{artworks: map[string]*domain.Artwork{catalogued.ID: catalogued}}
	svc := newTestRecognitionService(chat, nil, catalog, vectors)

	result := svc.Recognize(context.Background(), testImage(t))

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Err)
	}
	if result.Source != domain.SourceVectorSearch {
		t.Errorf("Source = %q, want %q", result.Source, domain.SourceVectorSearch)
	}
	if result.Similarity == nil || *result.Similarity != 0.93 {
		t.Errorf("Similarity = %v, want 0.93", result.Similarity)
	}
	if result.Artwork != catalogued {
		t.Errorf("Artwork = %+v, want the catalog record", result.Artwork)
	}
}

func TestRecognizeEmbeddingFailureKeepsModelAnswer(t *testing.T) {
	chat := &fakeChat{
		responses: map[string]string{
			"primary-model": `{"name_cn": "星月夜", "artist": "梵高", "description": "旋转的星空"}`,
		},
	}
	embedder := &fakeEmbedder{err: fmt.Errorf("embedding capability down")}
	svc := newTestRecognitionService(chat, embedder, nil, nil)

	result := svc.Recognize(context.Background(), testImage(t))

	if !result.Success {
		t.Fatalf("expected the model answer to survive an embedding failure, got %q", result.Err)
	}
	if result.Source != domain.SourceVLM {
		t.Errorf("Source = %q, want %q", result.Source, domain.SourceVLM)
	}
}

func TestRecognizeInvalidImage(t *testing.T) {
	chat := &fakeChat{}
	svc := newTestRecognitionService(chat, nil, nil, nil)

	result := svc.Recognize(context.Background(), []byte("not an image"))

	if result.Success {
		t.Fatal("expected failure for undecodable image data")
	}
	if len(chat.calls) != 0 {
		t.Errorf("no model should be called for an undecodable image, got %v", chat.calls)
	}
}
