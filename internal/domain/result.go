package domain

// RecognitionSource identifies which capability produced a recognition.
type RecognitionSource string

const (
	SourceVLM          RecognitionSource = "vlm"
	SourceKimi         RecognitionSource = "kimi"
	SourceVectorSearch RecognitionSource = "vector_search"
)

// Origin distinguishes cached results from freshly generated ones.
type Origin string

const (
	OriginCached    Origin = "cached"
	OriginGenerated Origin = "generated"
)

// RecognitionResult is the outcome of one recognition request. It is
// constructed fresh per request and never persisted. Failures from
// remote capabilities are captured here rather than raised.
type RecognitionResult struct {
	Success    bool              `json:"success"`
	Source     RecognitionSource `json:"source,omitempty"`
	Similarity *float32          `json:"similarity,omitempty"`
	Artwork    *Artwork          `json:"artwork,omitempty"`
	Err        string            `json:"error,omitempty"`
}

// RecognitionFailure builds a failure result for the given source.
func RecognitionFailure(source RecognitionSource, msg string) *RecognitionResult {
	return &RecognitionResult{Source: source, Err: msg}
}

// NarrationResult is the outcome of narration generation. Ephemeral.
type NarrationResult struct {
	Success   bool   `json:"success"`
	Origin    Origin `json:"origin,omitempty"`
	Narration string `json:"narration,omitempty"`
	Err       string `json:"error,omitempty"`
}

// SynthesisResult is the outcome of speech synthesis. AudioData holds
// the raw waveform bytes; AudioURL points at the cached blob when one
// exists.
type SynthesisResult struct {
	Success   bool   `json:"success"`
	Origin    Origin `json:"origin,omitempty"`
	AudioURL  string `json:"audio_url,omitempty"`
	AudioData []byte `json:"-"`
	Err       string `json:"error,omitempty"`
}
