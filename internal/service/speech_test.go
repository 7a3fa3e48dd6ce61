package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSpeakReturnsAudio(t *testing.T) {
	wav := []byte("RIFF-fake-wav-bytes")
	var gotReq speechRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("path = %q, want /audio/speech", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(wav)
	}))
	defer srv.Close()

	client := NewZhipuSpeechClient(&ZhipuSpeechConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "glm-tts",
	})

	audio, err := client.Speak(context.Background(), "讲解词", "tongtong")
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if !bytes.Equal(audio, wav) {
		t.Errorf("audio = %q, want %q", audio, wav)
	}

	want := speechRequest{Model: "glm-tts", Input: "讲解词", Voice: "tongtong", ResponseFormat: "wav"}
	if gotReq != want {
		t.Errorf("request = %+v, want %+v", gotReq, want)
	}
}

func TestSpeakErrorResponses(t *testing.T) {
	testCases := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantInErr   string
	}{
		{
			name:        "HTTP error with nested message",
			status:      http.StatusBadRequest,
			contentType: "application/json",
			body:        `{"error": {"message": "invalid voice"}}`,
			wantInErr:   "invalid voice",
		},
		{
			name:        "HTTP error with flat message",
			status:      http.StatusTooManyRequests,
			contentType: "application/json",
			body:        `{"message": "rate limited"}`,
			wantInErr:   "rate limited",
		},
		{
			name:        "OK status but JSON body is still an error",
			status:      http.StatusOK,
			contentType: "application/json",
			body:        `{"error": {"message": "quota exhausted"}}`,
			wantInErr:   "quota exhausted",
		},
		{
			name:        "unparseable error body falls back to raw text",
			status:      http.StatusInternalServerError,
			contentType: "text/plain",
			body:        "upstream exploded",
			wantInErr:   "upstream exploded",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tc.contentType)
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := NewZhipuSpeechClient(&ZhipuSpeechConfig{
				APIKey:  "test-key",
				BaseURL: srv.URL,
				Model:   "glm-tts",
			})

			_, err := client.Speak(context.Background(), "讲解词", "tongtong")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantInErr) {
				t.Errorf("err = %q, want it to mention %q", err, tc.wantInErr)
			}
		})
	}
}

func TestSpeechErrorMessageTruncatesLongBodies(t *testing.T) {
	long := strings.Repeat("x", 500)
	got := speechErrorMessage([]byte(long))
	if len(got) != 200 {
		t.Errorf("message length = %d, want 200", len(got))
	}
}
