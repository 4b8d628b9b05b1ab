package whisper

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/veilvox/veilvox/pkg/audio"
	"github.com/veilvox/veilvox/pkg/provider/stt"
)

var _ stt.Provider = (*Server)(nil)

// Server implements stt.Provider against a running whisper-server binary,
// which exposes batch inference at POST /inference. The model lives in the
// server process, so Load is a bookkeeping step here: the first successful
// call just marks the provider Ready.
type Server struct {
	baseURL  string
	model    string
	language string
	client   *http.Client

	state atomic.Int32
}

// ServerOption is a functional option for configuring a [Server].
type ServerOption func(*Server)

// WithLanguage sets the language code sent with each inference request.
// Defaults to "en".
func WithLanguage(lang string) ServerOption {
	return func(s *Server) {
		if lang != "" {
			s.language = lang
		}
	}
}

// WithModel sets the model identifier forwarded to the server. When empty
// the server uses whichever model it was started with — the default.
func WithModel(model string) ServerOption {
	return func(s *Server) { s.model = model }
}

// WithHTTPClient replaces the HTTP client. The default has a 30 s timeout,
// generous enough for CPU inference of a long utterance.
func WithHTTPClient(c *http.Client) ServerOption {
	return func(s *Server) {
		if c != nil {
			s.client = c
		}
	}
}

// NewServer creates a provider that sends inference requests to the
// whisper-server at baseURL (e.g. "http://localhost:8080").
func NewServer(baseURL string, opts ...ServerOption) (*Server, error) {
	if baseURL == "" {
		return nil, errors.New("whisper: server URL must not be empty")
	}
	s := &Server{
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: defaultLanguage,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Load implements stt.Provider. The remote process owns the model, so
// there is nothing to bring into memory here; Load only flips the provider
// to Ready.
func (s *Server) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state.Store(int32(stt.StateReady))
	return nil
}

// State implements stt.Provider.
func (s *Server) State() stt.ModelState {
	return stt.ModelState(s.state.Load())
}

// Transcribe implements stt.Provider. The utterance is WAV-encoded and
// POSTed to /inference as multipart form data.
func (s *Server) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if err := s.Load(ctx); err != nil {
		return "", err
	}

	trimmed := audio.TrimSilence(samples, trimThreshold)
	if len(trimmed) < minSamples {
		return "", nil
	}
	if sampleRate > 0 && sampleRate != whisperSampleRate {
		trimmed = audio.Resample(trimmed, sampleRate, whisperSampleRate)
	}

	wav := encodeWAV(audio.Float32ToPCM16(trimmed), whisperSampleRate, 1)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}
	if s.language != "" {
		if err := mw.WriteField("language", s.language); err != nil {
			return "", fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if s.model != "" {
		if err := mw.WriteField("model", s.model); err != nil {
			return "", fmt.Errorf("whisper: write model field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("whisper: read response body: %w", err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}

// Close implements stt.Provider.
func (s *Server) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// encodeWAV wraps raw 16-bit signed little-endian PCM in a standard
// RIFF/WAV container, the format whisper-server expects for uploads.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const bitsPerSample = 16
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // PCM sub-chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}
