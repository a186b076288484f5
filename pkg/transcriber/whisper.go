package transcriber

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/z-wentao/docscribe/pkg/language"
	"github.com/z-wentao/docscribe/pkg/models"
	"github.com/z-wentao/docscribe/pkg/transcript"
)

// WhisperOptions configures a WhisperClient.
type WhisperOptions struct {
	APIKey             string
	BaseURL            string
	Model              string
	Timeout            time.Duration
	MaxSegmentDuration float64
	Languages          *language.Table
}

// WhisperClient is a Recognizer backed by the OpenAI audio API.
type WhisperClient struct {
	client      *openai.Client
	model       string
	maxDuration float64
	languages   *language.Table
}

// NewWhisperClient creates a client with the given API key.
func NewWhisperClient(opts WhisperOptions) *WhisperClient {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	model := opts.Model
	if model == "" {
		model = openai.Whisper1
	}
	maxDuration := opts.MaxSegmentDuration
	if maxDuration <= 0 {
		maxDuration = DefaultMaxSegmentDuration
	}
	languages := opts.Languages
	if languages == nil {
		languages = language.Default()
	}

	return &WhisperClient{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		maxDuration: maxDuration,
		languages:   languages,
	}
}

// DetectLanguage transcribes without a language hint and maps the language
// name the API reports to a long code.
func (wc *WhisperClient) DetectLanguage(ctx context.Context, audio models.Blob) (string, bool, error) {
	resp, err := wc.transcribe(ctx, audio, "")
	if err != nil {
		return "", false, err
	}
	long, ok := wc.languages.LongForName(resp.Language)
	return long, ok, nil
}

// Transcribe runs recognition in the language matching model, a long code.
func (wc *WhisperClient) Transcribe(ctx context.Context, audio models.Blob, model string) (*transcript.Transcript, error) {
	short, _ := wc.languages.ShortFor(model)
	resp, err := wc.transcribe(ctx, audio, short)
	if err != nil {
		return nil, err
	}

	t := transcript.New()
	for _, seg := range segmentsFromResponse(resp, model) {
		for part := range seg.SplitByMaxDuration(wc.maxDuration) {
			t.AppendSegment(part)
		}
	}
	return t, nil
}

func (wc *WhisperClient) transcribe(ctx context.Context, audio models.Blob, lang string) (openai.AudioResponse, error) {
	file, err := os.Open(audio.Path)
	if err != nil {
		return openai.AudioResponse{}, fmt.Errorf("open audio %s: %w", audio.Path, err)
	}
	defer file.Close()

	name := audio.Filename
	if name == "" {
		name = filepath.Base(audio.Path)
	}

	resp, err := wc.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    wc.model,
		FilePath: name,
		Reader:   file,
		Language: lang,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
			openai.TranscriptionTimestampGranularitySegment,
		},
	})
	if err != nil {
		return openai.AudioResponse{}, classifyOpenAIError(err)
	}
	return resp, nil
}

// segmentsFromResponse assigns every word to the segment whose time range
// contains its start.
func segmentsFromResponse(resp openai.AudioResponse, lang string) []transcript.Segment {
	segments := make([]transcript.Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segments = append(segments, transcript.Segment{
			StartTime: s.Start,
			EndTime:   s.End,
			Language:  lang,
		})
	}

	i := 0
	for _, w := range resp.Words {
		for i < len(segments)-1 && w.Start >= segments[i].EndTime {
			i++
		}
		if len(segments) == 0 {
			break
		}
		segments[i].Words = append(segments[i].Words, transcript.Word{
			Text:      strings.TrimSpace(w.Word),
			StartTime: w.Start,
			Duration:  w.End - w.Start,
		})
	}

	// No word timestamps: fall back to one token per segment.
	if len(resp.Words) == 0 {
		for i, s := range resp.Segments {
			if text := strings.TrimSpace(s.Text); text != "" {
				segments[i].Words = []transcript.Word{{Text: text, StartTime: s.Start, Duration: s.End - s.Start}}
			}
		}
	}
	return segments
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ServiceError{URL: "openai", StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &ServiceError{URL: "openai", StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return &TransportError{URL: "openai", Err: err}
}
