package transcriber

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/z-wentao/docscribe/pkg/models"
	"github.com/z-wentao/docscribe/pkg/transcript"
)

const (
	methodLanguageDetect = "language-detect"
	methodTranscribe     = "transcribe"

	// maxErrorBody caps how much of a failed response is kept in ServiceError.
	maxErrorBody = 4096
)

// VocapiaOptions configures a VocapiaClient.
type VocapiaOptions struct {
	URL                string
	Username           string
	Password           string
	Timeout            time.Duration
	InsecureSkipVerify bool
	MaxSegmentDuration float64

	// HTTPClient overrides the client built from Timeout and InsecureSkipVerify.
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// VocapiaClient talks to a Vocapia-style recognizer: one endpoint, the
// operation chosen by the method query parameter, raw audio in the body and
// an AudioDoc XML document back.
type VocapiaClient struct {
	baseURL     *url.URL
	username    string
	password    string
	maxDuration float64
	httpClient  *http.Client
	log         zerolog.Logger
}

// NewVocapiaClient creates a client. It does not contact the service.
func NewVocapiaClient(opts VocapiaOptions) (*VocapiaClient, error) {
	base, err := url.Parse(opts.URL)
	if err != nil || opts.URL == "" {
		return nil, fmt.Errorf("invalid recognizer url %q: %v", opts.URL, err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Minute
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if opts.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		httpClient = &http.Client{Timeout: timeout, Transport: transport}
	}

	maxDuration := opts.MaxSegmentDuration
	if maxDuration <= 0 {
		maxDuration = DefaultMaxSegmentDuration
	}

	return &VocapiaClient{
		baseURL:     base,
		username:    opts.Username,
		password:    opts.Password,
		maxDuration: maxDuration,
		httpClient:  httpClient,
		log:         opts.Logger.With().Str("component", "vocapia").Logger(),
	}, nil
}

// DetectLanguage asks the service for the language of the longest segment.
func (c *VocapiaClient) DetectLanguage(ctx context.Context, audio models.Blob) (string, bool, error) {
	doc, err := c.call(ctx, methodLanguageDetect, "", audio)
	if err != nil {
		return "", false, err
	}
	long, ok := doc.Language()
	return long, ok, nil
}

// Transcribe runs the given model and splits the result into sections.
func (c *VocapiaClient) Transcribe(ctx context.Context, audio models.Blob, model string) (*transcript.Transcript, error) {
	doc, err := c.call(ctx, methodTranscribe, model, audio)
	if err != nil {
		return nil, err
	}
	return doc.AsTranscript(c.maxDuration), nil
}

// endpoint keeps any query parameters of the configured url.
func (c *VocapiaClient) endpoint(method, model string) string {
	u := *c.baseURL
	q := u.Query()
	q.Set("method", method)
	if model != "" {
		q.Set("model", model)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *VocapiaClient) call(ctx context.Context, method, model string, audio models.Blob) (*AudioDoc, error) {
	endpoint := c.endpoint(method, model)

	// 1. open the audio file
	file, err := os.Open(audio.Path)
	if err != nil {
		return nil, fmt.Errorf("open audio %s: %w", audio.Path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat audio %s: %w", audio.Path, err)
	}

	// 2. build the request
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, file)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.ContentLength = info.Size()
	if audio.MimeType != "" {
		req.Header.Set("Content-Type", audio.MimeType)
	}
	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	// 3. send
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("model", model).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("recognizer call")

	// 4. check the status
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ServiceError{URL: endpoint, StatusCode: resp.StatusCode, Body: string(body)}
	}

	// 5. read the whole body, then parse
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: endpoint, Err: fmt.Errorf("read response: %w", err)}
	}
	return ParseAudioDoc(bytes.NewReader(body))
}
