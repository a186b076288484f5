package transcriber

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/z-wentao/docscribe/pkg/models"
)

func writeAudio(t *testing.T, content string) models.Blob {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.mp3")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return models.Blob{Filename: "audio.mp3", MimeType: "audio/mpeg", Path: path}
}

func fixtureHandler(t *testing.T, name string) http.HandlerFunc {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatal(err)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.Write(body)
	}
}

func newTestClient(t *testing.T, url, user, pass string) *VocapiaClient {
	t.Helper()
	c, err := NewVocapiaClient(VocapiaOptions{
		URL:      url,
		Username: user,
		Password: pass,
		Timeout:  5 * time.Second,
		Logger:   zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewVocapiaClient() error = %v", err)
	}
	return c
}

func TestVocapiaTranscribeRequest(t *testing.T) {
	var (
		gotMethod, gotModel, gotType string
		gotBody                      string
		gotUser, gotPass             string
		gotAuth                      bool
		gotLength                    int64
	)
	fixture := fixtureHandler(t, "en_fake_trans.xml")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.URL.Query().Get("method")
		gotModel = r.URL.Query().Get("model")
		gotType = r.Header.Get("Content-Type")
		gotUser, gotPass, gotAuth = r.BasicAuth()
		gotLength = r.ContentLength
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		fixture(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "alice", "secret")
	tr, err := c.Transcribe(context.Background(), writeAudio(t, "ID3-audio"), "eng")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	if gotMethod != "transcribe" || gotModel != "eng" {
		t.Fatalf("query method=%q model=%q", gotMethod, gotModel)
	}
	if gotType != "audio/mpeg" {
		t.Fatalf("Content-Type = %q, want audio/mpeg", gotType)
	}
	if !gotAuth || gotUser != "alice" || gotPass != "secret" {
		t.Fatalf("basic auth = %q/%q (%v)", gotUser, gotPass, gotAuth)
	}
	if gotBody != "ID3-audio" || gotLength != int64(len("ID3-audio")) {
		t.Fatalf("body = %q (length %d)", gotBody, gotLength)
	}
	if tr.Len() != 1 {
		t.Fatalf("sections = %d, want 1", tr.Len())
	}
}

func TestVocapiaNoAuthWithoutCredentials(t *testing.T) {
	var sawAuth bool
	fixture := fixtureHandler(t, "ar_news_lid.xml")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization") != ""
		if r.URL.Query().Get("method") != "language-detect" {
			t.Errorf("method = %q, want language-detect", r.URL.Query().Get("method"))
		}
		if r.URL.Query().Has("model") {
			t.Error("language detection must not send a model")
		}
		fixture(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "alice", "")
	long, ok, err := c.DetectLanguage(context.Background(), writeAudio(t, "x"))
	if err != nil {
		t.Fatalf("DetectLanguage() error = %v", err)
	}
	if !ok || long != "ara" {
		t.Fatalf("DetectLanguage() = %q, %v, want ara", long, ok)
	}
	if sawAuth {
		t.Fatal("Authorization header sent without a complete credential pair")
	}
}

func TestVocapiaServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "", "")
	_, err := c.Transcribe(context.Background(), writeAudio(t, "x"), "fre")
	var serr *ServiceError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want *ServiceError", err)
	}
	if serr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("StatusCode = %d, want %d", serr.StatusCode, http.StatusServiceUnavailable)
	}
	if serr.Body != "model not loaded\n" {
		t.Fatalf("Body = %q", serr.Body)
	}
}

func TestVocapiaParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not xml"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "", "")
	_, _, err := c.DetectLanguage(context.Background(), writeAudio(t, "x"))
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
}

func TestVocapiaTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url, "", "")
	_, err := c.Transcribe(context.Background(), writeAudio(t, "x"), "eng")
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v, want *TransportError", err)
	}
	if terr.Unwrap() == nil {
		t.Fatal("TransportError must wrap its cause")
	}
}

func TestVocapiaMissingAudio(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1", "", "")
	_, err := c.Transcribe(context.Background(), models.Blob{Path: filepath.Join(t.TempDir(), "missing.mp3")}, "eng")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want os.ErrNotExist", err)
	}
}

func TestNewVocapiaClientRequiresURL(t *testing.T) {
	if _, err := NewVocapiaClient(VocapiaOptions{}); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestVocapiaTruncatedBodyIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		conn, buf, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Error(err)
			return
		}
		buf.WriteString("HTTP/1.1 200 OK\r\nContent-Type: application/xml\r\nContent-Length: 500\r\n\r\n<AudioDoc><SegmentList>")
		buf.Flush()
		conn.Close()
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "", "")
	_, err := c.Transcribe(context.Background(), writeAudio(t, "x"), "eng")
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v, want *TransportError", err)
	}
	var perr *ParseError
	if errors.As(err, &perr) {
		t.Fatalf("err = %v, must not be a *ParseError", err)
	}
}

func TestVocapiaKeepsConfiguredQuery(t *testing.T) {
	var gotPath, gotToken, gotMethod, gotModel string
	fixture := fixtureHandler(t, "en_fake_trans.xml")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		gotPath = r.URL.Path
		q := r.URL.Query()
		gotToken, gotMethod, gotModel = q.Get("token"), q.Get("method"), q.Get("model")
		fixture(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/voxsigma?token=abc", "", "")
	if _, err := c.Transcribe(context.Background(), writeAudio(t, "x"), "eng"); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if gotPath != "/voxsigma" {
		t.Fatalf("path = %q, want /voxsigma", gotPath)
	}
	if gotToken != "abc" || gotMethod != "transcribe" || gotModel != "eng" {
		t.Fatalf("query = token:%q method:%q model:%q", gotToken, gotMethod, gotModel)
	}
}
