package middleware

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// CompressionOptions tunes Brotli response compression.
type CompressionOptions struct {
	// Level is the brotli quality, 0 to 11.
	Level int
	// Threshold is the body size in bytes below which a response is sent as-is.
	Threshold int
	// ExcludedPaths are matched exactly against the request path.
	ExcludedPaths []string
}

// DefaultCompression compresses JSON bodies of 1 KiB and more. Exam views with
// a full question list are the main beneficiary.
var DefaultCompression = CompressionOptions{
	Level:         brotli.DefaultCompression,
	Threshold:     1024,
	ExcludedPaths: []string{"/health"},
}

// compressWriter holds back the body until it knows whether compression pays
// off: non-JSON bodies and bodies under threshold pass through untouched.
type compressWriter struct {
	gin.ResponseWriter
	level     int
	threshold int

	pending []byte
	br      *brotli.Writer
	decided bool
}

func (w *compressWriter) Write(p []byte) (int, error) {
	if w.decided {
		if w.br != nil {
			return w.br.Write(p)
		}
		return w.ResponseWriter.Write(p)
	}

	w.pending = append(w.pending, p...)
	if len(w.pending) < w.threshold {
		return len(p), nil
	}
	if err := w.decide(true); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *compressWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// decide commits to compressing or not and drains the pending bytes.
func (w *compressWriter) decide(large bool) error {
	w.decided = true
	pending := w.pending
	w.pending = nil

	if large && isJSON(w.Header().Get("Content-Type")) {
		h := w.Header()
		h.Set("Content-Encoding", "br")
		h.Del("Content-Length")
		w.br = brotli.NewWriterLevel(w.ResponseWriter, w.level)
		_, err := w.br.Write(pending)
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	_, err := w.ResponseWriter.Write(pending)
	return err
}

func (w *compressWriter) Flush() {
	if !w.decided {
		_ = w.decide(false)
	}
	if w.br != nil {
		_ = w.br.Flush()
	}
	w.ResponseWriter.Flush()
}

func (w *compressWriter) close() error {
	if !w.decided {
		return w.decide(false)
	}
	if w.br != nil {
		return w.br.Close()
	}
	return nil
}

// Brotli compresses responses with DefaultCompression.
func Brotli() gin.HandlerFunc {
	return Compress(DefaultCompression)
}

// Compress returns a middleware that brotli-encodes JSON responses for
// clients that advertise "br" in Accept-Encoding.
func Compress(opts CompressionOptions) gin.HandlerFunc {
	if opts.Level < brotli.BestSpeed || opts.Level > brotli.BestCompression {
		opts.Level = brotli.DefaultCompression
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultCompression.Threshold
	}
	excluded := make(map[string]struct{}, len(opts.ExcludedPaths))
	for _, p := range opts.ExcludedPaths {
		excluded[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, skip := excluded[c.Request.URL.Path]; skip || !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")
		w := &compressWriter{
			ResponseWriter: c.Writer,
			level:          opts.Level,
			threshold:      opts.Threshold,
		}
		c.Writer = w
		defer func() {
			if err := w.close(); err != nil {
				_ = c.Error(err)
			}
		}()

		c.Next()
	}
}

func isJSON(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.EqualFold(strings.TrimSpace(mediaType), "application/json")
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(name, "br") {
			return true
		}
	}
	return false
}
