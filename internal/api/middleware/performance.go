package middleware

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Compression gzips responses for clients that accept it
func Compression(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Accept-Encoding")
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		gz := gzipWriterPool.Get().(*gzip.Writer)
		defer gzipWriterPool.Put(gz)
		gz.Reset(w)
		defer gz.Close()

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Del("Content-Length")

		next.ServeHTTP(&gzipResponseWriter{ResponseWriter: w, writer: gz}, r)
	})
}

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		gz, _ := gzip.NewWriterLevel(io.Discard, 5)
		return gz
	},
}

type gzipResponseWriter struct {
	http.ResponseWriter
	writer io.Writer
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	return w.writer.Write(b)
}

// ETag answers conditional GETs with 304 Not Modified. Only 200
// responses get an ETag; everything else passes through unchanged.
func ETag(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}

		rec := &bufferedResponseWriter{ResponseWriter: w, buffer: &bytes.Buffer{}}
		next.ServeHTTP(rec, r)

		status := rec.statusCode
		if status == 0 {
			status = http.StatusOK
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write(rec.buffer.Bytes())
			return
		}

		hash := sha256.Sum256(rec.buffer.Bytes())
		etag := `"` + hex.EncodeToString(hash[:16]) + `"`
		w.Header().Set("ETag", etag)

		if r.Header.Get("If-None-Match") == etag {
			w.Header().Del("Content-Encoding")
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write(rec.buffer.Bytes())
	})
}

type bufferedResponseWriter struct {
	http.ResponseWriter
	buffer     *bytes.Buffer
	statusCode int
}

func (r *bufferedResponseWriter) Write(b []byte) (int, error) {
	return r.buffer.Write(b)
}

func (r *bufferedResponseWriter) WriteHeader(statusCode int) {
	if r.statusCode == 0 {
		r.statusCode = statusCode
	}
}

// CacheControl sets Cache-Control from the request path once the status
// is known. Error responses are never stored so a 503 is not replayed
// by a shared cache after the database recovers.
func CacheControl(searchMaxAge time.Duration) func(http.Handler) http.Handler {
	searchPolicy := "no-store"
	if seconds := int(searchMaxAge.Seconds()); seconds > 0 {
		searchPolicy = fmt.Sprintf("public, max-age=%d, must-revalidate", seconds)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			policy := "private, no-cache, must-revalidate"
			switch path := r.URL.Path; {
			case strings.HasPrefix(path, "/api/search"):
				policy = searchPolicy
			case strings.HasPrefix(path, "/api/analytics"), strings.HasPrefix(path, "/health"):
				policy = "no-store"
			}
			next.ServeHTTP(&cacheControlWriter{ResponseWriter: w, policy: policy}, r)
		})
	}
}

type cacheControlWriter struct {
	http.ResponseWriter
	policy      string
	wroteHeader bool
}

func (w *cacheControlWriter) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		if w.Header().Get("Cache-Control") == "" {
			if statusCode >= http.StatusBadRequest {
				w.Header().Set("Cache-Control", "no-store")
			} else {
				w.Header().Set("Cache-Control", w.policy)
			}
		}
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *cacheControlWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// ResponseOptimization chains CacheControl, ETag and Compression
func ResponseOptimization(searchMaxAge time.Duration) func(http.Handler) http.Handler {
	cacheControl := CacheControl(searchMaxAge)
	return func(next http.Handler) http.Handler {
		return cacheControl(ETag(Compression(next)))
	}
}
