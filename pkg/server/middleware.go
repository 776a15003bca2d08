package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
)

// gzipResponses compresses the response when the client advertises
// gzip support. Only applied to the range endpoint, where payloads
// are large and highly compressible.
func gzipResponses() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
			c.Next()
			return
		}

		gw := &gzipWriter{ResponseWriter: c.Writer}
		c.Writer = gw

		c.Next()

		gw.close()
	}
}

// gzipWriter defers the gzip stream until the first body byte, so
// bodyless responses (304 in particular) pass through untouched.
type gzipWriter struct {
	gin.ResponseWriter
	gz *gzip.Writer
}

func (w *gzipWriter) Write(data []byte) (int, error) {
	if w.gz == nil {
		// Content-Length would describe the uncompressed body; drop it
		// and let the transport chunk the response.
		w.Header().Del("Content-Length")
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Vary", "Accept-Encoding")
		w.gz = gzip.NewWriter(w.ResponseWriter)
	}
	return w.gz.Write(data)
}

func (w *gzipWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *gzipWriter) close() {
	if w.gz != nil {
		w.gz.Close()
	}
}
