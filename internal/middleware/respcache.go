package middleware

import (
	"bytes"
	"net/http"
	"time"

	"notebook-api/internal/cache"

	"github.com/gin-gonic/gin"
)

// CachedResponse is the payload the response cache stores per request key.
type CachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// bodyCapture tees the handler's response body so it can be cached after the
// chain completes.
type bodyCapture struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCapture) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// ResponseCache serves cached copies of successful GET responses. The key
// includes the authenticated user so one user's payloads can never leak to
// another. Only 200 responses are stored.
func ResponseCache(store cache.Cache[CachedResponse], ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.GetString("user_id") + "|" + c.Request.URL.RequestURI()
		if resp, ok := store.Get(key); ok {
			c.Data(resp.Status, resp.ContentType, resp.Body)
			c.Abort()
			return
		}

		w := &bodyCapture{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		if w.Status() == http.StatusOK {
			store.Set(key, CachedResponse{
				Status:      w.Status(),
				ContentType: w.Header().Get("Content-Type"),
				Body:        append([]byte(nil), w.buf.Bytes()...),
			}, ttl)
		}
	}
}
