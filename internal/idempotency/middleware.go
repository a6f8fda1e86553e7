package idempotency

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-idempotent-contests/internal/auth"
	"github.com/imrishuroy/go-idempotent-contests/internal/metrics"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"
)

// bodyRecorder tees everything the handler writes so it can be stored for replay.
type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware guards a mutating route with the gate. Keys are scoped to the authenticated
// caller when there is one.
//
// 2xx and 4xx responses are stored and replayed for the key's lifetime. 5xx responses, panics
// and handlers that abort without writing mark the key Failed so a retry runs the handler again.
func Middleware(gate *Gate, m metrics.Emitter) gin.HandlerFunc {
	if m == nil {
		m = metrics.Nop{}
	}
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderKey)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "missing_idempotency_key",
				"message": HeaderKey + " header is required",
			})
			return
		}
		if uid := auth.UserID(c); uid != "" {
			key = uid + "#" + key
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body", "message": "could not read body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		ctx := c.Request.Context()
		route := c.FullPath()
		dec, err := gate.Guard(ctx, key, c.Request.Method, route, body)
		if err != nil {
			log.Printf("[gate] guard key=%s route=%s: %v", key, route, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   "idempotency_unavailable",
				"message": "could not check idempotency key",
			})
			return
		}

		switch dec.Outcome {
		case Replay:
			m.Count(ctx, metrics.IdempotencyReplay, map[string]string{"route": route})
			c.Header(HeaderReplayed, "true")
			c.Data(dec.Record.ResponseStatus, gin.MIMEJSON, dec.Record.ResponseBody)
			c.Abort()
			return
		case Conflict:
			m.Count(ctx, metrics.IdempotencyConflict, map[string]string{"route": route})
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error":   "request_in_progress",
				"message": "a request with this idempotency key is still being processed",
			})
			return
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec

		// marking must survive a client disconnect
		markCtx := context.WithoutCancel(ctx)
		defer func() {
			c.Writer = rec.ResponseWriter
			if p := recover(); p != nil {
				release(markCtx, gate, key, fmt.Sprintf("panic: %v", p))
				panic(p)
			}

			if !rec.Written() {
				release(markCtx, gate, key, "handler wrote no response")
				return
			}
			status := rec.Status()
			if status >= http.StatusInternalServerError {
				release(markCtx, gate, key, fmt.Sprintf("handler returned %d", status))
				return
			}
			if err := gate.Complete(markCtx, key, rec.buf.Bytes(), status); err != nil {
				log.Printf("[gate] mark completed key=%s: %v", key, err)
			}
		}()

		c.Next()
	}
}

func release(ctx context.Context, gate *Gate, key, note string) {
	if err := gate.Fail(ctx, key, note); err != nil {
		log.Printf("[gate] mark failed key=%s: %v", key, err)
	}
}
