package middleware

import (
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"

	"lifeline/internal/core/apperror"
)

// maxBodyBytes bounds a decompressed request body.
const maxBodyBytes = 64 << 20

// Decompress inflates gzip-encoded request bodies, so that pollers can push
// large snapshots compressed.
func Decompress() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.EqualFold(c.GetHeader("Content-Encoding"), "gzip") {
			c.Next()
			return
		}

		zr, err := gzip.NewReader(c.Request.Body)
		if err != nil {
			_ = c.Error(apperror.NewValidation("malformed gzip body").WithCause(err))
			c.Abort()
			return
		}
		defer zr.Close()

		c.Request.Body = readCloser{Reader: io.LimitReader(zr, maxBodyBytes), Closer: c.Request.Body}
		c.Request.Header.Del("Content-Encoding")
		c.Request.ContentLength = -1

		c.Next()
	}
}

type readCloser struct {
	io.Reader
	io.Closer
}
