package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/grades/internal/core"
	"github.com/JonMunkholm/grades/internal/web/middleware"
)

// WithRequestMetadata adds the client IP and User-Agent to ctx for upload logging.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.WithUploadSource(ctx, core.UploadSource{
		ClientIP:  middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
}
