package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"chirp/apperr"
	"chirp/feed"
	"chirp/middleware"
	"chirp/store"
	"chirp/toggle"
)

// Shown on profiles that have no avatar of their own.
const fallbackAvatar = "https://upload.wikimedia.org/wikipedia/commons/8/89/Portrait_Placeholder.png"

// Settings carries the request-independent knobs handlers need.
type Settings struct {
	JWTSecret      string
	JWTTTL         time.Duration
	RequestTimeout time.Duration
	Clock          store.Clock
}

var (
	db       store.Store
	posts    *feed.Service
	toggles  *toggle.Engine
	settings Settings
)

// Configure installs the store, feed service and settings used by every
// handler. It must be called before the router serves requests.
func Configure(s store.Store, svc *feed.Service, cfg Settings) {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.JWTTTL <= 0 {
		cfg.JWTTTL = 24 * time.Hour
	}
	if cfg.Clock == nil {
		cfg.Clock = store.RealClock{}
	}
	db = s
	posts = svc
	toggles = toggle.NewEngine(s)
	settings = cfg
}

// requestContext bounds storage calls made on behalf of c.
func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), settings.RequestTimeout)
}

// viewerID is the authenticated user, or "" for anonymous requests.
func viewerID(c *gin.Context) string {
	return c.GetString(middleware.UserIDKey)
}

func queryLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return n
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error": code, "message": text}. Errors that
// are not *apperr.Error are logged and reported as internal_error.
func respondError(c *gin.Context, handler string, err error) {
	if e, ok := apperr.As(err); ok {
		c.JSON(statusFor(e.Kind), gin.H{"error": e.Code, "message": e.Message})
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		slog.Warn("request timed out", "handler", handler, slog.Any("error", err))
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "timeout", "message": "request timed out"})
		return
	}
	slog.Error("request failed", "handler", handler, slog.Any("error", err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "something went wrong"})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": message})
}
