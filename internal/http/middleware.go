package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jinto-ag/emart/pkg/logger"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	userIDKey      = contextKey("user_id")
	requestInfoKey = contextKey("request_info")
)

// requestInfo is filled in by inner middleware for the access log.
type requestInfo struct {
	userID int64
}

// tokenCookie carries the bearer token on browser redirects, such as the
// payment gateway posting back to the callback endpoint.
const tokenCookie = "emart_token"

// Claims are issued by the identity provider; only the user id is used.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.StandardClaims
}

// AuthMiddleware verifies the HS256 bearer token and stores the user id in
// the request context.
func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r)
			if tokenStr == "" {
				respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, keyFunc)
			if err != nil || !token.Valid || claims.UserID <= 0 {
				respondError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			if info, ok := r.Context().Value(requestInfoKey).(*requestInfo); ok {
				info.userID = claims.UserID
			}
			ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return ""
		}
		return strings.TrimSpace(parts[1])
	}
	if c, err := r.Cookie(tokenCookie); err == nil {
		return c.Value
	}
	return ""
}

func getUserIDFromContext(ctx context.Context) int64 {
	if userID, ok := ctx.Value(userIDKey).(int64); ok {
		return userID
	}
	return 0
}

// RequestIDHeader echoes the chi request id back to the client.
func RequestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

// AccessLog stores a request scoped logger in the context and writes one
// line per request once it completes.
func AccessLog(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLog := base.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
			info := &requestInfo{}
			ctx := context.WithValue(r.Context(), requestInfoKey, info)
			r = r.WithContext(logger.WithContext(ctx, reqLog))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			l := logger.FromContext(r.Context(), base)
			var ev *zerolog.Event
			switch {
			case status >= 500:
				ev = l.Error()
			case status >= 400:
				ev = l.Warn()
			default:
				ev = l.Info()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int64("user_id", info.userID).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}

// LimitBody caps the request body size.
func LimitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
