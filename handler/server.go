package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"strconv"
	"strings"
	"time"

	"ewintr.nl/capsum/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"golang.org/x/exp/slog"
)

const signInPath = "/auth/sign-in"

type Server struct {
	apis      map[string]http.Handler
	protected map[string]bool
	auth      *AuthAPI
	limiter   *stdlib.Middleware
	logger    *slog.Logger
}

// NewServer limits POST requests to rate, formatted like "30-M".
func NewServer(videoAPI *VideoAPI, authAPI *AuthAPI, rate string, logger *slog.Logger) (*Server, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", rate, err)
	}
	lm := stdlib.NewMiddleware(
		limiter.New(memory.NewStore(), r),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			Error(w, http.StatusTooManyRequests, "too many requests", fmt.Errorf("limit of %s exceeded", rate))
		}),
	)

	return &Server{
		apis: map[string]http.Handler{
			"auth":    authAPI,
			"video":   videoAPI,
			"metrics": promhttp.Handler(),
		},
		protected: map[string]bool{
			"video": true,
		},
		auth:    authAPI,
		limiter: lm,
		logger:  logger,
	}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	originalPath := r.URL.Path
	rec := httptest.NewRecorder() // records the response to be able to mix writing headers and content

	rec.Header().Set("Content-Type", "application/json")

	// route to api
	head, tail := ShiftPath(r.URL.Path)
	api, ok := s.apis[head]
	switch {
	case len(head) == 0:
		head = "index"
		Index(rec)
	case !ok:
		head = "unknown"
		Error(rec, http.StatusNotFound, "Not found", fmt.Errorf("%s is not a valid path", r.URL.Path))
	default:
		if s.protected[head] {
			user, signedIn := s.auth.CurrentUser(rec, r)
			if !signedIn {
				http.Redirect(rec, r, signInPath, http.StatusSeeOther)
				break
			}
			r = r.WithContext(withUser(r.Context(), user))
		}
		if r.Method == http.MethodPost {
			api = s.limiter.Handler(api)
		}
		r.URL.Path = tail
		api.ServeHTTP(rec, r)
	}

	returnResponse(w, rec)
	metrics.HTTPRequests.WithLabelValues(head, strconv.Itoa(rec.Code)).Inc()
	s.logger.Info("request served",
		slog.String("method", r.Method),
		slog.String("path", originalPath),
		slog.Int("status", rec.Code),
		slog.Duration("duration", time.Since(start)),
	)
}

func returnResponse(w http.ResponseWriter, rec *httptest.ResponseRecorder) {
	for k, v := range rec.Header() {
		w.Header()[k] = v
	}
	w.WriteHeader(rec.Code)
	w.Write(rec.Body.Bytes())
}

// ShiftPath splits off the first component of p, which will be cleaned of
// relative components before processing. head will never contain a slash and
// tail will always be a rooted path without trailing slash.
// See https://blog.merovius.de/posts/2017-06-18-how-not-to-use-an-http-router/
func ShiftPath(p string) (string, string) {
	p = path.Clean("/" + p)

	// restore iri prefixes that might be mangled by path.Clean
	for k, v := range map[string]string{
		"http:/":  "http://",
		"https:/": "https://",
	} {
		p = strings.Replace(p, k, v, -1)
	}

	i := strings.Index(p[1:], "/") + 1
	if i <= 0 {
		return p[1:], "/"
	}
	return p[1:i], p[i:]
}
