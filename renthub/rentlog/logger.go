package rentlog

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/ninja-software/log_helpers"
	"github.com/rs/zerolog"
)

var L *zerolog.Logger

func New(environment, level string) {
	log := log_helpers.LoggerInitZero(environment, level)
	if environment == "production" || environment == "staging" {
		logPtr := zerolog.New(os.Stdout)
		logPtr = logPtr.With().Caller().Logger()
		log = &logPtr
	}
	log.Info().Msg("zerolog initialised")
	if L != nil {
		panic("rentlog already initialised")
	}
	L = log
}

func ChiLogger(lvl zerolog.Level) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return middleware.RequestLogger(logFormatter{lvl: lvl})(next)
	}
}

type logFormatter struct {
	lvl zerolog.Level
}

func (l logFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	le := logEntry{
		requestID:   middleware.GetReqID(r.Context()),
		userAgent:   r.Header.Get("user-agent"),
		method:      r.Method,
		from:        r.RemoteAddr,
		requestPath: fmt.Sprintf("%s://%s%s", scheme, r.Host, r.RequestURI),
		protocol:    r.Proto,
		lvl:         l.lvl,
	}

	return le
}

type logEntry struct {
	requestID   string
	userAgent   string
	method      string
	from        string
	requestPath string
	protocol    string
	lvl         zerolog.Level
}

func (l logEntry) Write(status int, bytes int, header http.Header, elapsed time.Duration, extra interface{}) {
	if strings.HasPrefix(l.requestPath, "/api/check") {
		return
	}

	e := L.WithLevel(l.lvl)
	e.Str("user_agent", l.userAgent).
		Str("request_id", l.requestID).
		Str("method", l.method).
		Str("from", l.from).
		Str("request_path", l.requestPath).
		Int("status", status).
		Int("bytes", bytes).
		Dur("duration", elapsed).
		Send()
}

func (l logEntry) Panic(v interface{}, stack []byte) {
	fmt.Println("panic", v)
}
