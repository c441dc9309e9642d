// Package browser provides the narrow headless-browser collaborator an
// adapter's browser-mode scrape_event drives. pitchsync does not bundle a
// real browser-automation library (out of scope); LoggingSession exists so
// the engine's browser-mode fetch path has something concrete to run
// against. engine.Run uses it for every browser-mode adapter; its Options
// have no field for supplying a different adapter.BrowserSession.
package browser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pitchsync/pitchsync/internal/adapter"
)

// LoggingSession implements adapter.BrowserSession without driving a real
// browser. Open/EvaluateInPage/Close are logged and EvaluateInPage returns
// an empty JSON payload. engine.Run creates one of these for every
// browser-mode adapter; no other implementation is wired into the engine.
type LoggingSession struct {
	logger  *slog.Logger
	adapter string
	opened  bool
}

var _ adapter.BrowserSession = (*LoggingSession)(nil)

// NewLoggingSession creates a session scoped to one adapter id, for
// attributing log lines when multiple browser-mode adapters run
// concurrently in different processes.
func NewLoggingSession(adapterID string, logger *slog.Logger) *LoggingSession {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingSession{logger: logger, adapter: adapterID}
}

func (s *LoggingSession) Open(ctx context.Context, url, waitSelector string) error {
	s.logger.DebugContext(ctx, "browser open",
		slog.String("adapter", s.adapter),
		slog.String("url", url),
		slog.String("wait_selector", waitSelector),
	)
	s.opened = true
	return nil
}

func (s *LoggingSession) EvaluateInPage(ctx context.Context, script string) ([]byte, error) {
	if !s.opened {
		return nil, fmt.Errorf("browser: evaluate called before open")
	}
	s.logger.DebugContext(ctx, "browser evaluate",
		slog.String("adapter", s.adapter),
		slog.Int("script_len", len(script)),
	)
	return []byte("{}"), nil
}

func (s *LoggingSession) Close() error {
	s.logger.Debug("browser close", slog.String("adapter", s.adapter))
	s.opened = false
	return nil
}
