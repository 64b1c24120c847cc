package artifacts

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// PageDumper is the slice of the browser session the sink needs.
type PageDumper interface {
	PageSource(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// Sink persists page snapshots (markup + screenshot) at failure boundaries.
// Artifacts are diagnostic only and never read back; every error here is
// swallowed after a debug log so a broken sink can't fail a booking run.
type Sink struct {
	dir    string
	logger zerolog.Logger
	now    func() time.Time
}

func NewSink(dir string, logger zerolog.Logger) *Sink {
	return &Sink{dir: dir, logger: logger, now: time.Now}
}

// Save writes <prefix>_<timestamp>.html and .png under the sink directory.
func (s *Sink) Save(ctx context.Context, d PageDumper, prefix string) {
	if s == nil || s.dir == "" || d == nil {
		return
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.logger.Debug().Err(err).Msg("debug dir not writable")
		return
	}
	ts := s.now().Format("20060102_150405")

	htmlPath := filepath.Join(s.dir, prefix+"_"+ts+".html")
	if src, err := d.PageSource(ctx); err != nil {
		s.logger.Debug().Err(err).Str("prefix", prefix).Msg("page source dump failed")
	} else if err := os.WriteFile(htmlPath, []byte(src), 0o644); err != nil {
		s.logger.Debug().Err(err).Str("path", htmlPath).Msg("page source write failed")
	}

	pngPath := filepath.Join(s.dir, prefix+"_"+ts+".png")
	if shot, err := d.Screenshot(ctx); err != nil {
		s.logger.Debug().Err(err).Str("prefix", prefix).Msg("screenshot failed")
	} else if err := os.WriteFile(pngPath, shot, 0o644); err != nil {
		s.logger.Debug().Err(err).Str("path", pngPath).Msg("screenshot write failed")
	}

	s.logger.Info().Str("prefix", prefix).Str("dir", s.dir).Msg("saved debug artifacts")
}
