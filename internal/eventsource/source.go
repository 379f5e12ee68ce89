package eventsource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"eventsim.app/dispatcher/internal/model"
)

var (
	ErrEventFileNotFound = errors.New("event file not found")
	ErrInvalidEventFile  = errors.New("invalid event file format")
	ErrInvalidPath       = errors.New("invalid organization or filename")
)

// FileSource loads event files from <dir>/<organization>/<filename>.
type FileSource struct {
	dir    string
	now    func() time.Time
	faker  *gofakeit.Faker
	logger *slog.Logger
}

func NewFileSource(dir string, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		dir:    dir,
		now:    time.Now,
		faker:  gofakeit.New(0),
		logger: logger,
	}
}

// Load reads one event file, expands its {{ ... }} templates and parses the
// JSON array it contains. Anything around the outermost brackets is ignored,
// so files that still carry generator chatter load fine.
func (s *FileSource) Load(ctx context.Context, organization, filename string) ([]model.RawEvent, error) {
	if err := validName(organization); err != nil {
		return nil, err
	}
	if err := validName(filename); err != nil {
		return nil, err
	}

	path := filepath.Join(s.dir, organization, filename)
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", ErrEventFileNotFound, organization, filename)
		}
		return nil, fmt.Errorf("reading event file: %w", err)
	}

	content = bytes.TrimSpace(content)
	start := bytes.IndexByte(content, '[')
	end := bytes.LastIndexByte(content, ']')
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("%w: no JSON array found", ErrInvalidEventFile)
	}

	expanded, err := s.expand(string(content[start : end+1]))
	if err != nil {
		return nil, err
	}

	var events []model.RawEvent
	if err := json.Unmarshal([]byte(expanded), &events); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEventFile, err)
	}
	for i, ev := range events {
		if ev == nil {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrInvalidEventFile, i)
		}
	}

	s.logger.DebugContext(ctx, "event file loaded", "path", path, "event_count", len(events))
	return events, nil
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return nil
}
