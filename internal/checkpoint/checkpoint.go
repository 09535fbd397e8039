// Package checkpoint persists the scan watermark: the highest mailbox
// identifier that a previous run fully handled.
package checkpoint

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/tracyhatemice/noticecal/internal/atomicfile"
)

// Watermark is the highest fully processed message identifier.
type Watermark uint32

// Store keeps the watermark in a small text file so it survives restarts.
type Store struct {
	file   string
	logger *slog.Logger
}

// NewStore returns a store backed by filePath. The file is not touched
// until Load or Save is called.
func NewStore(filePath string, logger *slog.Logger) *Store {
	return &Store{file: filePath, logger: logger}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.file
}

// Load returns the stored watermark, or 0 when the file is missing or
// holds nothing usable. Files written one UID per line are accepted and
// the largest value wins.
func (s *Store) Load() Watermark {
	f, err := os.Open(s.file)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("cannot read watermark, starting from 0", "file", s.file, "error", err)
		}
		return 0
	}
	defer f.Close()

	var (
		best  Watermark
		found bool
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		n, err := strconv.ParseUint(line, 10, 32)
		if err != nil {
			s.logger.Warn("ignoring malformed watermark line", "file", s.file, "line", line)
			continue
		}
		if !found || Watermark(n) > best {
			best = Watermark(n)
			found = true
		}
	}
	if err := scanner.Err(); err != nil {
		s.logger.Warn("watermark read interrupted", "file", s.file, "error", err)
	}
	return best
}

// Save overwrites the file with the decimal form of w.
func (s *Store) Save(w Watermark) error {
	data := []byte(strconv.FormatUint(uint64(w), 10))
	if err := atomicfile.WriteFile(s.file, data, 0o644); err != nil {
		return fmt.Errorf("save watermark: %w", err)
	}
	return nil
}
