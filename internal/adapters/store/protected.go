package store

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/devbush/submanager/internal/domain"
	"github.com/devbush/submanager/internal/ports"
)

// DateLayout is the acquisition date format used on disk.
const DateLayout = "2006-01-02"

// ProtectedFile stores protected accounts as "username YYYY-MM-DD" lines.
type ProtectedFile struct {
	fs   afero.Fs
	path string
	loc  *time.Location
	log  *slog.Logger
}

// NewProtectedFile creates a store backed by path on fs. Dates are read in
// the local time zone.
func NewProtectedFile(fs afero.Fs, path string, logger *slog.Logger) *ProtectedFile {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProtectedFile{
		fs:   fs,
		path: path,
		loc:  time.Local,
		log:  logger.With("subsystem", "store"),
	}
}

// Path returns the backing file path.
func (s *ProtectedFile) Path() string {
	return s.path
}

func (s *ProtectedFile) Load(ctx context.Context) ([]domain.ProtectedAccount, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Info("protected accounts file not found", slog.String("path", s.path))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	var accounts []domain.ProtectedAccount
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		acc, err := s.parseLine(line)
		if err != nil {
			s.log.Warn("skipping invalid protected account entry",
				slog.Int("line", lineNo),
				slog.String("entry", line),
				slog.Any("error", err))
			continue
		}
		accounts = append(accounts, acc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}

	s.log.Info("loaded protected accounts", slog.Int("count", len(accounts)))
	return accounts, nil
}

func (s *ProtectedFile) parseLine(line string) (domain.ProtectedAccount, error) {
	idx := strings.LastIndexByte(line, ' ')
	if idx <= 0 {
		return domain.ProtectedAccount{}, fmt.Errorf("expected \"username date\"")
	}

	name := strings.TrimSpace(line[:idx])
	date, err := time.ParseInLocation(DateLayout, strings.TrimSpace(line[idx+1:]), s.loc)
	if err != nil {
		return domain.ProtectedAccount{}, err
	}
	if name == "" {
		return domain.ProtectedAccount{}, fmt.Errorf("empty username")
	}

	return domain.ProtectedAccount{Username: domain.Username(name), AcquiredAt: date}, nil
}

// Save rewrites the file through a temporary file and a rename.
func (s *ProtectedFile) Save(ctx context.Context, accounts []domain.ProtectedAccount) error {
	var buf bytes.Buffer
	for i, a := range accounts {
		if i > 0 {
			buf.WriteByte('\n')
		}
		fmt.Fprintf(&buf, "%s %s", a.Username, a.AcquiredAt.In(s.loc).Format(DateLayout))
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(s.fs, dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}

	s.log.Info("saved protected accounts", slog.Int("count", len(accounts)))
	return nil
}

var _ ports.ProtectedStore = (*ProtectedFile)(nil)
