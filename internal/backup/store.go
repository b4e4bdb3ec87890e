// Package backup persists checksummed snapshots of machine identifiers so
// every mutation can be undone.
package backup

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ilexum-group/janus/internal/utils"
	"github.com/ilexum-group/janus/pkg/models"
)

// Store error sentinels.
var (
	ErrNotFound         = errors.New("backup not found")
	ErrIntegrity        = errors.New("backup integrity check failed")
	ErrExportIncomplete = errors.New("backup export incomplete")
)

const (
	readableTimeLayout = "2006-01-02 15:04:05"
	filenameTimeLayout = "20060102_150405"
	backupFilePrefix   = "backup_"
	backupFileSuffix   = ".json"
)

// envelope is the on-disk form of one backup. The checksum covers the
// compacted payload bytes only, so metadata edits are detectable separately
// from payload corruption.
type envelope struct {
	ID                string            `json:"id"`
	Kind              models.BackupKind `json:"kind"`
	Timestamp         string            `json:"timestamp"`
	TimestampReadable string            `json:"timestamp_readable"`
	Checksum          string            `json:"checksum"`
	Payload           json.RawMessage   `json:"payload"`
}

// Store owns one backup directory. Restore, Delete, and pruning are
// serialized so a restore never races a prune of the file it is reading.
type Store struct {
	dir      string
	maxCount int
	logger   utils.Logger
	mu       sync.Mutex
}

// NewStore creates a Store rooted at dir, creating the directory if needed.
// maxCount <= 0 disables pruning.
func NewStore(dir string, maxCount int, logger utils.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}
	return &Store{dir: dir, maxCount: maxCount, logger: logger}, nil
}

// Dir returns the directory backups are stored in.
func (s *Store) Dir() string {
	return s.dir
}

// payloadChecksum hashes the compacted payload so formatting differences
// between writes and reads never change the digest.
func payloadChecksum(payload json.RawMessage) (string, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, payload); err != nil {
		return "", fmt.Errorf("payload is not valid JSON: %w", err)
	}
	sum := sha256.Sum256(compact.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

// Create snapshots a payload. The file is written to a temp name and renamed
// into place, so a crash mid-write never leaves a half backup behind.
func (s *Store) Create(kind models.BackupKind, payload json.RawMessage) (models.BackupRecord, error) {
	checksum, err := payloadChecksum(payload)
	if err != nil {
		return models.BackupRecord{}, err
	}

	now := time.Now()
	id := uuid.NewString()
	env := envelope{
		ID:                id,
		Kind:              kind,
		Timestamp:         now.UTC().Format(time.RFC3339),
		TimestampReadable: now.Format(readableTimeLayout),
		Checksum:          checksum,
		Payload:           payload,
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return models.BackupRecord{}, fmt.Errorf("encode backup: %w", err)
	}

	name := fmt.Sprintf("%s%s_%s%s", backupFilePrefix, now.Format(filenameTimeLayout), id[:8], backupFileSuffix)
	finalPath := filepath.Join(s.dir, name)
	tmpPath := finalPath + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return models.BackupRecord{}, fmt.Errorf("write backup: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return models.BackupRecord{}, fmt.Errorf("finalize backup: %w", err)
	}

	if s.logger != nil {
		s.logger.LogInfo("Backup created", map[string]string{
			"backup_id": id,
			"kind":      string(kind),
			"path":      finalPath,
		})
	}

	s.prune()

	return models.BackupRecord{
		ID:                id,
		Kind:              kind,
		TimestampReadable: env.TimestampReadable,
		TimestampISO:      env.Timestamp,
		CreatedAt:         now,
		Checksum:          checksum,
		Size:              int64(len(data)),
		Path:              finalPath,
	}, nil
}

// List returns the records of every stored backup, newest first. kind == ""
// lists all kinds. Unreadable files are skipped with a logged warning so one
// corrupt entry never hides the rest.
func (s *Store) List(kind models.BackupKind) ([]models.BackupRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	var records []models.BackupRecord
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, backupFilePrefix) || !strings.HasSuffix(name, backupFileSuffix) {
			continue
		}
		record, err := s.readRecord(filepath.Join(s.dir, name))
		if err != nil {
			if s.logger != nil {
				s.logger.LogWarn("Skipping unreadable backup file", map[string]string{
					"file":  name,
					"error": err.Error(),
				})
			}
			continue
		}
		if kind != "" && record.Kind != kind {
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// readRecord loads one backup file's metadata, recovering a creation time
// through the fallback chain: readable timestamp, ISO timestamp, filename
// pattern, file mtime.
func (s *Store) readRecord(path string) (models.BackupRecord, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: paths come from our own directory listing
	if err != nil {
		return models.BackupRecord{}, err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return models.BackupRecord{}, fmt.Errorf("malformed backup file: %w", err)
	}
	if env.ID == "" {
		return models.BackupRecord{}, errors.New("backup file missing id")
	}

	record := models.BackupRecord{
		ID:                env.ID,
		Kind:              env.Kind,
		TimestampReadable: env.TimestampReadable,
		TimestampISO:      env.Timestamp,
		Checksum:          env.Checksum,
		Size:              int64(len(data)),
		Path:              path,
	}
	record.CreatedAt = s.recoverCreatedAt(env, path)
	return record, nil
}

// recoverCreatedAt tries each timestamp source in order of trustworthiness.
func (s *Store) recoverCreatedAt(env envelope, path string) time.Time {
	if t, err := time.ParseInLocation(readableTimeLayout, env.TimestampReadable, time.Local); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, env.Timestamp); err == nil {
		return t
	}
	// Tolerate a truncated ISO form with no zone.
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", strings.TrimSuffix(env.Timestamp, "Z"), time.UTC); err == nil {
		return t
	}
	base := strings.TrimSuffix(filepath.Base(path), backupFileSuffix)
	parts := strings.SplitN(strings.TrimPrefix(base, backupFilePrefix), "_", 3)
	if len(parts) >= 2 {
		if t, err := time.ParseInLocation(filenameTimeLayout, parts[0]+"_"+parts[1], time.Local); err == nil {
			return t
		}
	}
	if info, err := os.Stat(path); err == nil {
		return info.ModTime()
	}
	return time.Time{}
}

// findPath resolves a backup ID to its file path.
func (s *Store) findPath(id string) (string, error) {
	records, err := s.List("")
	if err != nil {
		return "", err
	}
	for _, record := range records {
		if record.ID == id {
			return record.Path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Verify recomputes the payload checksum of one backup.
func (s *Store) Verify(id string) error {
	path, err := s.findPath(id)
	if err != nil {
		return err
	}
	_, _, err = s.load(path)
	return err
}

// load reads and integrity-checks one backup file.
func (s *Store) load(path string) (envelope, json.RawMessage, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: paths come from our own directory listing
	if err != nil {
		if os.IsNotExist(err) {
			return envelope{}, nil, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
		}
		return envelope{}, nil, err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, nil, fmt.Errorf("%w: malformed file: %v", ErrIntegrity, err)
	}

	checksum, err := payloadChecksum(env.Payload)
	if err != nil {
		return envelope{}, nil, fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	if checksum != env.Checksum {
		return envelope{}, nil, fmt.Errorf("%w: checksum mismatch for %s", ErrIntegrity, env.ID)
	}
	return env, env.Payload, nil
}

// Restore returns the verified payload of one backup. It never applies
// anything itself; the caller decides what the payload means.
func (s *Store) Restore(id string) (models.BackupRecord, json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.findPath(id)
	if err != nil {
		return models.BackupRecord{}, nil, err
	}
	_, payload, err := s.load(path)
	if err != nil {
		return models.BackupRecord{}, nil, err
	}

	record, err := s.readRecord(path)
	if err != nil {
		return models.BackupRecord{}, nil, err
	}

	if s.logger != nil {
		s.logger.LogInfo("Backup payload loaded for restore", map[string]string{
			"backup_id": id,
			"kind":      string(record.Kind),
		})
	}
	return record, payload, nil
}

// Delete removes one backup. Deleting an absent ID is a no-op.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.findPath(id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete backup: %w", err)
	}
	return nil
}

// Export copies one backup file to destPath and verifies the copy byte for
// byte. A partial or mismatched copy is removed and reported.
func (s *Store) Export(id, destPath string) error {
	path, err := s.findPath(id)
	if err != nil {
		return err
	}
	if _, _, err := s.load(path); err != nil {
		return err
	}

	src, err := os.Open(path) //nolint:gosec // G304: paths come from our own directory listing
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // G304: destination chosen by the operator
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(destPath)
		return fmt.Errorf("%w: %v", ErrExportIncomplete, err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(destPath)
		return fmt.Errorf("%w: %v", ErrExportIncomplete, err)
	}

	if err := filesMatch(path, destPath); err != nil {
		_ = os.Remove(destPath)
		return err
	}
	return nil
}

// filesMatch confirms the export is complete: same size, same digest.
func filesMatch(srcPath, dstPath string) error {
	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExportIncomplete, err)
	}
	dstInfo, err := os.Stat(dstPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExportIncomplete, err)
	}
	if srcInfo.Size() != dstInfo.Size() {
		return fmt.Errorf("%w: size mismatch (%d != %d)", ErrExportIncomplete, dstInfo.Size(), srcInfo.Size())
	}

	srcSum, err := fileChecksum(srcPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExportIncomplete, err)
	}
	dstSum, err := fileChecksum(dstPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExportIncomplete, err)
	}
	if srcSum != dstSum {
		return fmt.Errorf("%w: checksum mismatch after copy", ErrExportIncomplete)
	}
	return nil
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: paths come from our own directory listing
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// prune drops the oldest backups beyond the retention count.
func (s *Store) prune() {
	if s.maxCount <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.List("")
	if err != nil || len(records) <= s.maxCount {
		return
	}
	for _, record := range records[s.maxCount:] {
		if err := os.Remove(record.Path); err != nil {
			if s.logger != nil {
				s.logger.LogWarn("Failed to prune backup", map[string]string{
					"backup_id": record.ID,
					"error":     err.Error(),
				})
			}
			continue
		}
		if s.logger != nil {
			s.logger.LogInfo("Pruned old backup", map[string]string{"backup_id": record.ID})
		}
	}
}
