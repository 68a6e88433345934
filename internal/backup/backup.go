// Package backup takes consistent snapshots of the visitor database,
// optionally encrypts them, and copies them to a local directory and an
// S3-compatible bucket. It also restores a snapshot over the database file
// while the server is stopped.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/visitorlog/internal/database"
)

type Config struct {
	// Dir receives a copy of every snapshot.
	Dir string
	// Passphrase enables encryption when non-empty.
	Passphrase string
	S3         S3Config
}

// Result describes a finished snapshot.
type Result struct {
	Name      string
	Path      string
	Key       string
	Size      int64
	Encrypted bool
}

type Service struct {
	cfg    Config
	client objectStore
	now    func() time.Time
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Service {
	s := &Service{cfg: cfg, now: time.Now, logger: logger}
	if cfg.S3.Enabled() {
		s.client = newS3Client(cfg.S3)
	}
	return s
}

// Remote reports whether snapshots are uploaded to a bucket.
func (s *Service) Remote() bool {
	return s.client != nil
}

// Create snapshots db with VACUUM INTO, which yields a consistent copy even
// while other connections write through the WAL.
func (s *Service) Create(ctx context.Context, db *sql.DB) (Result, error) {
	name := "visitors-" + s.now().UTC().Format("20060102T150405Z") + ".db"
	encrypted := s.cfg.Passphrase != ""
	if encrypted {
		name += ".enc"
	}

	tmpDir, err := os.MkdirTemp("", "visitorlog-backup-")
	if err != nil {
		return Result{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	snapshot := filepath.Join(tmpDir, "snapshot.db")
	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, snapshot); err != nil {
		return Result{}, fmt.Errorf("vacuum into: %w", err)
	}

	data, err := os.ReadFile(snapshot)
	if err != nil {
		return Result{}, fmt.Errorf("read snapshot: %w", err)
	}
	if encrypted {
		if data, err = Seal(data, s.cfg.Passphrase); err != nil {
			return Result{}, fmt.Errorf("encrypt snapshot: %w", err)
		}
	}

	res := Result{Name: name, Size: int64(len(data)), Encrypted: encrypted}

	if s.cfg.Dir != "" {
		if err := os.MkdirAll(s.cfg.Dir, 0o700); err != nil {
			return Result{}, fmt.Errorf("create backup dir: %w", err)
		}
		res.Path = filepath.Join(s.cfg.Dir, name)
		if err := os.WriteFile(res.Path, data, 0o600); err != nil {
			return Result{}, fmt.Errorf("write backup: %w", err)
		}
	}

	if s.client != nil {
		res.Key = s.cfg.S3.Prefix + name
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.cfg.S3.Bucket),
			Key:           aws.String(res.Key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(res.Size),
		})
		if err != nil {
			return Result{}, fmt.Errorf("upload to s3: %w", err)
		}
	}

	if res.Path == "" && res.Key == "" {
		return Result{}, errors.New("no backup destination configured")
	}

	s.logger.Info("backup created", "name", name, "size", res.Size, "encrypted", encrypted, "path", res.Path, "key", res.Key)
	return res, nil
}

// Fetch downloads the object at key into dst.
func (s *Service) Fetch(ctx context.Context, key, dst string) error {
	if s.client == nil {
		return errors.New("s3 storage not configured")
	}
	if !strings.HasPrefix(key, s.cfg.S3.Prefix) {
		key = s.cfg.S3.Prefix + key
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.S3.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download from s3: %w", err)
	}
	defer out.Body.Close()

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return f.Close()
}

// Restore replaces dbPath with the snapshot at src. The server must not be
// running. Encrypted snapshots need the passphrase they were made with.
func Restore(src, dbPath, passphrase string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	if Encrypted(data) {
		if passphrase == "" {
			return errors.New("backup is encrypted: passphrase required")
		}
		if data, err = Open(data, passphrase); err != nil {
			return err
		}
	}

	tmp := dbPath + ".restore"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write restore file: %w", err)
	}
	defer os.Remove(tmp)

	if err := database.Verify(tmp); err != nil {
		return err
	}

	os.Remove(dbPath + "-wal")
	os.Remove(dbPath + "-shm")
	if err := os.Rename(tmp, dbPath); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	return nil
}
