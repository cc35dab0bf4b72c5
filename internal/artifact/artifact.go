// Package artifact writes the local files produced by a provisioning run.
package artifact

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	// PrivateMode is used for files that may carry credentials.
	PrivateMode os.FileMode = 0o600
	// PublicMode is used for generated descriptors and reports.
	PublicMode os.FileMode = 0o644
)

// Writer writes artifacts atomically under a base directory.
type Writer struct {
	dir    string
	logger zerolog.Logger
}

// NewWriter returns a Writer rooted at dir.
func NewWriter(dir string, logger zerolog.Logger) *Writer {
	return &Writer{
		dir:    dir,
		logger: logger.With().Str("component", "artifact").Logger(),
	}
}

// Path resolves name against the writer's directory; absolute names are kept.
func (w *Writer) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(w.dir, name)
}

// WriteFile writes data to name atomically and returns the full path.
func (w *Writer) WriteFile(ctx context.Context, name string, data []byte, mode os.FileMode) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := w.Path(name)
	if err := writeAtomic(path, data, mode); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	w.logger.Debug().Str("path", path).Int("bytes", len(data)).Msg("artifact written")
	return path, nil
}

// WriteEnv renders values as a dotenv file.
func (w *Writer) WriteEnv(ctx context.Context, name string, values map[string]string) (string, error) {
	content, err := godotenv.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return w.WriteFile(ctx, name, []byte(content), PrivateMode)
}

// WriteYAML renders v as YAML with two-space indentation.
func (w *Writer) WriteYAML(ctx context.Context, name string, v any) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	if err := encoder.Close(); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return w.WriteFile(ctx, name, buf.Bytes(), PublicMode)
}

// Exists reports whether name is present.
func (w *Writer) Exists(name string) bool {
	_, err := os.Stat(w.Path(name))
	return err == nil
}

func writeAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}

	cleanup := func() {
		_ = os.Remove(tempFile.Name())
	}

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		cleanup()
		return err
	}
	if err := tempFile.Chmod(mode); err != nil {
		_ = tempFile.Close()
		cleanup()
		return err
	}
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		cleanup()
		return err
	}
	if err := tempFile.Close(); err != nil {
		cleanup()
		return err
	}

	if err := os.Rename(tempFile.Name(), path); err != nil {
		cleanup()
		return err
	}

	if dirHandle, err := os.Open(dir); err == nil {
		_ = dirHandle.Sync()
		_ = dirHandle.Close()
	}

	return nil
}
