// Package yamlio provides atomic YAML file I/O for the planning
// directory: results are written via temp file plus rename so a crash
// mid-write never leaves a half-written resultado.yaml, and corrupted
// inputs can be quarantined with a backup restore.
package yamlio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	yamlv3 "gopkg.in/yaml.v3"
)

// ParseError marks a file whose bytes could be read but not
// unmarshaled. Callers can match it with errors.As to trigger
// quarantine-and-restore recovery.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", filepath.Base(e.Path), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Load reads a YAML file into out, wrapping parse errors with the
// file name so validation messages point at the offending table.
func Load(path string, out any) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := yamlv3.Unmarshal(content, out); err != nil {
		return &ParseError{Path: path, Err: err}
	}
	return nil
}

func AtomicWrite(path string, data any) error {
	content, err := yamlv3.Marshal(data)
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}
	return AtomicWriteRaw(path, content)
}

func AtomicWriteRaw(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".calzaplan-tmp-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	// Validate written content by re-reading the temp file.
	written, err := os.ReadFile(tmpName)
	if err != nil {
		return fmt.Errorf("read temp file for validation: %w", err)
	}
	if err := validateYAML(written); err != nil {
		return fmt.Errorf("yaml validation failed: %w", err)
	}

	// Keep a .bak of the previous plan before replacing it.
	if _, err := os.Stat(path); err == nil {
		if err := copyFile(path, path+".bak"); err != nil {
			return fmt.Errorf("create backup: %w", err)
		}
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

// Quarantine moves a corrupted input aside so a re-run does not keep
// tripping over it, preserving the bytes for inspection.
func Quarantine(planDir, filePath string) (string, error) {
	quarantineDir := filepath.Join(planDir, "quarantine")
	if err := os.MkdirAll(quarantineDir, 0755); err != nil {
		return "", fmt.Errorf("create quarantine dir: %w", err)
	}

	baseName := filepath.Base(filePath)
	timestamp := time.Now().Format("20060102T150405")
	quarantinePath := filepath.Join(quarantineDir, fmt.Sprintf("%s.%s.corrupt", baseName, timestamp))

	if err := os.Rename(filePath, quarantinePath); err != nil {
		return "", fmt.Errorf("move to quarantine: %w", err)
	}
	return quarantinePath, nil
}

// RestoreFromBackup replaces a file with its .bak sibling, validating
// that the backup itself parses.
func RestoreFromBackup(filePath string) error {
	bakPath := filePath + ".bak"
	if _, err := os.Stat(bakPath); os.IsNotExist(err) {
		return fmt.Errorf("no backup file: %s", bakPath)
	}

	content, err := os.ReadFile(bakPath)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	if err := validateYAML(content); err != nil {
		return fmt.Errorf("backup YAML is also corrupted: %w", err)
	}

	if err := os.WriteFile(filePath, content, 0644); err != nil {
		return fmt.Errorf("restore from backup: %w", err)
	}
	return nil
}

func validateYAML(content []byte) error {
	var v any
	return yamlv3.Unmarshal(content, &v)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
