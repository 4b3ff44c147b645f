package preset

import (
	"bytes"
	"context"
	"crypto"
	"crypto/sha512"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/ant-controller/internal/domain/relay"
	"github.com/oshokin/ant-controller/internal/logger"
)

const (
	// DefaultFileMode is the permission of installed preset documents.
	DefaultFileMode os.FileMode = 0o644
	// DefaultChecksumFunction is used to verify installed preset documents.
	DefaultChecksumFunction crypto.Hash = crypto.SHA512
)

// ReadFileFunc reads a whole named document.
type ReadFileFunc func(name string) ([]byte, error)

// Loader applies the primary-then-fallback load policy to named documents.
type Loader struct {
	// Pins is the primary pins document.
	Pins string
	// Buttons is the primary buttons document.
	Buttons string
	// Fallback is the self-contained document used when the primary pair fails.
	Fallback string
	// ReadFile reads documents; os.ReadFile when nil.
	ReadFile ReadFileFunc
}

// errFallbackFailed is returned when neither the primary pair nor the fallback load.
var errFallbackFailed = errors.New("fallback preset failed")

// Load reads the named documents and parses them into a fresh snapshot.
func Load(ctx context.Context, readFile ReadFileFunc, names ...string) (*relay.Snapshot, error) {
	if readFile == nil {
		readFile = os.ReadFile
	}

	docs := make([]Document, 0, len(names))

	for _, name := range names {
		data, err := readFile(filepath.Clean(name))
		if err != nil {
			return nil, fmt.Errorf("read preset: %w", err)
		}

		docs = append(docs, Document{Name: name, Data: data})
	}

	return Parse(ctx, docs...)
}

// LoadWithFallback loads the primary pair, or the fallback document when the
// pair fails. The error is returned only when both attempts fail.
func (l *Loader) LoadWithFallback(ctx context.Context) (*relay.Snapshot, error) {
	snapshot, primaryErr := Load(ctx, l.ReadFile, l.Pins, l.Buttons)
	if primaryErr == nil {
		return snapshot, nil
	}

	logger.WarnKV(ctx, "Primary preset failed, loading fallback",
		"error", primaryErr,
		"fallback", l.Fallback,
	)

	snapshot, fallbackErr := Load(ctx, l.ReadFile, l.Fallback)
	if fallbackErr != nil {
		return nil, fmt.Errorf("%w: %w", errFallbackFailed, errors.Join(primaryErr, fallbackErr))
	}

	logger.WarnKV(ctx, "Fallback preset loaded", "source", snapshot.Source)

	return snapshot, nil
}

// ReadDocument returns the raw text of the named document.
func (l *Loader) ReadDocument(name string) ([]byte, error) {
	readFile := l.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}

	data, err := readFile(filepath.Clean(name))
	if err != nil {
		return nil, fmt.Errorf("read preset: %w", err)
	}

	return data, nil
}

// ReadButtons returns the raw text of the primary buttons document.
func (l *Loader) ReadButtons() ([]byte, error) {
	return l.ReadDocument(l.Buttons)
}

// Validate parses a candidate buttons document together with the primary pins document.
func (l *Loader) Validate(ctx context.Context, buttons []byte) (*relay.Snapshot, error) {
	pins, err := l.ReadDocument(l.Pins)
	if err != nil {
		return nil, err
	}

	return Parse(ctx,
		Document{Name: l.Pins, Data: pins},
		Document{Name: l.Buttons, Data: buttons},
	)
}

// Install validates the candidate buttons document and atomically replaces
// the primary buttons document with it. A nil checksum is computed locally;
// otherwise data must match it.
func (l *Loader) Install(ctx context.Context, buttons, checksum []byte) error {
	if _, err := l.Validate(ctx, buttons); err != nil {
		return err
	}

	if checksum == nil {
		sum := sha512.Sum512(buttons)
		checksum = sum[:]
	}

	target := filepath.Clean(l.Buttons)

	// go-update renames the current target away first, so it has to exist.
	if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
		if err = os.WriteFile(target, nil, DefaultFileMode); err != nil {
			return fmt.Errorf("create preset: %w", err)
		}
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: DefaultFileMode,
		Checksum:   checksum,
		Hash:       DefaultChecksumFunction,
	}

	if err := goupdate.Apply(bytes.NewReader(buttons), options); err != nil {
		return fmt.Errorf("install preset: %w", err)
	}

	oldFileName := filepath.Join(filepath.Dir(target), "."+filepath.Base(target)+".old")
	if _, err := os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	logger.InfoKV(ctx, "Preset installed", "path", target, "size", len(buttons))

	return nil
}
