// Package acoustid identifies recordings from audio content using a local
// fpcalc binary and the AcoustID lookup service.
package acoustid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

var (
	// ErrFpcalcNotFound is returned when the fpcalc binary cannot be found
	ErrFpcalcNotFound = errors.New("fpcalc binary not found")

	// ErrFingerprintFailed is returned when fingerprint generation fails
	ErrFingerprintFailed = errors.New("fingerprint generation failed")
)

// Fingerprint is the output of fpcalc -json.
type Fingerprint struct {
	Duration    float64 `json:"duration"`
	Fingerprint string  `json:"fingerprint"`
}

// Fpcalc runs the Chromaprint command line tool.
type Fpcalc struct {
	configured string
}

// NewFpcalc creates a wrapper. An empty path means bin/fpcalc under the
// working directory, then fpcalc on $PATH.
func NewFpcalc(path string) *Fpcalc {
	return &Fpcalc{configured: path}
}

func binaryName() string {
	if runtime.GOOS == "windows" {
		return "fpcalc.exe"
	}
	return "fpcalc"
}

// Path resolves the binary to run.
func (f *Fpcalc) Path() (string, error) {
	if f.configured != "" {
		if isExecutable(f.configured) {
			return f.configured, nil
		}
		return "", fmt.Errorf("%w: %s", ErrFpcalcNotFound, f.configured)
	}

	if wd, err := os.Getwd(); err == nil {
		local := filepath.Join(wd, "bin", binaryName())
		if isExecutable(local) {
			return local, nil
		}
	}

	path, err := exec.LookPath(binaryName())
	if err != nil {
		return "", ErrFpcalcNotFound
	}
	return path, nil
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0111 != 0
}

// Available reports whether a binary can be found.
func (f *Fpcalc) Available() bool {
	_, err := f.Path()
	return err == nil
}

// Generate fingerprints the audio file at path.
func (f *Fpcalc) Generate(ctx context.Context, path string) (*Fingerprint, error) {
	bin, err := f.Path()
	if err != nil {
		return nil, err
	}

	out, err := exec.CommandContext(ctx, bin, "-json", path).Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrFingerprintFailed, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("%w: %v", ErrFingerprintFailed, err)
	}

	var fp Fingerprint
	if err := json.Unmarshal(out, &fp); err != nil {
		return nil, fmt.Errorf("%w: parse output: %v", ErrFingerprintFailed, err)
	}
	if strings.TrimSpace(fp.Fingerprint) == "" {
		return nil, fmt.Errorf("%w: empty fingerprint", ErrFingerprintFailed)
	}
	return &fp, nil
}
