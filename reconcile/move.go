package reconcile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// QuarantineFile moves a source file that could not be loaded into dstDir so
// the next run does not trip over it again. Name collisions get a timestamp
// suffix; cross-device moves fall back to copy+remove.
func QuarantineFile(srcPath string, dstDir string) (string, error) {
	if strings.TrimSpace(dstDir) == "" {
		return "", fmt.Errorf("quarantine dir is empty")
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", err
	}
	base := filepath.Base(srcPath)
	dstPath := filepath.Join(dstDir, base)
	if _, err := os.Stat(dstPath); err == nil {
		ext := filepath.Ext(base)
		name := strings.TrimSuffix(base, ext)
		dstPath = filepath.Join(dstDir, fmt.Sprintf("%s-%d%s", name, time.Now().UnixNano(), ext))
	}

	if err := os.Rename(srcPath, dstPath); err == nil {
		return dstPath, nil
	}

	in, err := os.Open(srcPath)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(dstPath)
	if err != nil {
		return "", err
	}
	_, copyErr := io.Copy(out, in)
	closeErr := out.Close()
	if copyErr != nil {
		_ = os.Remove(dstPath)
		return "", copyErr
	}
	if closeErr != nil {
		_ = os.Remove(dstPath)
		return "", closeErr
	}
	if err := os.Remove(srcPath); err != nil {
		return "", err
	}
	return dstPath, nil
}
