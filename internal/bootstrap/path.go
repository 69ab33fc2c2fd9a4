package bootstrap

import (
	"os"
	"path/filepath"
)

// ensureToolDirOnPATH creates binDir and prepends it to PATH so user-local
// ffmpeg and whisper-cli builds are found by the probe and the backend.
func ensureToolDirOnPATH(binDir string) error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}

	current := os.Getenv("PATH")
	for _, entry := range filepath.SplitList(current) {
		if filepath.Clean(entry) == filepath.Clean(binDir) {
			return nil
		}
	}

	if current == "" {
		return os.Setenv("PATH", binDir)
	}
	return os.Setenv("PATH", binDir+string(os.PathListSeparator)+current)
}
