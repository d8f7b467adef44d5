package logging

import (
	"os"
	"path/filepath"

	tberrors "github.com/tunebook/tunebook/internal/errors"
)

// LogFileName is the name of the active log file.
const LogFileName = "tunebook.log"

// DefaultLogDir returns ~/.tunebook/logs, or a directory under the temp
// dir when there is no home directory.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".tunebook", "logs")
	}
	return filepath.Join(home, ".tunebook", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), LogFileName)
}

// FindLogFile resolves the log file to view: explicit if given, otherwise
// the default path.
func FindLogFile(explicit string) (string, error) {
	path := explicit
	if path == "" {
		path = DefaultLogPath()
	}
	if _, err := os.Stat(path); err != nil {
		return "", tberrors.New(tberrors.ErrCodeConfigNotFound, "log file not found: "+path, err).
			WithSuggestion("Start the daemon with 'tunebook serve' to produce logs")
	}
	return path, nil
}
