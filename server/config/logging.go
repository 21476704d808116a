package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gear6io/dspbridge/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// LogManager handles log file rotation and management
type LogManager struct {
	config     *LogConfig
	currentLog *os.File
	now        func() time.Time
}

// NewLogManager creates a new log manager
func NewLogManager(cfg *LogConfig) *LogManager {
	return &LogManager{
		config: cfg,
		now:    time.Now,
	}
}

// CleanupLogFile truncates the log file if it exists
func CleanupLogFile(filePath string) error {
	if filePath == "" {
		return nil
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}

	file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return errors.New(ErrLogFileOpenFailed, "failed to open log file for cleanup", err).AddContext("path", filePath)
	}
	return file.Close()
}

// GetWriter opens the log file for appending, rotating it first when it has
// grown past MaxSize.
func (lm *LogManager) GetWriter() (io.Writer, error) {
	if lm.config.FilePath == "" {
		return nil, errors.New(ErrLogFilePathRequired, "no log file path specified", nil)
	}

	logDir := filepath.Dir(lm.config.FilePath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, errors.New(ErrLogDirectoryCreationFailed, "failed to create log directory", err).AddContext("dir", logDir)
	}

	if err := lm.checkRotation(); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(lm.config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, errors.New(ErrLogFileOpenFailed, "failed to open log file", err).AddContext("path", lm.config.FilePath)
	}

	lm.currentLog = file
	return file, nil
}

func (lm *LogManager) checkRotation() error {
	if lm.config.MaxSize <= 0 {
		return nil
	}

	info, err := os.Stat(lm.config.FilePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.New(ErrLogFileStatFailed, "failed to stat log file", err)
	}

	maxSizeBytes := int64(lm.config.MaxSize) * 1024 * 1024
	if info.Size() < maxSizeBytes {
		return nil
	}

	return lm.rotateLog()
}

func (lm *LogManager) rotateLog() error {
	if lm.currentLog != nil {
		lm.currentLog.Close()
		lm.currentLog = nil
	}

	timestamp := lm.now().Format("2006-01-02-15-04-05")
	backupPath := fmt.Sprintf("%s.%s", lm.config.FilePath, timestamp)

	if err := os.Rename(lm.config.FilePath, backupPath); err != nil {
		return errors.New(ErrLogRotationFailed, "failed to rotate log file", err).AddContext("backup_path", backupPath)
	}

	// A failed prune leaves extra backups behind but must not stop logging.
	if err := lm.cleanupOldBackups(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to cleanup old log backups: %v\n", err)
	}

	return nil
}

// cleanupOldBackups removes backups beyond MaxBackups and older than MaxAge
func (lm *LogManager) cleanupOldBackups() error {
	if lm.config.MaxBackups <= 0 && lm.config.MaxAge <= 0 {
		return nil
	}

	logDir := filepath.Dir(lm.config.FilePath)
	logBase := filepath.Base(lm.config.FilePath)

	entries, err := os.ReadDir(logDir)
	if err != nil {
		return errors.New(ErrLogBackupReadFailed, "failed to read log directory", err)
	}

	var backups []backupInfo
	for _, entry := range entries {
		if entry.IsDir() || !isBackupFile(entry.Name(), logBase) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, backupInfo{
			path:    filepath.Join(logDir, entry.Name()),
			modTime: info.ModTime(),
		})
	}

	// oldest first
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].modTime.Before(backups[j].modTime)
	})

	removed := make(map[string]bool)
	if lm.config.MaxBackups > 0 && len(backups) > lm.config.MaxBackups {
		for _, b := range backups[:len(backups)-lm.config.MaxBackups] {
			if err := os.Remove(b.path); err != nil {
				return errors.New(ErrLogBackupRemoveFailed, "failed to remove old backup", err).AddContext("backup_path", b.path)
			}
			removed[b.path] = true
		}
	}

	if lm.config.MaxAge > 0 {
		cutoff := lm.now().AddDate(0, 0, -lm.config.MaxAge)
		for _, b := range backups {
			if removed[b.path] || !b.modTime.Before(cutoff) {
				continue
			}
			if err := os.Remove(b.path); err != nil {
				return errors.New(ErrLogBackupRemoveFailed, "failed to remove expired backup", err).AddContext("backup_path", b.path)
			}
		}
	}

	return nil
}

// Close closes the log manager and any open files
func (lm *LogManager) Close() error {
	if lm.currentLog != nil {
		return lm.currentLog.Close()
	}
	return nil
}

type backupInfo struct {
	path    string
	modTime time.Time
}

func isBackupFile(name, baseName string) bool {
	return len(name) > len(baseName) && strings.HasPrefix(name, baseName) && name[len(baseName)] == '.'
}

// consoleIsJSON decides the console encoding. "auto" picks the human
// readable writer only when stdout is a terminal.
func consoleIsJSON(format string) bool {
	switch strings.ToLower(format) {
	case "json":
		return true
	case "console":
		return false
	default:
		return !term.IsTerminal(int(os.Stdout.Fd()))
	}
}

// SetupLogger creates a configured zerolog logger. The returned LogManager
// owns the log file, if any, and may be nil.
func SetupLogger(cfg *Config) (zerolog.Logger, *LogManager, error) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || cfg.Log.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var writers []io.Writer

	if cfg.Log.Console {
		if consoleIsJSON(cfg.Log.Format) {
			writers = append(writers, os.Stdout)
		} else {
			writers = append(writers, zerolog.ConsoleWriter{
				Out:        os.Stdout,
				TimeFormat: time.RFC3339,
			})
		}
	}

	var logManager *LogManager
	if cfg.Log.FilePath != "" {
		if cfg.Log.Cleanup {
			if err := CleanupLogFile(cfg.Log.FilePath); err != nil {
				return zerolog.Logger{}, nil, errors.New(ErrLogCleanupFailed, "failed to cleanup log file", err)
			}
		}

		logManager = NewLogManager(&cfg.Log)
		fileWriter, err := logManager.GetWriter()
		if err != nil {
			return zerolog.Logger{}, nil, err
		}
		writers = append(writers, fileWriter)
	}

	var out io.Writer
	switch len(writers) {
	case 0:
		out = io.Discard
	case 1:
		out = writers[0]
	default:
		out = zerolog.MultiLevelWriter(writers...)
	}

	logger := zerolog.New(out).With().
		Timestamp().
		Str("component", "dspbridge").
		Logger()

	return logger, logManager, nil
}
