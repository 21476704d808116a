package config

import "github.com/gear6io/dspbridge/pkg/errors"

// Config-specific error codes
var (
	ErrConfigFileReadFailed    = errors.MustNewCode("config.file_read_failed")
	ErrConfigFileParseFailed   = errors.MustNewCode("config.file_parse_failed")
	ErrConfigValidationFailed  = errors.MustNewCode("config.validation_failed")
	ErrConfigFileMarshalFailed = errors.MustNewCode("config.file_marshal_failed")
	ErrConfigFileWriteFailed   = errors.MustNewCode("config.file_write_failed")
	ErrUnsupportedProtocol     = errors.MustNewCode("config.unsupported_protocol")
	ErrUnsupportedDspType      = errors.MustNewCode("config.unsupported_dsp_type")
	ErrMissingSetting          = errors.MustNewCode("config.missing_setting")
	ErrInvalidPort             = errors.MustNewCode("config.invalid_port")
	ErrInvalidPin              = errors.MustNewCode("config.invalid_pin")
	ErrInvalidUnknownPolicy    = errors.MustNewCode("config.invalid_unknown_policy")

	// Logging-specific error codes
	ErrLogDirectoryCreationFailed = errors.MustNewCode("config.log_directory_creation_failed")
	ErrLogFileOpenFailed          = errors.MustNewCode("config.log_file_open_failed")
	ErrLogFilePathRequired        = errors.MustNewCode("config.log_file_path_required")
	ErrLogFileStatFailed          = errors.MustNewCode("config.log_file_stat_failed")
	ErrLogRotationFailed          = errors.MustNewCode("config.log_rotation_failed")
	ErrLogBackupReadFailed        = errors.MustNewCode("config.log_backup_read_failed")
	ErrLogBackupRemoveFailed      = errors.MustNewCode("config.log_backup_remove_failed")
	ErrLogCleanupFailed           = errors.MustNewCode("config.log_cleanup_failed")
)
