package services

import "fmt"

const (
	ErrCodeInvalidConfig       = "HIERARCHY_INVALID_CONFIG"
	ErrCodeUnsupportedStrategy = "HIERARCHY_UNSUPPORTED_STRATEGY"
	ErrCodeNoExternalIDColumn  = "HIERARCHY_NO_EXTERNAL_ID_COLUMN"

	ErrCodePathMismatch      = "HIERARCHY_PATH_MISMATCH"
	ErrCodeGap               = "HIERARCHY_GAP"
	ErrCodeMissingExternalID = "HIERARCHY_MISSING_EXTERNAL_ID"
	ErrCodeDuplicateID       = "HIERARCHY_DUPLICATE_ID"
	ErrCodeCycle             = "HIERARCHY_CYCLE"
)

// ConfigurationError is raised before any query or persistence when the
// extraction configuration itself is unusable.
type ConfigurationError struct {
	Code    string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newConfigurationError(code, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// DataValidationError is raised when the extracted node set is structurally
// corrupt. It always aborts the whole extraction; no partial tree is ever
// persisted.
type DataValidationError struct {
	Code     string
	Message  string
	Level    int
	FullPath string

	// Path-length mismatch details.
	ExpectedLength int
	ActualLength   int

	// Hierarchy-gap details.
	MissingRank  string
	MissingValue string
}

func (e *DataValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
