package errors

import (
	"fmt"
	"strings"
)

// ValidationError represents a field-specific validation error
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Validator collects field errors and converts them into a single AppError
type Validator struct {
	errors []ValidationError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		errors: make([]ValidationError, 0),
	}
}

// AddError adds a validation error
func (v *Validator) AddError(field, rule, message string, value ...interface{}) {
	var valueStr string
	if len(value) > 0 {
		valueStr = fmt.Sprintf("%v", value[0])
	}

	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   valueStr,
		Rule:    rule,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// GetErrors returns all validation errors
func (v *Validator) GetErrors() []ValidationError {
	return v.errors
}

// ToAppError converts validation errors to an AppError with ErrValidationFailed
func (v *Validator) ToAppError() *AppError {
	return v.ToAppErrorWithCode(ErrValidationFailed, "Validation failed")
}

// ToAppErrorWithCode converts validation errors to an AppError carrying code.
// Returns nil when nothing failed.
func (v *Validator) ToAppErrorWithCode(code ErrorCode, message string) *AppError {
	if !v.HasErrors() {
		return nil
	}

	var messages []string
	for _, err := range v.errors {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}

	appErr := NewError(code, message)
	appErr.Details = strings.Join(messages, "; ")
	_ = appErr.WithContext("validation_errors", v.errors)

	return appErr
}

// RequiredField validates that a field is not empty
func (v *Validator) RequiredField(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "required", "Field is required", value)
	}
	return v
}

// ValidateURL validates URL format
func (v *Validator) ValidateURL(field, url string) *Validator {
	if url == "" {
		return v
	}

	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		v.AddError(field, "url_format", "URL must start with http:// or https://", url)
	}
	return v
}

// ValidateNonNegative validates that an integer setting is zero or more
func (v *Validator) ValidateNonNegative(field string, value int) *Validator {
	if value < 0 {
		v.AddError(field, "non_negative", "Must be zero or a positive integer", value)
	}
	return v
}

// ValidateEnum validates that a value is in a list of allowed values
func (v *Validator) ValidateEnum(field, value string, allowedValues []string) *Validator {
	if value == "" {
		return v
	}

	for _, allowed := range allowedValues {
		if value == allowed {
			return v
		}
	}

	v.AddError(field, "enum",
		fmt.Sprintf("Must be one of: %s", strings.Join(allowedValues, ", ")), value)
	return v
}

// ValidateGitBranchName validates Git ref name format
func (v *Validator) ValidateGitBranchName(field, branchName string) *Validator {
	if branchName == "" {
		return v
	}

	if len(branchName) > 255 {
		v.AddError(field, "branch_length", "Branch name too long (max 255 characters)", branchName)
	}

	if strings.HasPrefix(branchName, "-") || strings.HasPrefix(branchName, ".") {
		v.AddError(field, "branch_prefix", "Branch name cannot start with - or .", branchName)
	}

	if strings.Contains(branchName, "..") {
		v.AddError(field, "branch_dots", "Branch name cannot contain consecutive dots", branchName)
	}

	invalidChars := []string{" ", "~", "^", ":", "?", "*", "[", "]", "\\"}
	for _, char := range invalidChars {
		if strings.Contains(branchName, char) {
			v.AddError(field, "branch_chars",
				fmt.Sprintf("Branch name cannot contain '%s'", char), branchName)
			break
		}
	}

	return v
}

// ValidateFilePath validates a repository-relative file path
func (v *Validator) ValidateFilePath(field, filePath string) *Validator {
	if filePath == "" {
		return v
	}

	if len(filePath) > 4096 {
		v.AddError(field, "path_length", "File path too long (max 4096 characters)", filePath)
	}

	if strings.Contains(filePath, "..") {
		v.AddError(field, "path_traversal", "File path cannot contain directory traversal", filePath)
	}

	if strings.HasPrefix(filePath, "/") {
		v.AddError(field, "path_absolute", "File path cannot be absolute", filePath)
	}

	for _, r := range filePath {
		if r < 32 || r == 127 {
			v.AddError(field, "path_control_chars", "File path cannot contain control characters", filePath)
			break
		}
	}

	return v
}
