// Package validation provides document validation for Dockhand models.
//
// It combines go-playground/validator struct validation with
// transport-specific business rules: an SSH host needs a user and a
// credential reference, a direct host must not carry them, and the address
// format depends on the chosen transport.
//
// # Usage Example
//
//	validator := validation.New()
//	result, err := validator.ValidateHost(jsonData)
//	if err != nil {
//	    // Handle error
//	}
//	if !result.Valid {
//	    for _, err := range result.Errors {
//	        fmt.Printf("%s: %s\n", err.Field, err.Message)
//	    }
//	}
package validation

import (
	"encoding/json"
	"fmt"
	"net"
	"strings"

	"github.com/go-playground/validator/v10"

	"evalgo.org/dockhand/models"
)

// Validator validates Dockhand documents before they reach storage or a
// transport adapter.
type Validator struct {
	// structValidator validates Go struct constraints and tags
	structValidator *validator.Validate
}

// ValidationError represents a single validation error with field-level details.
type ValidationError struct {
	// Field is the name of the field that failed validation
	Field string `json:"field"`

	// Message describes why the validation failed
	Message string `json:"message"`

	// Value is the invalid value that caused the error (optional)
	Value interface{} `json:"value,omitempty"`
}

// ValidationResult represents the complete result of a validation operation.
type ValidationResult struct {
	// Valid is true if validation passed, false otherwise
	Valid bool `json:"valid"`

	// Errors contains all validation errors found (empty if Valid is true)
	Errors []ValidationError `json:"errors,omitempty"`
}

// New creates a new Validator instance.
func New() *Validator {
	return &Validator{
		structValidator: validator.New(),
	}
}

// ValidateHost validates a host registration document.
func (v *Validator) ValidateHost(data []byte) (*ValidationResult, error) {
	var host models.Host

	if err := json.Unmarshal(data, &host); err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{
				{
					Field:   "document",
					Message: fmt.Sprintf("Invalid JSON: %v", err),
				},
			},
		}, nil
	}

	return v.ValidateHostStruct(&host), nil
}

// ValidateHostStruct validates an already-decoded host.
func (v *Validator) ValidateHostStruct(host *models.Host) *ValidationResult {
	var errors []ValidationError

	if err := v.structValidator.Struct(host); err != nil {
		if invalid, ok := err.(validator.ValidationErrors); ok {
			for _, fieldErr := range invalid {
				errors = append(errors, ValidationError{
					Field:   strings.ToLower(fieldErr.Field()),
					Message: fmt.Sprintf("Failed %s constraint", fieldErr.Tag()),
					Value:   fieldErr.Value(),
				})
			}
		} else {
			errors = append(errors, ValidationError{
				Field:   "document",
				Message: err.Error(),
			})
		}
	}

	errors = append(errors, v.validateHostFields(host)...)

	return &ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}

// validateHostFields checks the transport-dependent business rules.
func (v *Validator) validateHostFields(host *models.Host) []ValidationError {
	var errors []ValidationError

	switch host.Transport {
	case models.TransportDirect:
		if !strings.HasPrefix(host.Address, "unix://") && !strings.HasPrefix(host.Address, "tcp://") {
			errors = append(errors, ValidationError{
				Field:   "address",
				Message: "Direct transport requires a unix:// or tcp:// address",
				Value:   host.Address,
			})
		}
		if host.User != "" {
			errors = append(errors, ValidationError{
				Field:   "user",
				Message: "User is not used by the direct transport",
				Value:   host.User,
			})
		}
		if host.CredentialRef != "" {
			errors = append(errors, ValidationError{
				Field:   "credentialRef",
				Message: "CredentialRef is not used by the direct transport",
			})
		}

	case models.TransportSSH:
		if host.Address == "" {
			errors = append(errors, ValidationError{
				Field:   "address",
				Message: "SSH transport requires a hostname or IP address",
			})
		} else if strings.Contains(host.Address, "://") {
			errors = append(errors, ValidationError{
				Field:   "address",
				Message: "SSH address must be a plain hostname or IP, without a scheme",
				Value:   host.Address,
			})
		} else if looksLikeIP(host.Address) && net.ParseIP(host.Address) == nil {
			errors = append(errors, ValidationError{
				Field:   "address",
				Message: "Invalid IP address format",
				Value:   host.Address,
			})
		}
		if host.User == "" {
			errors = append(errors, ValidationError{
				Field:   "user",
				Message: "User is required for the SSH transport",
			})
		}
		if host.CredentialRef == "" {
			errors = append(errors, ValidationError{
				Field:   "credentialRef",
				Message: "CredentialRef is required for the SSH transport",
			})
		}

	default:
		errors = append(errors, ValidationError{
			Field:   "transport",
			Message: "Transport must be 'direct' or 'ssh'",
			Value:   string(host.Transport),
		})
	}

	if host.Port < 0 || host.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "port",
			Message: "Port must be between 0 and 65535",
			Value:   host.Port,
		})
	}

	return errors
}

// ValidateStack validates a stack registration document. The Compose
// definition content itself is validated separately by the compose package
// before any command dispatch.
func (v *Validator) ValidateStack(stack *models.Stack) *ValidationResult {
	var errors []ValidationError

	if stack.HostID == "" {
		errors = append(errors, ValidationError{
			Field:   "hostId",
			Message: "HostID is required (must reference a registered host)",
		})
	}

	if stack.Project == "" {
		errors = append(errors, ValidationError{
			Field:   "project",
			Message: "Project name is required",
		})
	} else if !ValidProjectName(stack.Project) {
		errors = append(errors, ValidationError{
			Field:   "project",
			Message: "Project name must be lowercase alphanumeric with '-' or '_'",
			Value:   stack.Project,
		})
	}

	if stack.Definition == "" {
		errors = append(errors, ValidationError{
			Field:   "definition",
			Message: "Compose definition is required",
		})
	}

	return &ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}

// ValidProjectName mirrors the Compose project name constraints. The
// compose executor checks it again before dispatch so an invalid name can
// never reach a remote `docker compose -p` invocation.
func ValidProjectName(name string) bool {
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// looksLikeIP reports whether the address is numeric enough that it must
// parse as an IP rather than a hostname.
func looksLikeIP(addr string) bool {
	if strings.Contains(addr, ":") {
		return true
	}
	for _, r := range addr {
		if r != '.' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
