package app

import (
	"fmt"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func notFound(message string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", message, nil)
}

func notAuthorized(message string) *DomainError {
	return domainError(http.StatusForbidden, "NOT_AUTHORIZED", message, nil)
}

func validationFailed(message string, details any) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_FAILED", message, details)
}

// resolutionFailed reports username lookups that found no account. Details
// carries one message per failed lookup so clients can show all of them.
func resolutionFailed(message string, details any) *DomainError {
	return domainError(http.StatusBadRequest, "RESOLUTION_FAILED", message, details)
}
