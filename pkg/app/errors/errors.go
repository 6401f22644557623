// Package errors contains helper functions and types to work with errors
package errors

import (
	"errors"
	"net/http"
)

// Category defines error category
type Category int

const (
	// CategoryNoError represents the absence of an error.
	CategoryNoError Category = iota
	// CategoryDataError The client sent invalid data in the request,
	// for example missing or malformed fields.
	CategoryDataError
	// CategoryUnauthorized The client presented no credential or an invalid one
	CategoryUnauthorized
	// CategoryForbidden The client is authenticated but not allowed to act
	CategoryForbidden
	// CategoryResourceNotFound The requested resource does not exist
	CategoryResourceNotFound
	// CategoryDependencyFailure A dependent service (content store, ledger,
	// identity provider) is throwing errors
	CategoryDependencyFailure
	// CategoryGeneralError The service failed in an unexpected way
	CategoryGeneralError
	// CategoryConnectionTimeout A call to a dependent service timed out;
	// the final state of the operation is unknown
	CategoryConnectionTimeout
)

func (c Category) String() string {
	switch c {
	case CategoryDataError:
		return "CategoryDataError"
	case CategoryUnauthorized:
		return "CategoryUnauthorized"
	case CategoryForbidden:
		return "CategoryForbidden"
	case CategoryResourceNotFound:
		return "CategoryResourceNotFound"
	case CategoryDependencyFailure:
		return "CategoryDependencyFailure"
	case CategoryConnectionTimeout:
		return "CategoryConnectionTimeout"
	default:
		return "CategoryGeneralError"
	}
}

// ServiceError represents service specific type that
// is used all over the services.
//
// Meta carries operator-facing context that survives to the HTTP response
// body, e.g. the content address of bytes that were stored before a ledger
// call failed.
type ServiceError struct {
	Category Category
	Message  string
	Err      error
	Meta     map[string]string
}

// Error method to comply with error interface
func (err *ServiceError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	return err.Message
}

// Unwrap returns the underlying error
func (err *ServiceError) Unwrap() error {
	return err.Err
}

// WithMeta attaches a key/value pair to the error and returns it.
func (err *ServiceError) WithMeta(key, value string) *ServiceError {
	if err.Meta == nil {
		err.Meta = make(map[string]string)
	}
	err.Meta[key] = value
	return err
}

// Is checks that provided error is a ServiceError with desired Category
func Is(err error, cat Category) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Category == cat {
		return true
	}
	return false
}

// Meta returns the value attached under key, if err is a ServiceError.
func Meta(err error, key string) (string, bool) {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Meta != nil {
		v, ok := svcErr.Meta[key]
		return v, ok
	}
	return "", false
}

// GeneralError returns a general service error
// this error message sent to the user is "Internal Server Error"
// the error passed is logged in the logger
func GeneralError(err error) *ServiceError {
	if err == nil {
		err = errors.New("internal server error")
	}
	return &ServiceError{
		Category: CategoryGeneralError,
		Message:  "Internal Server Error",
		Err:      err,
	}
}

// BadRequestError returns an error with category DataError
// the error message provided is returned to the user
// the error object provided is logged in logger
func BadRequestError(err error, message string) *ServiceError {
	if err == nil {
		err = errors.New("bad request:" + message)
	}
	return &ServiceError{
		Category: CategoryDataError,
		Message:  message,
		Err:      err,
	}
}

// UnAuthorizedError returns an error with category CategoryUnauthorized
// the error message provided is returned to the user
// the error object provided is logged in logger
func UnAuthorizedError(err error, message string) *ServiceError {
	if err == nil {
		err = errors.New("unauthorized")
	}
	return &ServiceError{
		Category: CategoryUnauthorized,
		Message:  message,
		Err:      err,
	}
}

// DependencyError returns an error with category CategoryDependencyFailure
// the error message provided is returned to the user
// the error object provided is logged in logger
func DependencyError(err error, message string) *ServiceError {
	if err == nil {
		err = errors.New("dependency failure:" + message)
	}
	return &ServiceError{
		Category: CategoryDependencyFailure,
		Message:  message,
		Err:      err,
	}
}

// TimeoutError returns an error with category CategoryConnectionTimeout.
// Used when a dependent call timed out and the operation's final state is
// unknown; callers must not blindly retry.
func TimeoutError(err error, message string) *ServiceError {
	if err == nil {
		err = errors.New("timeout:" + message)
	}
	return &ServiceError{
		Category: CategoryConnectionTimeout,
		Message:  message,
		Err:      err,
	}
}

// StatusCode returns the HTTP status code for the error category
func (err *ServiceError) StatusCode() int {
	switch err.Category {
	case CategoryDataError:
		return http.StatusBadRequest
	case CategoryUnauthorized:
		return http.StatusUnauthorized
	case CategoryForbidden:
		return http.StatusForbidden
	case CategoryResourceNotFound:
		return http.StatusNotFound
	case CategoryDependencyFailure:
		return http.StatusBadGateway
	case CategoryConnectionTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
