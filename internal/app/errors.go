package app

import (
	"github.com/icedl/icedl/internal/ports"
)

var ErrNotFound = ports.ErrNotFound
var ErrBusy = ports.ErrBusy

// CodedError porte un code d'erreur stable, persisté dans
// DownloadJob.errorCode et renvoyé par l'API.
//
// Codes utilisés: invalid_params, network_error, host_format, quota,
// canceled, small_file, io_error.
type CodedError struct {
	Code    string
	Message string
	Err     error
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *CodedError) Unwrap() error { return e.Err }
