package ports

import "errors"

var ErrNotFound = errors.New("not found")

var ErrConflict = errors.New("conflict")

// ErrBusy: un téléchargement est déjà actif (sentinelle présente).
var ErrBusy = errors.New("download already active")
