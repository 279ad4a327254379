package httpserver

import (
	"net/http"

	"github.com/coreshift/switchyard/internal/errs"
)

// RespondErr maps a classified *errs.Error (or a plain error) onto an HTTP
// status code and writes the JSON envelope.
func RespondErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errs.KindOf(err) {
	case errs.Invariant:
		status = http.StatusUnprocessableEntity
	case errs.Exhaustion:
		status = http.StatusServiceUnavailable
	case errs.Cancelled:
		status = http.StatusRequestTimeout
	case errs.Transient:
		status = http.StatusServiceUnavailable
	case errs.Fatal:
		status = http.StatusInternalServerError
	}
	RespondError(w, status, err.Error(), "")
}
