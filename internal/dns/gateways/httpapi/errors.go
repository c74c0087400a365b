package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/haukened/rr-zoned/internal/dns/domain"
	"github.com/haukened/rr-zoned/internal/dns/services/zonefile"
)

// ErrResponse is the JSON body of every failed request.
type ErrResponse struct {
	Err            error `json:"-"`
	HTTPStatusCode int   `json:"-"`

	StatusText string `json:"status"`
	ErrorText  string `json:"error,omitempty"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

// ErrInvalidRequest reports a body or parameter that could not be decoded.
func ErrInvalidRequest(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request.",
		ErrorText:      err.Error(),
	}
}

// ErrFromService maps a service error onto an HTTP status.
func ErrFromService(err error) render.Renderer {
	resp := &ErrResponse{Err: err, ErrorText: err.Error()}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		resp.HTTPStatusCode, resp.StatusText = http.StatusNotFound, "Not found."
	case errors.Is(err, domain.ErrAlreadyExists):
		resp.HTTPStatusCode, resp.StatusText = http.StatusConflict, "Already exists."
	case errors.Is(err, domain.ErrInvalidZone),
		errors.Is(err, domain.ErrInvalidRecord),
		errors.Is(err, domain.ErrUnsupportedType),
		errors.Is(err, domain.ErrInvalidSettings),
		errors.Is(err, zonefile.ErrImportParse):
		resp.HTTPStatusCode, resp.StatusText = http.StatusBadRequest, "Invalid request."
	default:
		resp.HTTPStatusCode, resp.StatusText = http.StatusInternalServerError, "Internal error."
	}
	return resp
}
