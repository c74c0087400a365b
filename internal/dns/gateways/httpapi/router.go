// Package httpapi exposes the administration service as a JSON API.
package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/haukened/rr-zoned/internal/dns/common/log"
	"github.com/haukened/rr-zoned/internal/dns/domain"
	"github.com/haukened/rr-zoned/internal/dns/services/admin"
)

// maxZoneFileSize bounds an imported master file.
const maxZoneFileSize = 4 << 20

// AdminService is the administration surface served over HTTP.
type AdminService interface {
	ListZones() ([]domain.Zone, error)
	GetZone(id uint64) (domain.Zone, error)
	CreateZone(z domain.Zone) (domain.Zone, error)
	UpdateZone(id uint64, z domain.Zone) (domain.Zone, error)
	DeleteZone(id uint64) error

	ListRecords(zoneID uint64) ([]domain.Record, error)
	GetRecord(id uint64) (domain.Record, error)
	CreateRecord(zoneID uint64, r domain.Record) (domain.Record, error)
	UpdateRecord(id uint64, r domain.Record) (domain.Record, error)
	DeleteRecord(id uint64) error

	GetSettings() (domain.Settings, error)
	SetSettings(settings domain.Settings) (domain.Settings, error)

	ImportZoneFile(r io.Reader) (domain.Zone, error)
	ExportZoneFile(id uint64) (string, error)
	ListRecentQueries(limit int) ([]domain.QueryLogEntry, error)
}

var _ AdminService = (*admin.Service)(nil)

// MutationResponse wraps the result of a change. RestartError is set when the
// change was committed but the DNS listener could not be restarted.
type MutationResponse struct {
	Result       any    `json:"result,omitempty"`
	RestartError string `json:"restart_error,omitempty"`
}

type handler struct {
	svc    AdminService
	logger log.Logger
}

// NewRouter builds the API routes.
func NewRouter(svc AdminService, logger log.Logger) http.Handler {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	h := &handler{svc: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Route("/zones", func(r chi.Router) {
			r.Get("/", h.listZones)
			r.Post("/", h.createZone)
			r.Post("/import", h.importZone)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getZone)
				r.Put("/", h.updateZone)
				r.Delete("/", h.deleteZone)
				r.Get("/export", h.exportZone)
				r.Get("/records", h.listRecords)
				r.Post("/records", h.createRecord)
			})
		})
		r.Route("/records/{id}", func(r chi.Router) {
			r.Get("/", h.getRecord)
			r.Put("/", h.updateRecord)
			r.Delete("/", h.deleteRecord)
		})
		r.Get("/settings", h.getSettings)
		r.Put("/settings", h.putSettings)
		r.Get("/queries", h.listQueries)
	})
	return r
}

func (h *handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug(map[string]any{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start).String(),
		}, "admin request")
	})
}

func idParam(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("id must be a positive integer")
	}
	return id, nil
}

// respondMutation renders a committed change. A failed restart after the
// commit still answers with the result.
func (h *handler) respondMutation(w http.ResponseWriter, r *http.Request, status int, result any, err error) {
	if err != nil && !errors.Is(err, admin.ErrRestartFailed) {
		_ = render.Render(w, r, ErrFromService(err))
		return
	}
	resp := MutationResponse{Result: result}
	if err != nil {
		resp.RestartError = err.Error()
	}
	render.Status(r, status)
	render.JSON(w, r, resp)
}

func (h *handler) listZones(w http.ResponseWriter, r *http.Request) {
	zones, err := h.svc.ListZones()
	if err != nil {
		_ = render.Render(w, r, ErrFromService(err))
		return
	}
	if zones == nil {
		zones = []domain.Zone{}
	}
	render.JSON(w, r, zones)
}

func (h *handler) getZone(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	z, err := h.svc.GetZone(id)
	if err != nil {
		_ = render.Render(w, r, ErrFromService(err))
		return
	}
	render.JSON(w, r, z)
}

func (h *handler) createZone(w http.ResponseWriter, r *http.Request) {
	var z domain.Zone
	if err := render.DecodeJSON(r.Body, &z); err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	created, err := h.svc.CreateZone(z)
	h.respondMutation(w, r, http.StatusCreated, created, err)
}

func (h *handler) updateZone(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	var z domain.Zone
	if err := render.DecodeJSON(r.Body, &z); err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	updated, err := h.svc.UpdateZone(id, z)
	h.respondMutation(w, r, http.StatusOK, updated, err)
}

func (h *handler) deleteZone(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	h.respondMutation(w, r, http.StatusOK, nil, h.svc.DeleteZone(id))
}

func (h *handler) exportZone(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	text, err := h.svc.ExportZoneFile(id)
	if err != nil {
		_ = render.Render(w, r, ErrFromService(err))
		return
	}
	render.PlainText(w, r, text)
}

func (h *handler) importZone(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxZoneFileSize)
	z, err := h.svc.ImportZoneFile(body)
	h.respondMutation(w, r, http.StatusCreated, z, err)
}

func (h *handler) listRecords(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	records, err := h.svc.ListRecords(id)
	if err != nil {
		_ = render.Render(w, r, ErrFromService(err))
		return
	}
	if records == nil {
		records = []domain.Record{}
	}
	render.JSON(w, r, records)
}

func (h *handler) createRecord(w http.ResponseWriter, r *http.Request) {
	zoneID, err := idParam(r)
	if err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	var rec domain.Record
	if err := render.DecodeJSON(r.Body, &rec); err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	saved, err := h.svc.CreateRecord(zoneID, rec)
	h.respondMutation(w, r, http.StatusCreated, saved, err)
}

func (h *handler) getRecord(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	rec, err := h.svc.GetRecord(id)
	if err != nil {
		_ = render.Render(w, r, ErrFromService(err))
		return
	}
	render.JSON(w, r, rec)
}

func (h *handler) updateRecord(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	var rec domain.Record
	if err := render.DecodeJSON(r.Body, &rec); err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	saved, err := h.svc.UpdateRecord(id, rec)
	h.respondMutation(w, r, http.StatusOK, saved, err)
}

func (h *handler) deleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	h.respondMutation(w, r, http.StatusOK, nil, h.svc.DeleteRecord(id))
}

func (h *handler) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.GetSettings()
	if err != nil {
		_ = render.Render(w, r, ErrFromService(err))
		return
	}
	render.JSON(w, r, settings)
}

// putSettings applies the fields present in the body over the current
// settings.
func (h *handler) putSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.GetSettings()
	if err != nil {
		_ = render.Render(w, r, ErrFromService(err))
		return
	}
	if err := render.DecodeJSON(r.Body, &settings); err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	saved, err := h.svc.SetSettings(settings)
	h.respondMutation(w, r, http.StatusOK, saved, err)
}

func (h *handler) listQueries(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			_ = render.Render(w, r, ErrInvalidRequest(errors.New("limit must be a non-negative integer")))
			return
		}
		limit = n
	}
	entries, err := h.svc.ListRecentQueries(limit)
	if err != nil {
		_ = render.Render(w, r, ErrFromService(err))
		return
	}
	if entries == nil {
		entries = []domain.QueryLogEntry{}
	}
	render.JSON(w, r, entries)
}
