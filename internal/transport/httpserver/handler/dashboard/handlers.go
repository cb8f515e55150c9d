package dashboard

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"family-ledger-go/internal/cache"
	"family-ledger-go/internal/domain/aggregation"
	"family-ledger-go/internal/domain/ledger"
	"family-ledger-go/internal/export"
	commonhandler "family-ledger-go/internal/transport/httpserver/handler/common"
	"family-ledger-go/internal/transport/httpserver/middleware"
	"family-ledger-go/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type Handlers struct {
	Aggregation *aggregation.Service
	log         logger.Logger
}

func New(service *aggregation.Service, log logger.Logger) *Handlers {
	return &Handlers{
		Aggregation: service,
		log:         logger.OrNop(log),
	}
}

func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, ok := h.load(w, r, "dashboard.get", h.Aggregation.Dashboard)
	if !ok {
		return
	}
	commonhandler.WriteJSON(w, http.StatusOK, dashboard)
}

func (h *Handlers) Snapshots(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	limit, err := commonhandler.ParseIntParam(r.URL.Query().Get("limit"), 0)
	if err != nil {
		commonhandler.WriteError(w, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer")
		return
	}

	snapshots, err := h.Aggregation.Snapshots(r.Context(), user, limit)
	if err != nil {
		commonhandler.WriteDomainError(w, h.log, "dashboard.snapshots", err, "user_id", user.ID)
		return
	}
	commonhandler.Items(w, snapshots)
}

func (h *Handlers) Snapshot(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	snapshot, err := h.Aggregation.Snapshot(r.Context(), user, id)
	if err != nil {
		commonhandler.WriteDomainError(w, h.log, "dashboard.snapshot", err, "user_id", user.ID, "id", id)
		return
	}
	commonhandler.Item(w, http.StatusOK, snapshot)
}

func (h *Handlers) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "dashboard.export", export.XLSXContentType, "xlsx", export.WriteDashboardXLSX)
}

func (h *Handlers) Chart(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "dashboard.chart", export.PNGContentType, "png", export.RenderCategoryChart)
}

// render buffers the whole file so a late failure can still become a JSON
// error instead of a truncated download. Downloads are not recorded in the
// snapshot history.
func (h *Handlers) render(w http.ResponseWriter, r *http.Request, op, contentType, ext string, write func(io.Writer, *aggregation.Dashboard) error) {
	dashboard, ok := h.load(w, r, op, h.Aggregation.Build)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, dashboard); err != nil {
		commonhandler.WriteDomainError(w, h.log, op, err)
		return
	}

	filename := fmt.Sprintf("dashboard-%s-%s.%s", dashboard.From.Format(commonhandler.DateLayout), dashboard.To.Format(commonhandler.DateLayout), ext)
	commonhandler.WriteAttachment(w, contentType, filename, buf.Bytes())
}

type buildFunc func(ctx context.Context, mount *cache.Mount, viewer ledger.User, r ledger.Range) (*aggregation.Dashboard, error)

func (h *Handlers) load(w http.ResponseWriter, r *http.Request, op string, build buildFunc) (*aggregation.Dashboard, bool) {
	user, _ := middleware.UserFromContext(r.Context())

	dates, err := commonhandler.ParseRange(r)
	if err != nil {
		commonhandler.WriteDomainError(w, h.log, op, err)
		return nil, false
	}

	dashboard, err := build(r.Context(), commonhandler.RequestMount(r), user, dates)
	if err != nil {
		commonhandler.WriteDomainError(w, h.log, op, err, "user_id", user.ID)
		return nil, false
	}
	return dashboard, true
}
