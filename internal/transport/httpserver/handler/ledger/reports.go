package ledger

import (
	"net/http"
	"strings"

	"family-ledger-go/internal/cache"
	ledgerdomain "family-ledger-go/internal/domain/ledger"
	commonhandler "family-ledger-go/internal/transport/httpserver/handler/common"
)

const approvedCSVName = "approved-expenses.csv"

type markReadRequest struct {
	IDs []string `json:"ids"`
}

// ApprovedExpenses proxies the approved report; format=csv passes the
// gateway's CSV through untouched.
func (h *Handlers) ApprovedExpenses(w http.ResponseWriter, r *http.Request) {
	filter, err := commonhandler.ParseListFilter(r)
	if err != nil {
		writeDomainError(w, h.log, "reports.approved", err)
		return
	}

	if strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("format")), "csv") {
		body, contentType, err := h.Gateway.ApprovedExpensesCSV(r.Context(), filter)
		if err != nil {
			writeDomainError(w, h.log, "reports.approved_csv", err)
			return
		}
		commonhandler.WriteAttachment(w, contentType, approvedCSVName, body)
		return
	}

	items, err := h.Gateway.ApprovedExpenses(r.Context(), filter)
	if err != nil {
		writeDomainError(w, h.log, "reports.approved", err)
		return
	}
	commonhandler.Items(w, items)
}

func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.Store.Load(r.Context(), commonhandler.RequestMount(r), ledgerdomain.ListFilter{}, cache.Notifications)
	if err == nil {
		err = commonhandler.CollectionError(snapshot, cache.Notifications)
	}
	if err != nil {
		writeDomainError(w, h.log, "notifications.list", err)
		return
	}
	commonhandler.Items(w, snapshot.Notifications)
}

func (h *Handlers) MarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	ids := commonhandler.ParseCSV(strings.Join(req.IDs, ","))
	if len(ids) == 0 {
		writeDomainError(w, h.log, "notifications.mark_read", ledgerdomain.NewValidationError("ids are required", "ids"))
		return
	}

	if err := h.Gateway.MarkNotificationsRead(r.Context(), ids); err != nil {
		writeDomainError(w, h.log, "notifications.mark_read", err, "count", len(ids))
		return
	}
	if err := h.Store.RefreshNotifications(r.Context()); err != nil {
		h.log.BusinessError("notifications.mark_read: refetch failed", err)
	}
	w.WriteHeader(http.StatusNoContent)
}
