package personal

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"family-ledger-go/internal/cache"
	"family-ledger-go/internal/domain/ledger"
	"family-ledger-go/internal/domain/lifecycle"
	commonhandler "family-ledger-go/internal/transport/httpserver/handler/common"
	"family-ledger-go/internal/transport/httpserver/middleware"
	"github.com/go-chi/chi/v5"
)

const (
	maxMultipartMemory = 16 << 20
	payloadField       = "payload"
	filesField         = "files"
)

func (h *Handlers) ListMine(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "personal.list_mine", cache.Mine)
}

func (h *Handlers) ListPending(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	if !user.Role.IsAdmin() {
		writeDomainError(w, h.log, "personal.list_pending", lifecycle.ErrNotAdmin, "user_id", user.ID)
		return
	}
	h.list(w, r, "personal.list_pending", cache.Pending)
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request, op string, collection cache.Collection) {
	filter, err := commonhandler.ParseListFilter(r)
	if err != nil {
		writeDomainError(w, h.log, op, err)
		return
	}

	snapshot, err := h.Store.Load(r.Context(), commonhandler.RequestMount(r), filter, collection)
	if err == nil {
		err = commonhandler.CollectionError(snapshot, collection)
	}
	if err != nil {
		writeDomainError(w, h.log, op, err)
		return
	}

	if collection == cache.Pending {
		commonhandler.Items(w, snapshot.Pending)
		return
	}
	commonhandler.Items(w, snapshot.Mine)
}

func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := h.Gateway.GetPersonalExpense(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.log, "personal.get", err, "id", id)
		return
	}
	commonhandler.Item(w, http.StatusOK, item)
}

// Create accepts JSON, or multipart with the JSON in "payload" and the
// attachments in "files".
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	var (
		req     createRequest
		uploads []lifecycle.Upload
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_multipart", "invalid multipart body")
			return
		}
		defer r.MultipartForm.RemoveAll()

		dec := json.NewDecoder(strings.NewReader(r.FormValue(payloadField)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid payload json")
			return
		}

		for _, header := range r.MultipartForm.File[filesField] {
			file, err := header.Open()
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_multipart", "unreadable file "+header.Filename)
				return
			}
			defer file.Close()
			uploads = append(uploads, lifecycle.Upload{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Content:     file,
			})
		}
	} else if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	input, err := req.input()
	if err != nil {
		writeDomainError(w, h.log, "personal.create", err)
		return
	}
	created, err := h.Lifecycle.Create(r.Context(), user, input, uploads)
	if err != nil {
		writeDomainError(w, h.log, "personal.create", err, "user_id", user.ID, "files", len(uploads))
		return
	}
	commonhandler.Item(w, http.StatusCreated, created)
}

func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req updateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	patch, err := req.patch()
	if err != nil {
		writeDomainError(w, h.log, "personal.update", err)
		return
	}

	updated, err := h.Lifecycle.Update(r.Context(), user, id, patch)
	if err != nil {
		writeDomainError(w, h.log, "personal.update", err, "id", id, "user_id", user.ID)
		return
	}
	commonhandler.Item(w, http.StatusOK, updated)
}

func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	h.confirmed(w, r, "personal.submit", h.Lifecycle.Submit)
}

func (h *Handlers) Cancel(w http.ResponseWriter, r *http.Request) {
	h.confirmed(w, r, "personal.cancel", h.Lifecycle.Cancel)
}

type confirmedAction func(ctx context.Context, actor ledger.User, id string, confirmer lifecycle.Confirmer) (*ledger.PersonalExpenseRequest, error)

func (h *Handlers) confirmed(w http.ResponseWriter, r *http.Request, op string, action confirmedAction) {
	user, _ := middleware.UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req confirmRequest
	if err := commonhandler.DecodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	item, err := action(r.Context(), user, id, lifecycle.Confirmed(req.Confirm))
	if err != nil {
		writeDomainError(w, h.log, op, err, "id", id, "user_id", user.ID)
		return
	}
	commonhandler.Item(w, http.StatusOK, item)
}

func (h *Handlers) Decide(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req decideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	item, err := h.Lifecycle.Decide(r.Context(), user, id, req.input(), lifecycle.Confirmed(req.Confirm))
	if err != nil {
		writeDomainError(w, h.log, "personal.decide", err, "id", id, "user_id", user.ID, "decision", string(req.Decision))
		return
	}
	commonhandler.Item(w, http.StatusOK, item)
}

func (h *Handlers) Approvals(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	records, err := h.Lifecycle.FetchApprovals(r.Context(), commonhandler.RequestMount(r), id)
	if err != nil {
		writeDomainError(w, h.log, "personal.approvals", err, "id", id)
		return
	}
	if records == nil {
		records = []ledger.ApprovalRecord{}
	}
	commonhandler.WriteJSON(w, http.StatusOK, map[string][]ledger.ApprovalRecord{"approvals": records})
}
