package personal

import (
	"net/http"
	"time"

	"family-ledger-go/internal/cache"
	"family-ledger-go/internal/domain/ledger"
	"family-ledger-go/internal/domain/lifecycle"
	"family-ledger-go/internal/gateway"
	commonhandler "family-ledger-go/internal/transport/httpserver/handler/common"
	"family-ledger-go/pkg/logger"
)

type Handlers struct {
	Lifecycle *lifecycle.Controller
	Store     *cache.Store
	Gateway   *gateway.Client
	log       logger.Logger
}

func New(controller *lifecycle.Controller, store *cache.Store, gateway *gateway.Client, log logger.Logger) *Handlers {
	return &Handlers{
		Lifecycle: controller,
		Store:     store,
		Gateway:   gateway,
		log:       logger.OrNop(log),
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	commonhandler.WriteError(w, status, code, message)
}

func writeDomainError(w http.ResponseWriter, log logger.Logger, op string, err error, args ...any) {
	commonhandler.WriteDomainError(w, log, op, err, args...)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	return commonhandler.DecodeJSON(r, dst)
}

func parseOptionalDate(value *string, field string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	parsed, err := commonhandler.ParseDateParam(*value)
	if err != nil {
		return nil, ledger.NewValidationError(field+" must be YYYY-MM-DD", field)
	}
	return parsed, nil
}
