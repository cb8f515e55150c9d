package ledger

import (
	"net/http"
	"time"

	"family-ledger-go/internal/cache"
	ledgerdomain "family-ledger-go/internal/domain/ledger"
	"family-ledger-go/internal/gateway"
	commonhandler "family-ledger-go/internal/transport/httpserver/handler/common"
	"family-ledger-go/pkg/logger"
)

type Handlers struct {
	Ledger  *ledgerdomain.Service
	Store   *cache.Store
	Gateway *gateway.Client
	log     logger.Logger
}

func New(ledger *ledgerdomain.Service, store *cache.Store, gateway *gateway.Client, log logger.Logger) *Handlers {
	return &Handlers{
		Ledger:  ledger,
		Store:   store,
		Gateway: gateway,
		log:     logger.OrNop(log),
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

// parseDate reads an optional YYYY-MM-DD body field; empty means today.
func parseDate(value, field string) (time.Time, error) {
	parsed, err := commonhandler.ParseDateParam(value)
	if err != nil {
		return time.Time{}, ledgerdomain.NewValidationError(field+" must be YYYY-MM-DD", field)
	}
	if parsed == nil {
		return time.Time{}, nil
	}
	return *parsed, nil
}
