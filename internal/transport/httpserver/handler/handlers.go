package handler

import (
	adminhandler "family-ledger-go/internal/transport/httpserver/handler/admin"
	commonhandler "family-ledger-go/internal/transport/httpserver/handler/common"
	dashboardhandler "family-ledger-go/internal/transport/httpserver/handler/dashboard"
	ledgerhandler "family-ledger-go/internal/transport/httpserver/handler/ledger"
	personalhandler "family-ledger-go/internal/transport/httpserver/handler/personal"
)

type Handlers struct {
	Common    *commonhandler.Handlers
	Ledger    *ledgerhandler.Handlers
	Personal  *personalhandler.Handlers
	Dashboard *dashboardhandler.Handlers
	Admin     *adminhandler.Handlers
}

func New(common *commonhandler.Handlers, ledger *ledgerhandler.Handlers, personal *personalhandler.Handlers, dashboard *dashboardhandler.Handlers, admin *adminhandler.Handlers) *Handlers {
	return &Handlers{
		Common:    common,
		Ledger:    ledger,
		Personal:  personal,
		Dashboard: dashboard,
		Admin:     admin,
	}
}
