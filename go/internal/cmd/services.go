package main

import (
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pooldraft/go/internal/draft/draft"
	"github.com/mcdev12/pooldraft/go/internal/draft/pick"
	"github.com/mcdev12/pooldraft/go/internal/draft/pool"
)

type Services struct {
	DraftApp *draft.App
	PickApp  *pick.App
	Drafts   *draft.Service
	Picks    *pick.Service
}

func setupServices(store Store, clock clockwork.Clock) *Services {
	// Store → Pool → App → Service

	draftApp := draft.NewApp(store, clock)
	draftService := draft.NewService(draftApp)

	pickApp := pick.NewApp(store, pool.NewPool(store), clock)
	pickService := pick.NewService(pickApp, store)

	return &Services{
		DraftApp: draftApp,
		PickApp:  pickApp,
		Drafts:   draftService,
		Picks:    pickService,
	}
}
