package api

import (
	"net/http"
	"time"

	"github.com/erazemk/lostfound/internal/auth"
	"github.com/erazemk/lostfound/internal/catalog"
	"github.com/erazemk/lostfound/internal/claims"
	"github.com/erazemk/lostfound/internal/janitor"
	"github.com/erazemk/lostfound/internal/notify"
	"github.com/erazemk/lostfound/internal/store"
)

// Deps are the services the API is built on.
type Deps struct {
	Store         store.Store
	Catalog       *catalog.Service
	Claims        *claims.Manager
	Notify        *notify.Service
	Janitor       *janitor.Janitor
	Resolver      *auth.Resolver
	Demo          auth.Demo
	OperatorToken string
	Retention     time.Duration
	SecureCookies bool
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{
		Demo:          d.Demo,
		DemoEnabled:   d.Resolver.DemoEnabled,
		Tokens:        d.Store,
		SecureCookies: d.SecureCookies,
		Now:           func() time.Time { return time.Now().UTC() },
	}
	itemsHandler := &ItemsHandler{Catalog: d.Catalog}
	claimsHandler := &ClaimsHandler{Claims: d.Claims}
	notificationsHandler := &NotificationsHandler{Notify: d.Notify}
	adminHandler := &AdminHandler{Janitor: d.Janitor, Retention: d.Retention}

	authMW := AuthMiddleware(d.Resolver, d.Store)
	operator := OperatorMiddleware(d.OperatorToken)

	// Public.
	mux.HandleFunc("POST /api/auth/demo", authHandler.DemoLogin)
	mux.HandleFunc("GET /api/items", itemsHandler.List)
	mux.HandleFunc("GET /api/items/matched", itemsHandler.RecentlyMatched)
	mux.HandleFunc("GET /api/items/{id}", itemsHandler.Get)
	mux.HandleFunc("GET /api/items/{id}/matches", itemsHandler.Matches)
	mux.HandleFunc("GET /api/items/{id}/image", itemsHandler.GetImage)

	// Session.
	mux.Handle("GET /api/auth/me", authMW(http.HandlerFunc(authHandler.Me)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Items.
	mux.Handle("POST /api/items", authMW(http.HandlerFunc(itemsHandler.Create)))
	mux.Handle("PUT /api/items/{id}/image", authMW(http.HandlerFunc(itemsHandler.UploadImage)))
	mux.Handle("GET /api/me/items", authMW(http.HandlerFunc(itemsHandler.Mine)))

	// Claims.
	mux.Handle("POST /api/claims", authMW(http.HandlerFunc(claimsHandler.Create)))
	mux.Handle("GET /api/claims/mine", authMW(http.HandlerFunc(claimsHandler.Mine)))
	mux.Handle("GET /api/items/{id}/claims", authMW(http.HandlerFunc(claimsHandler.ListForItem)))
	mux.Handle("PATCH /api/claims/{id}", authMW(http.HandlerFunc(claimsHandler.Decide)))
	mux.Handle("PATCH /api/claims/{id}/received", authMW(http.HandlerFunc(claimsHandler.Received)))

	// Notifications.
	mux.Handle("GET /api/notifications", authMW(http.HandlerFunc(notificationsHandler.List)))
	mux.Handle("GET /api/notifications/unread-count", authMW(http.HandlerFunc(notificationsHandler.UnreadCount)))
	mux.Handle("PATCH /api/notifications/{id}/read", authMW(http.HandlerFunc(notificationsHandler.MarkRead)))
	mux.Handle("POST /api/notifications/read-all", authMW(http.HandlerFunc(notificationsHandler.MarkAllRead)))

	// Maintenance.
	mux.Handle("POST /api/admin/cleanup", operator(http.HandlerFunc(adminHandler.Cleanup)))
	mux.Handle("GET /api/admin/cleanup", operator(http.HandlerFunc(adminHandler.Preview)))

	return mux
}
