/*
 * @module service/init
 * @description Service initialization: builds the global session manager and fetch cache consumed by the API layer
 * @architecture Layered architecture - service layer
 * @documentReference api/routes.go
 * @stateFlow Initialized once at process start, before the HTTP server accepts requests
 * @rules Session state lives in memory only; a restart starts empty
 * @dependencies opendata-service/service/cache, opendata-service/service/session
 * @refs api/controllers
 */

package service

import (
	"log/slog"

	"opendata-service/service/cache"
	"opendata-service/service/session"
)

var (
	GlobalSessionManager *session.Manager
	GlobalFetchCache     *cache.FetchCache
)

func init() {
	GlobalSessionManager = session.NewManager()
	GlobalFetchCache = cache.NewFetchCache()
	slog.Info("service: initialized", "sessions", GlobalSessionManager.Count())
}
