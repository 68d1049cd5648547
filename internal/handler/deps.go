package handler

import (
	"sociowire/internal/app/realtime"
	"sociowire/internal/app/store"
	"sociowire/internal/configs"
)

// AppDeps bundles the shared dependencies injected into every handler.
type AppDeps struct {
	Hub    *realtime.Hub
	Config *configs.AppConfig
	Store  *store.Store
}
