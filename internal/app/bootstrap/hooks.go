// internal/app/bootstrap/hooks.go
package bootstrap

import (
	"github.com/dalemusser/waffle/app"
)

// Hooks wires TournHub into WAFFLE's lifecycle: config load/validate,
// Mongo connect, index reconciliation, admin bootstrap, router build,
// clean disconnect.
var Hooks = app.Hooks[AppConfig, DBDeps]{
	Name:           "tournhub",
	LoadConfig:     LoadConfig,
	ValidateConfig: ValidateConfig,
	ConnectDB:      ConnectDB,
	EnsureSchema:   EnsureSchema,
	Startup:        Startup,
	BuildHandler:   BuildHandler,
	Shutdown:       Shutdown,
}
