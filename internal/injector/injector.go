//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/cellsync/internal/server"
)

// InitializeServer builds the full object graph from cfg.
func InitializeServer(cfg server.Config) (*server.Server, error) {
	wire.Build(server.ProviderSet)
	return nil, nil
}
