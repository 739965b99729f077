package vault

import (
	"github.com/bolibana/boutique/internal/vault/repository"
	"github.com/bolibana/boutique/internal/vault/service"
	"go.uber.org/fx"
)

var Module = fx.Module("vault",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
