package sale

import (
	"github.com/bolibana/boutique/internal/sale/repository"
	"github.com/bolibana/boutique/internal/sale/service"
	"go.uber.org/fx"
)

var Module = fx.Module("sale",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
