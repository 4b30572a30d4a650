package webhook

import (
	"github.com/smallbiznis/fieldrunner/internal/webhook/cache"
	"github.com/smallbiznis/fieldrunner/internal/webhook/repository"
	"github.com/smallbiznis/fieldrunner/internal/webhook/service"
	"github.com/smallbiznis/fieldrunner/internal/webhook/signature"
	"go.uber.org/fx"
)

var Module = fx.Module("webhook.service",
	fx.Provide(signature.NewVerifier),
	fx.Provide(repository.NewRepository),
	fx.Provide(cache.NewClient),
	fx.Provide(cache.Provide),
	fx.Provide(cache.ProvideLocker),
	fx.Provide(service.NewService),
)
