package fx

import (
	"festival-scoring/internal/anomaly"
	"festival-scoring/internal/api"
	"festival-scoring/internal/config"
	"festival-scoring/internal/database"
	"festival-scoring/internal/logger"
	"festival-scoring/internal/metrics"
	"festival-scoring/internal/notify"
	"festival-scoring/internal/repository"
	"festival-scoring/internal/server"
	"festival-scoring/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideDetector(cfg *config.Config, log zerolog.Logger) *anomaly.Detector {
	return anomaly.New(cfg.AnomalyModelPath, log)
}

func ProvideRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func ProvideRegisterer(reg *prometheus.Registry) prometheus.Registerer {
	return reg
}

func ProvideProvider(client *api.ProviderClient) api.Provider {
	return client
}

func ProvideNotifier(n *notify.LogNotifier) notify.Notifier {
	return n
}

func ProvideVolunteerResolver(events *repository.EventRepository) service.VolunteerResolver {
	return service.FirstVolunteerResolver(events)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	fx.Provide(ProvideRegistry),
	fx.Provide(ProvideRegisterer),
	fx.Provide(metrics.New),
	// repos
	fx.Provide(repository.NewEventRepository),
	fx.Provide(repository.NewScoreRepository),
	fx.Provide(repository.NewResultRepository),
	fx.Provide(repository.NewRecheckRepository),
	fx.Provide(repository.NewPaymentRepository),
	// collaborators
	fx.Provide(api.NewProviderClient),
	fx.Provide(ProvideProvider),
	fx.Provide(notify.NewLogNotifier),
	fx.Provide(ProvideNotifier),
	fx.Provide(ProvideDetector),
	fx.Provide(ProvideVolunteerResolver),
	// svc
	fx.Provide(service.NewScoringService),
	fx.Provide(service.NewResultService),
	fx.Provide(service.NewRecheckService),
	fx.Provide(service.NewPaymentService),
	// server
	fx.Provide(server.New),
)
