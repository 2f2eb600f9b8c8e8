package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/deadline-triage/internal/adapters/timer"
	"github.com/mikey/deadline-triage/internal/classifier"
	"github.com/mikey/deadline-triage/internal/config"
	"github.com/mikey/deadline-triage/internal/core"
	"github.com/mikey/deadline-triage/internal/deadline"
	"github.com/mikey/deadline-triage/internal/factory"
	"github.com/mikey/deadline-triage/internal/logging"
	"github.com/mikey/deadline-triage/internal/ports"
	"github.com/mikey/deadline-triage/internal/reminder"
	"github.com/mikey/deadline-triage/internal/safeguard"
	"github.com/mikey/deadline-triage/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideCore(container); err != nil {
		return nil, err
	}

	// Register mail source and code exchanger
	if err := container.Provide(factory.NewMailFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.MailFactory) (core.MailSource, error) {
		return f.CreateMailSource()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.MailFactory) core.TokenExchanger {
		return f.CreateTokenExchanger()
	}); err != nil {
		return nil, err
	}

	// Register notifier, timer and reminder scheduler
	if err := container.Provide(factory.NewNotifierFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.NotifierFactory) (core.Notifier, error) {
		return f.CreateNotifier()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.PipelineFactory) (*timer.CronTimer, error) {
		return f.CreateTimer()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.PipelineFactory, t *timer.CronTimer, n core.Notifier) (*reminder.Scheduler, error) {
		return f.CreateScheduler(t, n)
	}); err != nil {
		return nil, err
	}

	// Register triage service
	if err := container.Provide(func(
		source core.MailSource,
		exchanger core.TokenExchanger,
		store *classifier.Store,
		extractor *deadline.Extractor,
		scheduler *reminder.Scheduler,
		guard *safeguard.Checker,
		mail *factory.MailFactory,
		pipeline *factory.PipelineFactory,
		logger *zap.Logger,
	) *core.TriageService {
		return core.NewTriageService(
			source,
			exchanger,
			store,
			extractor,
			scheduler,
			guard,
			logger,
			mail.MaxResults(),
			pipeline.IngestSender(),
		)
	}); err != nil {
		return nil, err
	}

	// Register servers
	if err := container.Provide(factory.NewServerFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.ServerFactory, t *timer.CronTimer) ([]ports.Server, error) {
		return f.CreateServers(t)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideCore registers the parts shared by the daemon and the CLI:
// text processing, classifier storage, extraction and the safeguard.
func provideCore(container *dig.Container) error {
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewPipelineFactory); err != nil {
		return err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return err
	}

	// Register classifier repository and store
	if err := container.Provide(func(f *factory.StoreFactory) (core.ClassifierRepository, error) {
		return f.CreateRepository()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.StoreFactory, repo core.ClassifierRepository, tp *utils.TextProcessor) (*classifier.Store, error) {
		return f.CreateClassifierStore(repo, tp)
	}); err != nil {
		return err
	}

	// Register extractor and safeguard
	if err := container.Provide(func(f *factory.PipelineFactory) (*deadline.Extractor, error) {
		return f.CreateExtractor()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.PipelineFactory) *safeguard.Checker {
		return f.CreateGuard()
	}); err != nil {
		return err
	}

	return nil
}
