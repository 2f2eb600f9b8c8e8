package factory

import (
	"github.com/mikey/deadline-triage/internal/adapters/httpapi"
	"github.com/mikey/deadline-triage/internal/adapters/ingest"
	"github.com/mikey/deadline-triage/internal/config"
	"github.com/mikey/deadline-triage/internal/core"
	"github.com/mikey/deadline-triage/internal/ports"
	"go.uber.org/zap"
)

// ServerFactory creates the network listeners based on configuration
type ServerFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *core.TriageService
}

// NewServerFactory creates a new server factory
func NewServerFactory(cfg *config.Config, logger *zap.Logger, service *core.TriageService) *ServerFactory {
	return &ServerFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
	}
}

// CreateServers returns the HTTP server and, when enabled, the SMTP ingest listener
func (f *ServerFactory) CreateServers(pending httpapi.PendingCounter) ([]ports.Server, error) {
	sc, err := f.cfg.GetServer()
	if err != nil {
		return nil, err
	}
	if sc.IngestSecret == "" {
		f.logger.Warn("Ingest secret not configured, /apps/ingest will reject every request")
	}

	servers := []ports.Server{
		httpapi.NewServer(f.service, pending, httpapi.Config{
			ListenAddress:   sc.ListenAddress,
			IngestSecret:    sc.IngestSecret,
			AllowOrigins:    sc.AllowOrigins,
			BodyLimit:       sc.BodyLimit,
			ReadTimeout:     sc.ReadTimeout,
			WriteTimeout:    sc.WriteTimeout,
			ShutdownTimeout: sc.ShutdownTimeout,
		}, f.logger),
	}

	smtp, err := f.cfg.GetSMTP()
	if err != nil {
		return nil, err
	}
	if smtp.Enabled {
		servers = append(servers, ingest.NewSMTPIngest(f.service, ingest.Config{
			ListenAddress:   smtp.ListenAddress,
			Domain:          smtp.Domain,
			DefaultOwner:    smtp.DefaultOwner,
			MaxMessageBytes: smtp.MaxMessageBytes,
			Timeout:         smtp.Timeout,
		}, f.logger))
	}
	return servers, nil
}
