package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/common"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/config"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/factory"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/log"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/version"
	"github.com/purpleteam-labs/campaign-orchestrator/pkg/pipeline"
)

var conf *config.Config

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the campaign REST API, publish lifecycle webhooks and ingest backend notifications",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		conf, err = config.Parse(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to parse config %s: %w", cfgFile, err)
		}

		// Init logger
		err = log.Init(conf.Logs)
		if err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}

		logger := log.Logger()

		// Dump generic information
		logger.Info("Starting campaign orchestrator",
			"version", version.Info(),
			"buildContext", version.BuildContext(),
		)
		logger.Info("Using config", "config", fmt.Sprintf("%+v", conf))

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.Logger()

		// Set max procs based on cpu limits
		err := common.SetMaxProcs()
		if err != nil {
			return err
		}

		// Set max memory
		err = common.SetMemLimit()
		if err != nil {
			return err
		}

		// Listen to sigterm and interrupt signals
		ctx := common.SetupSignalHandler(context.Background())

		// Metrics
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		err = version.RegisterCollector(registry)
		if err != nil {
			return fmt.Errorf("failed to register build info: %w", err)
		}

		metricsServer := factory.CreatePrometheusServer(conf.Metrics, registry)

		// Orchestrator
		o, err := factory.CreateOrchestrator(ctx, *conf, registry, logger)
		if err != nil {
			return fmt.Errorf("failed to create orchestrator: %w", err)
		}

		apiServer, err := factory.CreateAPIServer(conf.API, o.Service, registry, logger.WithName("api"))
		if err != nil {
			return err
		}

		// Ingest pipeline
		var (
			runner      pipeline.Runner[entity.BackendEvent]
			closeIngest common.CloseFunc
		)

		if conf.Ingest.Enabled {
			runner, closeIngest, err = factory.CreateIngestRunner(ctx, conf.Ingest, o, registry, logger.WithName("ingest"))
			if err != nil {
				return fmt.Errorf("failed to create ingest pipeline: %w", err)
			}
		}

		group, groupCtx := errgroup.WithContext(ctx)

		group.Go(func() error {
			return listen(metricsServer)
		})

		group.Go(func() error {
			return listen(apiServer)
		})

		if conf.Ingest.Enabled {
			group.Go(func() error {
				err := runner.Start(groupCtx)
				if errors.Is(err, context.Canceled) {
					return nil
				}

				return err
			})
		}

		logger.Info("Orchestrator started", "apiPort", conf.API.Port, "metricsPort", conf.Metrics.Port, "ingest", conf.Ingest.Enabled)

		// Graceful shutdown once a signal is received or a component failed
		group.Go(func() error {
			<-groupCtx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.GracefulDuration)
			defer cancel()

			errs := []error{
				apiServer.Shutdown(shutdownCtx),
				common.CloseAll(shutdownCtx, closeIngest),
				o.Service.Shutdown(shutdownCtx),
				metricsServer.Shutdown(shutdownCtx),
			}

			return errors.Join(errs...)
		})

		err = group.Wait()
		if err != nil {
			logger.Error(err, "Orchestrator stopped with error")

			return err
		}

		logger.V(2).Info("Orchestrator stopped")

		return nil
	},
}

func listen(server *http.Server) error {
	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
