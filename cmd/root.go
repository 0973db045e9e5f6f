package cmd

import (
	"fmt"
	"log"
	"os"

	"clinic-booking/internal/data/repository"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/database"
	"clinic-booking/pkg/mq"
	"clinic-booking/pkg/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func Execute() {
	rootCmd := &cobra.Command{
		Use:           "clinic-booking",
		Short:         "Clinic appointment booking API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(noShowCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime is what every command needs: config, logger and a database pool.
type runtime struct {
	config *utils.Config
	logger *zap.Logger
	db     database.PgxIface
}

func bootstrap() (*runtime, error) {
	config, err := utils.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := utils.InitLogger(config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}

	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Error("Failed to connect to database", zap.Error(err))
		_ = logger.Sync()
		return nil, err
	}
	logger.Info("Database connected successfully",
		zap.String("host", config.Database.Host),
		zap.String("name", config.Database.Name),
	)

	return &runtime{config: config, logger: logger, db: db}, nil
}

func (rt *runtime) close() {
	rt.db.Close()
	_ = rt.logger.Sync()
}

type eventPublisher interface {
	usecase.EventPublisher
	Close() error
}

// openPublisher connects to RabbitMQ when MQ_URL is set. Events are dropped
// otherwise, and booking keeps working without a broker.
func openPublisher(cfg utils.MQConfig, logger *zap.Logger) eventPublisher {
	if cfg.URL == "" {
		logger.Info("MQ_URL not set, appointment events are discarded")
		return mq.Noop{}
	}

	publisher, err := mq.NewPublisher(cfg.URL, cfg.Exchange)
	if err != nil {
		logger.Warn("RabbitMQ unavailable, appointment events are discarded", zap.Error(err))
		return mq.Noop{}
	}
	logger.Info("Publishing appointment events", zap.String("exchange", cfg.Exchange))
	return publisher
}

func buildServices(rt *runtime, events usecase.EventPublisher) (*usecase.Service, error) {
	repos := repository.NewRepository(rt.db, rt.logger)
	return usecase.NewService(repos, rt.config, events, rt.logger)
}
