package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/byteedu/internal/auth"
	"github.com/MarcoPoloResearchLab/byteedu/internal/config"
	"github.com/MarcoPoloResearchLab/byteedu/internal/governance"
	"github.com/MarcoPoloResearchLab/byteedu/internal/records"
	"github.com/MarcoPoloResearchLab/byteedu/internal/roster"
	"github.com/MarcoPoloResearchLab/byteedu/internal/scoring"
	"github.com/MarcoPoloResearchLab/byteedu/internal/server"
	"github.com/MarcoPoloResearchLab/byteedu/internal/users"
	"github.com/MarcoPoloResearchLab/byteedu/internal/verification"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "byteedu-api",
		Short: "ByteEdu student passport backend",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
		SilenceUsage: true,
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newInitCommand(), newResetBadgesCommand(), newImportStudentsCommand(), newExportCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("storage-driver", defaults.GetString("storage.driver"), "Storage medium (sqlite, leveldb, badger, redis)")
	cmd.PersistentFlags().String("storage-path", defaults.GetString("storage.path"), "File or directory for the sqlite, leveldb and badger media")
	cmd.PersistentFlags().String("redis-address", defaults.GetString("storage.redis_address"), "Redis address for the redis medium")
	cmd.PersistentFlags().String("key-prefix", defaults.GetString("storage.key_prefix"), "Prefix applied to every stored key")
	cmd.PersistentFlags().Int("session-ttl-minutes", defaults.GetInt("session.ttl_minutes"), "Session token TTL in minutes")
	cmd.PersistentFlags().Duration("poll-interval", defaults.GetDuration("poll.interval"), "Interval between realtime snapshot polls")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "storage.driver", "storage-driver")
	bindFlag(cmd, "storage.path", "storage-path")
	bindFlag(cmd, "storage.redis_address", "redis-address")
	bindFlag(cmd, "storage.key_prefix", "key-prefix")
	bindFlag(cmd, "session.ttl_minutes", "session-ttl-minutes")
	bindFlag(cmd, "poll.interval", "poll-interval")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "session.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Seed absent collections and refresh the badge catalog on version change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(false)
			if err != nil {
				return err
			}
			defer env.Close()

			result, err := env.store.InitializeStorage(cmd.Context())
			if err != nil {
				return err
			}
			env.logger.Info("storage initialized",
				zap.String("previous_version", result.PreviousVersion),
				zap.Bool("badges_refreshed", result.BadgesRefreshed),
				zap.Strings("seeded", result.Seeded),
			)
			return nil
		},
	}
}

func newResetBadgesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-badges",
		Short: "Restore the default badge catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(false)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.store.ResetBadges(cmd.Context()); err != nil {
				return err
			}
			env.logger.Info("badges reset")
			return nil
		},
	}
}

func newImportStudentsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import-students <csv>",
		Short: "Register students from a CSV roster (address,studentId,name,region,metadataURI)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(false)
			if err != nil {
				return err
			}
			defer env.Close()

			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			importer, err := roster.NewImporter(roster.Config{Store: env.store, Logger: env.logger})
			if err != nil {
				return err
			}
			report, err := importer.Import(cmd.Context(), file)
			if err != nil {
				return err
			}
			env.logger.Info("roster imported",
				zap.Int("registered", report.Registered),
				zap.Int("skipped", len(report.Skipped)),
				zap.Int("batches", len(report.Batches)),
			)
			return nil
		},
	}
}

type exportDocument struct {
	ExportedAt time.Time        `yaml:"exportedAt"`
	Snapshot   records.Snapshot `yaml:"snapshot"`
	Passport   scoring.Passport `yaml:"passport"`
	Students   []roster.Student `yaml:"students"`
}

func newExportCommand() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every stored collection as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(false)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx := cmd.Context()
			snapshot, err := env.store.Snapshot(ctx)
			if err != nil {
				return err
			}
			importer, err := roster.NewImporter(roster.Config{Store: env.store, Logger: env.logger})
			if err != nil {
				return err
			}
			students, err := importer.Students(ctx)
			if err != nil {
				return err
			}

			var out io.Writer = cmd.OutOrStdout()
			if outPath != "" {
				file, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer file.Close()
				out = file
			}
			encoder := yaml.NewEncoder(out)
			encoder.SetIndent(2)
			if err := encoder.Encode(exportDocument{
				ExportedAt: env.store.Now().UTC(),
				Snapshot:   snapshot,
				Passport:   scoring.Summarize(snapshot),
				Students:   students,
			}); err != nil {
				return fmt.Errorf("encode export: %w", err)
			}
			return encoder.Close()
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "Write the export to this file instead of stdout")
	return cmd
}

func runServer(ctx context.Context) error {
	env, err := openEnvironment(true)
	if err != nil {
		return err
	}
	defer env.Close()
	logger := env.logger

	verificationService, err := verification.NewService(verification.ServiceConfig{
		Store:      env.store,
		Roller:     scoring.NewRandomRoller(),
		IDProvider: verification.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	governanceService, err := governance.NewService(governance.ServiceConfig{Store: env.store, Logger: logger})
	if err != nil {
		return err
	}
	importer, err := roster.NewImporter(roster.Config{Store: env.store, Logger: logger})
	if err != nil {
		return err
	}

	signingSecret := []byte(env.config.SessionSigningSecret)
	tokenIssuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: signingSecret,
		TokenTTL:      env.config.SessionTTL,
	})
	if err != nil {
		return err
	}
	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{SigningSecret: signingSecret})
	if err != nil {
		return err
	}

	httpMetrics, err := server.NewHTTPMetrics(env.registry)
	if err != nil {
		return err
	}
	dispatcher := server.NewRealtimeDispatcher()
	poller, err := server.NewSnapshotPoller(server.SnapshotPollerConfig{
		Source:     env.store,
		Dispatcher: dispatcher,
		Interval:   env.config.PollInterval,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Store:          env.store,
		Verification:   verificationService,
		Governance:     governanceService,
		Roster:         importer,
		Directory:      users.NewDirectory(),
		TokenIssuer:    tokenIssuer,
		Sessions:       sessionValidator,
		Realtime:       dispatcher,
		Metrics:        httpMetrics,
		MetricsHandler: promhttp.HandlerFor(env.registry, promhttp.HandlerOpts{}),
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	if _, err := env.store.InitializeStorage(ctx); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              env.config.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(signalCtx)
	group.Go(func() error {
		logger.Info("server starting", zap.String("address", env.config.HTTPAddress), zap.String("storage", env.config.StorageDriver))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		return poller.Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return group.Wait()
}
