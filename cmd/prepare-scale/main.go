package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hpc-scale/prepare-scale/common/inventory"
	"github.com/hpc-scale/prepare-scale/pkg/inventorywatch"
	"github.com/hpc-scale/prepare-scale/pkg/metrics"
	"github.com/hpc-scale/prepare-scale/pkg/webapi"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var rootCmd = &cobra.Command{
	Version: metrics.BuildVersion(),

	Use:   "prepare-scale",
	Short: "Turns a provisioned inventory into the ansible inputs of a Spectrum Scale cluster",

	Run: func(cmd *cobra.Command, args []string) {
		startPlanner()
	},
}

var cfgFile string
var watchCfgFile bool
var watchInventory bool

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "specifies a config file to load")
	rootCmd.Flags().BoolVar(&watchCfgFile, "watch-config", false, "indicates whether to watch the config file for changes")
	rootCmd.Flags().BoolVar(&watchInventory, "watch", false, "keep running and re-plan whenever the inventory file changes")

	configFlags := pflag.NewFlagSet("", pflag.ContinueOnError)
	configFlags.String("log-level", "info", "the log level to run at")
	configFlags.Bool("verbose", false, "log the parsed inventory, implies debug logging")
	configFlags.String("tf-inv-path", "", "terraform inventory file path")
	configFlags.String("install-infra-path", "", "spectrum scale install infra clone parent path")
	configFlags.String("instance-private-key", "", "spectrum scale instances ssh private key path")
	configFlags.String("bastion-user", "", "bastion os login username")
	configFlags.String("bastion-ip", "", "bastion ssh public ip address")
	configFlags.String("bastion-ssh-private-key", "", "bastion ssh private key path")
	configFlags.String("memory-size", "", "instance memory size")
	configFlags.String("max-pagepool-gb", "1", "maximum pagepool size in GB")
	configFlags.String("disk-type", "", "disk type")
	configFlags.Int("default-data-replicas", 0, "default data replicas, 0 picks one from the zone count")
	configFlags.Int("max-data-replicas", 3, "max data replicas")
	configFlags.Int("default-metadata-replicas", 2, "default metadata replicas")
	configFlags.Int("max-metadata-replicas", 3, "max metadata replicas")
	configFlags.Bool("using-packer-image", false, "skips gpfs rpm copy")
	configFlags.Bool("using-rest-initialization", false, "skips gui configuration")
	configFlags.String("gui-username", "", "spectrum scale gui username")
	configFlags.String("gui-password", "", "spectrum scale gui password")
	configFlags.Bool("enable-mrot-conf", false, "configure MROT and logical subnet")
	configFlags.Bool("enable-ces", false, "configure CES on protocol nodes")
	configFlags.Bool("enable-afm", false, "enable AFM")
	configFlags.Bool("enable-key-protect", false, "enable key protect")
	configFlags.String("scale-encryption-servers", "[]", "list of key servers for encryption")
	configFlags.String("scale-encryption-admin-password", "null", "admin password for the key server")
	configFlags.String("scale-encryption-type", "null", "encryption type, either gklm or key_protect")
	configFlags.Bool("scale-encryption-enabled", false, "enable encryption")
	configFlags.Bool("enable-ldap", false, "enable LDAP")
	configFlags.String("ldap-basedns", "null", "base domain of ldap")
	configFlags.String("ldap-server", "null", "ldap server ip")
	configFlags.String("ldap-admin-password", "null", "ldap admin password")
	configFlags.Bool("colocate-protocol-cluster-instances", false, "protocol services run on storage instances")
	configFlags.Bool("is-colocate-protocol-subset", false, "fewer protocol nodes than storage nsd nodes")
	for _, prefix := range sizingFlagPrefixes() {
		configFlags.String(prefix+"-memory", "32", "memory of the "+prefix+" nodes in GiB")
		configFlags.String(prefix+"-vcpus-count", "8", "vcpus count of the "+prefix+" nodes")
		configFlags.String(prefix+"-bandwidth", "16000", "bandwidth of the "+prefix+" nodes in Mbps")
	}
	configFlags.String("listen-address", "", "address serving metrics, health and the current plan while watching")
	configFlags.String("metrics-textfile", "", "write plan metrics to this node exporter textfile")
	configFlags.String("etcd-endpoints", "", "comma separated etcd endpoints to publish the plan to")
	configFlags.String("etcd-prefix", "prepare-scale", "etcd key prefix")
	configFlags.String("etcd-cluster-name", "", "etcd key scope shared by every plan of this cluster")
	configFlags.String("otlp-endpoint", "", "opentelemetry endpoint to send telemetry to")
	configFlags.Bool("disable-otlp-traces", false, "disable sending traces to otlp")
	configFlags.Bool("disable-otlp-metrics", false, "disable sending metrics to otlp")
	configFlags.Bool("trace-everything", false, "enables tracing of all components")
	configFlags.String("gui-creds-aws-id", "", "id of secret in aws sm storing the gui credentials")
	configFlags.String("gui-creds-aws-region", "", "region of gui-creds-aws-id secret")
	configFlags.String("gui-creds-azure-id", "", "id of secret in azure kv storing the gui credentials")
	configFlags.String("gui-creds-azure-vault-name", "", "name of key vault storing gui-creds-azure-id")
	configFlags.String("gui-creds-gcp-id", "", "id of secret in gcp sm storing the gui credentials")
	configFlags.String("gui-creds-gcp-project-id", "", "id of project containing gui-creds-gcp-id")
	_ = configFlags.MarkDeprecated("memory-size", "tuning is derived from the per node class sizing")
	_ = configFlags.MarkDeprecated("max-pagepool-gb", "pagepool is derived from the per node class sizing")
	rootCmd.Flags().AddFlagSet(configFlags)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.SetEnvPrefix("psc")
	viper.AutomaticEnv()

	_ = viper.BindPFlags(configFlags)
}

func getLogger() (zap.AtomicLevel, *zap.Logger) {
	logLevel := zap.NewAtomicLevel()
	logConfig := zap.NewProductionEncoderConfig()
	logConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	jsonEncoder := zapcore.NewJSONEncoder(logConfig)
	core := zapcore.NewTee(
		zapcore.NewCore(jsonEncoder, zapcore.AddSync(os.Stdout), logLevel),
	)
	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	return logLevel, logger
}

func parseLogLevel(logger *zap.Logger, config *config) zapcore.Level {
	if config.verbose {
		return zapcore.DebugLevel
	}

	parsedLogLevel, err := zapcore.ParseLevel(config.logLevelStr)
	if err != nil {
		logger.Warn("invalid log level specified, using INFO instead")
		parsedLogLevel = zapcore.InfoLevel
	}
	return parsedLogLevel
}

func startPlanner() {
	// initialize the logger
	logLevel, logger := getLogger()
	defer func() { _ = logger.Sync() }()

	logger.Info("starting prepare-scale", zap.String("version", metrics.BuildVersion()))

	logger.Info("parsed launch configuration",
		zap.String("config", cfgFile),
		zap.Bool("watch-config", watchCfgFile),
		zap.Bool("watch", watchInventory))

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		err := viper.ReadInConfig()
		if err != nil {
			logger.Panic("failed to load specified config file", zap.Error(err))
		}
	}

	config := readConfig(logger)
	logLevel.SetLevel(parseLogLevel(logger, config))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// setup telemetry
	tel, err := initTelemetry(ctx, telemetryOptions{
		Logger:           logger.Named("telemetry"),
		OTLPEndpoint:     config.otlpEndpoint,
		EnableTraces:     !config.disableOtlpTraces,
		EnableMetrics:    !config.disableOtlpMetrics,
		TraceEverything:  config.traceEverything,
		InventoryPath:    config.tfInvPath,
		InstallInfraPath: config.installInfraPath,
	})
	if err != nil {
		logger.Error("failed to initialize opentelemetry", zap.Error(err))
		os.Exit(1)
	}
	tel.install()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		tel.Shutdown(shutdownCtx)
	}()

	if err := fetchGUICredentials(ctx, logger, config); err != nil {
		logger.Error("failed to fetch gui credentials", zap.Error(err))
		os.Exit(1)
	}

	if config.tfInvPath == "" {
		logger.Error("tf-inv-path must be specified")
		os.Exit(1)
	}

	p, err := newPlanner(ctx, plannerOptions{
		Logger:   logger.Named("planner"),
		Config:   config,
		Settings: config.settings(),
	})
	if err != nil {
		logger.Error("failed to initialize the planner", zap.Error(err))
		os.Exit(1)
	}
	defer p.Close()

	rec, err := inventory.Load(config.tfInvPath)
	if err != nil {
		logger.Error("failed to load inventory", zap.Error(err))
		if !watchInventory {
			os.Exit(1)
		}
	} else {
		if config.verbose {
			logger.Debug("parsed inventory", zap.Any("inventory", rec))
		}

		_, err = p.Run(ctx, rec)
		if err != nil {
			logger.Error("failed to plan the cluster", zap.Error(err))
			if !watchInventory {
				os.Exit(1)
			}
		}
	}

	if !watchInventory {
		return
	}

	if config.listenAddress != "" {
		webapi.InitializeWebServer(webapi.WebServerOptions{
			Logger:        logger.Named("webapi"),
			LogLevel:      &logLevel,
			ListenAddress: config.listenAddress,
			Plans:         p,
		})
	}

	var configLock sync.Mutex
	reloadConfiguration := func() {
		configLock.Lock()
		defer configLock.Unlock()

		if cfgFile != "" {
			err := viper.ReadInConfig()
			if err != nil {
				logger.Warn("failed to parse configuration file",
					zap.Error(err))
			}
		}

		newConfig := readConfig(logger)

		if newConfig.tfInvPath != config.tfInvPath {
			logger.Warn("config changes for tfInvPath require a restart")
		}

		if newConfig.listenAddress != config.listenAddress {
			logger.Warn("config changes for listenAddress require a restart")
		}

		if newConfig.etcdEndpoints != config.etcdEndpoints ||
			newConfig.etcdPrefix != config.etcdPrefix ||
			newConfig.etcdClusterName != config.etcdClusterName {
			logger.Warn("config changes for etcdEndpoints, etcdPrefix, or etcdClusterName require a restart")
		}

		if newConfig.otlpEndpoint != config.otlpEndpoint ||
			newConfig.disableOtlpTraces != config.disableOtlpTraces ||
			newConfig.disableOtlpMetrics != config.disableOtlpMetrics ||
			newConfig.traceEverything != config.traceEverything {
			logger.Warn("config changes for otlpEndpoint, disableOtlpTraces, disableOtlpMetrics, or traceEverything require a restart")
		}

		if newConfig.logLevelStr != config.logLevelStr || newConfig.verbose != config.verbose {
			newParsedLogLevel := parseLogLevel(logger, newConfig)
			logLevel.SetLevel(newParsedLogLevel)

			logger.Info("updated log level",
				zap.String("newLevel", newParsedLogLevel.String()))
		}

		// the cloud secrets are not fetched again, keep what the first fetch gave
		if config.guiCredsFromSecret() {
			newConfig.guiUsername = config.guiUsername
			newConfig.guiPassword = config.guiPassword
		}

		_, err := p.Reconfigure(ctx, newConfig.settings(), newConfig.writerOptions(logger))
		if err != nil {
			logger.Warn("failed to re-plan with the new configuration", zap.Error(err))
		}

		config = newConfig
	}

	if watchCfgFile && cfgFile != "" {
		viper.OnConfigChange(func(in fsnotify.Event) {
			logger.Info("configuration file change detected")
			reloadConfiguration()
		})

		go viper.WatchConfig()
	}

	watcher, err := inventorywatch.NewWatcher(inventorywatch.WatcherOptions[*inventory.Record]{
		Logger: logger.Named("inventorywatch"),
		Path:   config.tfInvPath,
		Load:   inventory.Load,
	})
	if err != nil {
		logger.Error("failed to watch the inventory", zap.Error(err))
		os.Exit(1)
	}

	updates := make(chan *inventory.Record)
	unsubscribe := watcher.Subscribe(updates)
	latest := inventorywatch.Latest(updates)

	go func() {
		sigCh := make(chan os.Signal, 10)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

		hasReceivedSigInt := false
		for sig := range sigCh {
			if sig == syscall.SIGINT {
				if hasReceivedSigInt {
					logger.Info("Received SIGINT a second time, terminating...")
					os.Exit(1)
				} else {
					logger.Info("Received SIGINT, attempting graceful shutdown...")
					hasReceivedSigInt = true
					cancel()
				}
			} else if sig == syscall.SIGTERM {
				logger.Info("Received SIGTERM, attempting graceful shutdown...")
				cancel()
			} else if sig == syscall.SIGHUP {
				logger.Info("Received SIGHUP, reloading configuration...")
				reloadConfiguration()
			}
		}
	}()

	logger.Info("watching inventory for changes",
		zap.String("path", filepath.Clean(config.tfInvPath)))

	func() {
		for {
			select {
			case <-ctx.Done():
				return
			case rec, ok := <-latest:
				if !ok {
					return
				}
				logger.Info("inventory change detected, re-planning")
				_, err := p.Run(ctx, rec)
				if err != nil {
					logger.Error("failed to plan the cluster", zap.Error(err))
				}
			}
		}
	}()

	// the watch loop is the only sender, so updates can be closed once it exits
	unsubscribe()
	err = watcher.Close()
	if err != nil {
		logger.Warn("failed to stop the inventory watcher", zap.Error(err))
	}
	close(updates)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	err = webapi.ShutdownWebServer(shutdownCtx)
	if err != nil {
		logger.Warn("failed to stop the web server", zap.Error(err))
	}

	logger.Info("planner shutdown gracefully")
}

func main() {
	cobra.CheckErr(rootCmd.Execute())
}
