package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"git.uuxo.net/uuxo/fileshare-server/internal/auth"
	"git.uuxo.net/uuxo/fileshare-server/internal/config"
	"git.uuxo.net/uuxo/fileshare-server/internal/handlers"
	"git.uuxo.net/uuxo/fileshare-server/internal/history"
	"git.uuxo.net/uuxo/fileshare-server/internal/logging"
	"git.uuxo.net/uuxo/fileshare-server/internal/metrics"
	"git.uuxo.net/uuxo/fileshare-server/internal/notify"
	"git.uuxo.net/uuxo/fileshare-server/internal/server"
	"git.uuxo.net/uuxo/fileshare-server/internal/storage"
	"git.uuxo.net/uuxo/fileshare-server/internal/thumbs"
	"git.uuxo.net/uuxo/fileshare-server/internal/tools"
	"git.uuxo.net/uuxo/fileshare-server/internal/utils"
	"git.uuxo.net/uuxo/fileshare-server/internal/workers"
)

var log = logrus.New()

// fanOutLogger hands the configured logger to every package.
func fanOutLogger(l *logrus.Logger) {
	auth.SetLogger(l)
	config.SetLogger(l)
	handlers.SetLogger(l)
	history.SetLogger(l)
	metrics.SetLogger(l)
	notify.SetLogger(l)
	server.SetLogger(l)
	storage.SetLogger(l)
	thumbs.SetLogger(l)
	tools.SetLogger(l)
	workers.SetLogger(l)
}

func main() {
	var configFile string
	var genConfig bool
	var genConfigPath string
	var validateOnly bool
	var showVersion bool

	flag.StringVar(&configFile, "config", "./config.toml", "Path to configuration file \"config.toml\".")
	flag.BoolVar(&genConfig, "genconfig", false, "Print minimal configuration example and exit.")
	flag.StringVar(&genConfigPath, "genconfig-path", "", "Write configuration to the given file and exit.")
	flag.BoolVar(&validateOnly, "validate-config", false, "Validate configuration and exit without starting server.")
	flag.BoolVar(&showVersion, "version", false, "Show version information and exit.")
	flag.Parse()

	if showVersion {
		fmt.Printf("File Share Server v%s\n", config.DefaultConfig().Build.Version)
		os.Exit(0)
	}

	if genConfig {
		fmt.Println(config.GenerateMinimalConfig())
		os.Exit(0)
	}
	if genConfigPath != "" {
		f, err := os.Create(genConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create file: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprint(f, config.GenerateMinimalConfig())
		f.Close()
		fmt.Printf("Configuration written to %s\n", genConfigPath)
		os.Exit(0)
	}

	conf, err := config.Load(configFile)
	if err != nil {
		// With no config file at the default location, create one and
		// let the operator review it before a real start.
		if configFile == "./config.toml" || configFile == "" {
			fmt.Println("No configuration file found. Creating a minimal config.toml...")
			if err := config.CreateMinimalConfig(); err != nil {
				log.Fatalf("Failed to create minimal config: %v", err)
			}
			fmt.Println("Minimal config.toml created. Please review and modify as needed, then restart the server.")
			os.Exit(0)
		}
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Info("Configuration loaded successfully.")

	if err := config.Validate(conf); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	log.Info("Configuration validated successfully.")

	if validateOnly {
		log.Info("Configuration validation completed successfully!")
		os.Exit(0)
	}

	logging.Setup(conf, log)
	fanOutLogger(log)
	logging.LogSystemInfo(log, conf.Build.Version)

	if err := logging.WritePIDFile(conf.Server.PIDFilePath, log); err != nil {
		log.Fatalf("Error writing PID file: %v", err)
	}

	metrics.InitMetrics()
	log.Info("Prometheus metrics initialized.")

	users, err := auth.LoadUsers(conf.Server.UsersFile)
	if err != nil {
		log.Fatalf("Failed to load users: %v", err)
	}

	sessionExpiry, _ := time.ParseDuration(conf.Session.Expiry)
	sessions := auth.NewSessionStore(users, sessionExpiry)

	maxUploadSize, err := utils.ParseSize(conf.Server.MaxUploadSize)
	if err != nil {
		log.Fatalf("Invalid max_upload_size: %v", err)
	}
	minFreeBytes, err := utils.ParseSize(conf.Server.MinFreeBytes)
	if err != nil {
		log.Fatalf("Invalid min_free_bytes: %v", err)
	}

	files := storage.New(conf.Server.StoragePath, conf.Server.SharedPath, uint64(minFreeBytes))
	ownerIDs := make([]string, 0, len(users))
	for _, u := range users {
		ownerIDs = append(ownerIDs, u.ID)
	}
	if err := files.InitDirectories(ownerIDs); err != nil {
		log.Fatalf("Error creating storage directories: %v", err)
	}
	if err := storage.CheckFreeSpaceWithRetry(conf.Server.StoragePath, uint64(minFreeBytes), 3, 5*time.Second); err != nil {
		log.Fatalf("Insufficient free space: %v", err)
	}

	var historyStore *history.Store
	if conf.History.Enabled {
		historyStore, err = history.Open(conf.History.DBPath)
		if err != nil {
			log.Fatalf("Failed to open history store: %v", err)
		}
		log.Infof("Transfer history store opened at %s", conf.History.DBPath)
	}

	var thumbGen *thumbs.Generator
	if conf.Thumbnails.Enabled {
		thumbGen = thumbs.NewGenerator(conf.Thumbnails.MaxEdge)
	}

	pool := workers.FromConfig(&conf.Workers)

	reapInterval, _ := time.ParseDuration(conf.Notify.ReapInterval)
	bus := notify.NewBus(sessions, reapInterval)
	bus.Start()

	handler := &handlers.Handler{
		Sessions:      sessions,
		Files:         files,
		Bus:           bus,
		Runner:        tools.NewRunner(),
		History:       historyStore,
		Thumbs:        thumbGen,
		Pool:          pool,
		MaxUploadSize: maxUploadSize,
	}
	router := handlers.NewRouter(handler)

	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	server.StartMetricsListener(conf, 15*time.Second)

	srv := server.New(conf, handlers.CORSWrapper("*", router))
	server.SetupGracefulShutdown(srv, cancel, func() {
		bus.Stop()
		pool.Stop()
		if historyStore != nil {
			historyStore.Close()
		}
		logging.RemovePIDFile(conf.Server.PIDFilePath, log)
	})

	server.PrintStartupBanner(conf.Build.Version, srv.Addr)
	if err := server.Start(srv); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
}
