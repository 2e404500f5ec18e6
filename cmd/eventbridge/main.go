package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/yourusername/reolink-bridge/internal/camera"
	"github.com/yourusername/reolink-bridge/internal/core"
	"github.com/yourusername/reolink-bridge/internal/receiver"
	"github.com/yourusername/reolink-bridge/internal/subscription"
	"github.com/yourusername/reolink-bridge/pkg/logger"
	"go.uber.org/zap"
)

const (
	defaultConfigPath = "configs/config.yaml"
	version           = "0.1.0"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Reolink Event Bridge v%s\n", version)
		fmt.Printf("Go version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	config, err := core.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.InitLogger(logger.LogConfig{
		Level:      config.Logging.Level,
		Output:     config.Logging.Output,
		FilePath:   config.Logging.FilePath,
		MaxSize:    config.Logging.MaxSize,
		MaxBackups: config.Logging.MaxBackups,
		MaxAge:     config.Logging.MaxAge,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Reolink Event Bridge",
		zap.String("version", version),
		zap.String("camera_host", config.Camera.Host),
		zap.String("webhook_url", config.Subscription.WebhookURL),
	)

	if err := run(config); err != nil {
		logger.Fatal("Event bridge failed", zap.Error(err))
	}

	logger.Info("Event bridge stopped")
}

func run(config *core.Config) error {
	log := logger.Log

	cam := camera.NewClient(camera.ClientConfig{
		Host:     config.Camera.Host,
		Port:     config.Camera.Port,
		Username: config.Camera.Username,
		Password: config.Camera.Password,
		Channel:  config.Camera.Channel,
		Timeout:  config.CameraTimeout(),
		Logger:   log,
	})

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), config.CameraTimeout())
	defer cancelStartup()

	if err := cam.Login(startupCtx); err != nil {
		return fmt.Errorf("camera login: %w", err)
	}

	onvifPort := config.Subscription.OnvifPort
	if onvifPort == 0 {
		ports, err := cam.GetNetPorts(startupCtx)
		if err != nil {
			return fmt.Errorf("onvif port discovery: %w", err)
		}
		onvifPort = ports.OnvifPort
		log.Info("Discovered ONVIF port", zap.Int("port", onvifPort))
	}

	states, err := cam.GetStates(startupCtx)
	if err != nil {
		log.Warn("Failed to fetch camera states", zap.Error(err))
	} else {
		log.Info("Camera states",
			zap.String("ir_lights", states.IrLights),
			zap.Bool("spotlight", states.Spotlight),
			zap.Bool("motion_detection", states.MotionDetection),
		)
	}

	transport := subscription.NewTransport(subscription.TransportConfig{
		Host:      config.Camera.Host,
		OnvifPort: onvifPort,
		Username:  config.Camera.Username,
		Password:  config.Camera.Password,
		LeaseTerm: config.LeaseTerm(),
		Timeout:   config.SubscriptionTimeout(),
		Logger:    log,
	})

	manager := subscription.NewManager(subscription.ManagerConfig{
		Transport:        transport,
		RenewalThreshold: config.RenewalThreshold(),
		Logger:           log,
	})

	server := receiver.NewServer(receiver.ServerConfig{
		Port:       config.Receiver.Port,
		Production: config.Receiver.Production,
		Logger:     log,
		Handler: func(body []byte) {
			log.Info("Camera event", zap.ByteString("payload", body))
		},
	})

	if err := server.Start(); err != nil {
		return fmt.Errorf("webhook receiver: %w", err)
	}
	defer server.Stop()

	if err := manager.Subscribe(startupCtx, config.Subscription.WebhookURL); err != nil {
		return err
	}

	fatalErrors := make(chan error, 1)

	keeper := subscription.NewKeeper(subscription.KeeperConfig{
		Manager:      manager,
		PollInterval: config.PollInterval(),
		Logger:       log,
		OnFatal: func(err error) {
			fatalErrors <- err
		},
	})
	keeper.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Info("Event bridge is running. Press Ctrl+C to stop.")

	var runErr error
	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case runErr = <-fatalErrors:
		log.Error("Subscription lost", zap.Error(runErr))
	}

	keeper.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := manager.Unsubscribe(shutdownCtx); err != nil {
		log.Warn("Unsubscribe failed", zap.Error(err))
	}

	if err := cam.Logout(shutdownCtx); err != nil {
		log.Warn("Camera logout failed", zap.Error(err))
	}

	return runErr
}
