package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/tacusci/logging/v2"
	"github.com/takama/daemon"
	"github.com/tauraamui/zedcv/pkg/config"
	"github.com/tauraamui/zedcv/pkg/configdef"
	"github.com/tauraamui/zedcv/pkg/log"
	"github.com/tauraamui/zedcv/pkg/relay"
	"github.com/tauraamui/zedcv/pkg/video/videobackend"
)

const (
	name        = "zedcv"
	description = "Relay which turns uploaded webcam segments into an MJPEG stream"
)

type Service struct {
	daemon.Daemon
}

// Setup writes the default configuration file.
func (service *Service) Setup() (string, error) {
	log.Info("Setting up zedcv service...")

	err := config.DefaultCreator().Create()
	if err != nil {
		if !errors.Is(err, configdef.ErrConfigAlreadyExists) {
			return "", err
		}
		log.Error(err.Error())
	}

	return "Setup successful...", nil
}

func (service *Service) RemoveSetup() (string, error) {
	log.Info("Removing setup for zedcv service...")
	if err := config.DefaultDestroyer().Destroy(); err != nil {
		log.Error("unable to delete config file: %s", err.Error())
	}

	return "Removing setup successful...", nil
}

func (service *Service) Manage() (string, error) {
	usage := "Usage: zedcv setup | remove-setup | install | remove | start | stop | status"

	if len(os.Args) > 1 {
		command := os.Args[1]
		switch command {
		case "setup":
			return service.Setup()
		case "remove-setup":
			return service.RemoveSetup()
		case "install":
			return service.Install()
		case "remove":
			return service.Remove()
		case "start":
			return service.Start()
		case "stop":
			return service.Stop()
		case "status":
			return service.Status()
		default:
			return usage, nil
		}
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	log.Info("Starting zedcv relay...")

	server, err := relay.NewServer(config.DefaultResolver(), resolveBackend(os.Getenv("ZEDCV_VIDEO_BACKEND")))
	if err != nil {
		return "", err
	}

	server.WatchConfig(config.DefaultWatcher())
	if err := server.Start(); err != nil {
		<-server.Shutdown()
		return "", err
	}

	killSignal := <-interrupt
	fmt.Print("\r")
	log.Error("Received signal: %s", killSignal)

	log.Info("Shutting down server...")
	<-server.Shutdown()

	return "Shutdown successful... BYE! 👋", nil
}

// resolveBackend returns nil for an unset override so the configured
// backend is used.
func resolveBackend(override string) videobackend.Backend {
	if len(override) == 0 {
		return nil
	}
	return videobackend.Resolve(override)
}

func init() {
	logging.CallbackLabelLevel = 5
	logging.ColorLogLevelLabelOnly = true
	level := os.Getenv("ZEDCV_LOGGING_LEVEL")
	logging.CallbackLabel = strings.EqualFold(level, "debug")
	log.SetLevel(level)
}

func main() {
	daemonType := daemon.SystemDaemon
	if runtime.GOOS == "darwin" {
		daemonType = daemon.UserAgent
	}

	srv, err := daemon.New(name, description, daemonType)
	if err != nil {
		log.Fatal(err.Error())
	}

	service := &Service{srv}
	status, err := service.Manage()
	if err != nil {
		log.Fatal(fmt.Sprint(status, err.Error()))
	}

	fmt.Println(status)
}
