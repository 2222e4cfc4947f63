// FaceMoji - emoji overlay on every face in a live webcam feed.
// Open http://localhost:8181 once it is running.
package main

import (
	"context"
	"flag"
	stdlog "log"
	"os/signal"
	"syscall"

	"github.com/teslashibe/facemoji/internal/config"
	"github.com/teslashibe/facemoji/internal/log"
	"github.com/teslashibe/facemoji/pkg/facemoji"
)

func main() {
	env, err := config.Load()
	if err != nil {
		stdlog.Fatalf("❌ Configuration error: %v", err)
	}

	cfg := parseFlags(facemoji.FromEnv(env))
	if cfg.Debug {
		env.LogLevel = "debug"
	}

	log.InitWithFile(env.LogLevel, log.FileOptions{
		Path:       env.LogFile,
		MaxSizeMB:  50,
		MaxBackups: 3,
		MaxAgeDays: 14,
	})
	log.Info("starting facemoji", "env", env.Environment, "production", env.IsProduction())

	app, err := facemoji.New(cfg)
	if err != nil {
		stdlog.Fatalf("❌ Configuration error: %v", err)
	}

	if err := app.Init(); err != nil {
		stdlog.Fatalf("❌ Initialization failed: %v", err)
	}
	defer app.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		stdlog.Fatalf("❌ Runtime error: %v", err)
	}
}

// parseFlags applies command line flags on top of the environment config.
func parseFlags(cfg facemoji.Config) facemoji.Config {
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	debugFrames := flag.Bool("debug-frames", false, "Log every detection pass (noisy)")
	port := flag.String("port", cfg.Port, "HTTP port for the page and websockets")
	modelURI := flag.String("models", cfg.ModelURI, "Model directory or http(s) base URL")
	backend := flag.String("backend", cfg.Backend, "Detector backend: local, remote or rekognition")
	remoteURL := flag.String("remote-url", cfg.RemoteURL, "Inference sidecar URL for the remote backend")
	region := flag.String("aws-region", cfg.AWSRegion, "AWS region for the rekognition backend")
	broker := flag.String("mqtt-broker", cfg.MQTTBroker, "MQTT broker for expression events, e.g. tcp://localhost:1883")
	device := flag.String("camera", cfg.Camera.Device, "Camera index, device path or video URL")
	threshold := flag.Float64("threshold", cfg.ScoreThreshold, "Minimum face score (0-1)")
	mirror := flag.Bool("mirror", cfg.Camera.Mirror, "Mirror the camera horizontally")
	flag.Parse()

	cfg.Debug, cfg.DebugFrames = *debug, *debugFrames
	cfg.Port, cfg.ModelURI = *port, *modelURI
	cfg.Backend, cfg.RemoteURL = *backend, *remoteURL
	cfg.AWSRegion, cfg.MQTTBroker = *region, *broker
	cfg.Camera.Device, cfg.Camera.Mirror = *device, *mirror
	cfg.ScoreThreshold = *threshold
	return cfg
}
