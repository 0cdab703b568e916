package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orionlabs/sensing-core/engine"
	"github.com/orionlabs/sensing-core/types"
)

const version = "v0.1.0"

func main() {
	var (
		fps      = flag.Float64("fps", 30, "synthetic frame producer rate")
		width    = flag.Int("width", 1280, "synthetic frame width")
		height   = flag.Int("height", 720, "synthetic frame height")
		duration = flag.Duration("duration", 0, "stop after this long (0 = run until Ctrl+C)")
		debug    = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	printBanner(*fps, *width, *height)

	cfg := engine.DefaultConfig()
	cfg.ControlHook = func(d types.ControlDecision) {
		logger.Info("control",
			"frame_id", d.FrameID,
			"action", d.Action,
			"throttle", d.Throttle,
			"steer", d.Steer,
			"crack", d.Crack.Score,
		)
	}
	cfg.UplinkHook = func(p types.UplinkPayload) {
		logger.Debug("uplink", "frame_id", p.FrameID, "action", p.Action)
	}
	cfg.DegradedModeHook = func(s types.FailsafeStatus) {
		if s != types.FailsafeOK {
			logger.Warn("failsafe status changed", "status", s)
		}
	}

	eng, err := engine.New(cfg, logger)
	if err != nil {
		logger.Error("failed to construct engine", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received, stopping gracefully...")
		cancel()
	}()

	if *duration > 0 {
		go func() {
			time.Sleep(*duration)
			cancel()
		}()
	}

	if err := eng.Start(ctx); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	go produceFrames(ctx, eng, *fps, *height, *width, logger)
	go reportMetrics(ctx, eng, logger)

	<-ctx.Done()

	if err := eng.Stop(); err != nil {
		logger.Error("engine did not stop cleanly", "error", err)
	}
	logger.Info("sensingd stopped gracefully")
}

// produceFrames is a synthetic deterministic frame generator standing in
// for the camera driver, which is an explicit external collaborator and
// out of scope for this module. Frames are a slowly drifting gray field
// with an injected bright patch, enough to exercise the sensing kernel's
// event detection without any real capture hardware.
func produceFrames(ctx context.Context, eng *engine.Engine, fps float64, height, width int, logger *slog.Logger) {
	interval := time.Duration(float64(time.Second) / fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	src := rand.New(rand.NewSource(1))
	buf := make([]byte, height*width*3)
	tick := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick++
			base := byte(80 + (tick % 40))
			for i := 0; i < len(buf); i += 3 {
				buf[i+0] = base
				buf[i+1] = base
				buf[i+2] = base
			}
			if tick%50 == 0 {
				patchY := src.Intn(height / 2)
				patchX := src.Intn(width / 2)
				for y := patchY; y < patchY+20 && y < height; y++ {
					for x := patchX; x < patchX+20 && x < width; x++ {
						o := (y*width + x) * 3
						buf[o], buf[o+1], buf[o+2] = 220, 220, 220
					}
				}
			}

			if err := eng.PushFrame(buf, height, width); err != nil {
				logger.Debug("frame dropped", "error", err)
			}
		}
	}
}

func reportMetrics(ctx context.Context, eng *engine.Engine, logger *slog.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := eng.Metrics()
			logger.Info("metrics",
				"frame_id", m.FrameID,
				"fps", m.FPS,
				"yolo_hz", m.YoloHz,
				"p50_ms", m.LatencyP50MS,
				"p99_ms", m.LatencyP99MS,
				"crack_ratio", m.GlobalCrackRatio,
			)
		}
	}
}

func printBanner(fps float64, width, height int) {
	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║    sensingd - realtime sensing core demo                      ║")
	fmt.Printf("║                    Version %-30s ║\n", version)
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("  Frame source:    synthetic generator\n")
	fmt.Printf("  Resolution:      %dx%d\n", width, height)
	fmt.Printf("  Target FPS:      %.1f\n", fps)
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop gracefully")
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println()
}
