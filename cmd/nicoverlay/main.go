package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dooshek/nicoverlay/internal/audio"
	"github.com/dooshek/nicoverlay/internal/corpus"
	"github.com/dooshek/nicoverlay/internal/dbus"
	"github.com/dooshek/nicoverlay/internal/fileops"
	"github.com/dooshek/nicoverlay/internal/keyboard"
	"github.com/dooshek/nicoverlay/internal/logger"
	"github.com/dooshek/nicoverlay/internal/notification"
	"github.com/dooshek/nicoverlay/internal/overlay"
	"github.com/dooshek/nicoverlay/internal/render/headless"
	"github.com/dooshek/nicoverlay/internal/render/tui"
	"github.com/dooshek/nicoverlay/internal/screen"
	"github.com/dooshek/nicoverlay/internal/stats"
	"github.com/dooshek/nicoverlay/internal/types"
	"github.com/fatih/color"
)

// used by --headless when the screen size cannot be read
var fallbackGeometry = overlay.Geometry{Width: 1920, Height: 1080}

func init() {
	// Set custom usage message to show -- prefix
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "Usage of %s:\n", os.Args[0])
		flag.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(out, "  --%s", f.Name)
			name, usage := flag.UnquoteUsage(f)
			if len(name) > 0 {
				fmt.Fprintf(out, " %s", name)
			}
			fmt.Fprintf(out, "\n    \t%s", usage)
			if f.DefValue != "" && f.DefValue != "false" {
				fmt.Fprintf(out, " (default %q)", f.DefValue)
			}
			fmt.Fprintf(out, "\n")
		})
	}
}

func main() {
	cfg := types.DefaultConfig()

	logLevel := flag.String("log-level", "info", "Set log level (debug|info|warn|error)")
	logFilename := flag.String("log-filename", "", "Log to file instead of stdout")
	listDevices := flag.Bool("list-devices", false, "List audio capture devices and exit")
	noDBus := flag.Bool("no-dbus", false, "Do not register the D-Bus control service")
	flag.BoolVar(&cfg.Headless, "headless", false, "Log comments instead of drawing them in the terminal")
	flag.BoolVar(&cfg.Quiet, "quiet", false, "Do not send desktop notifications")
	flag.StringVar(&cfg.Hotkey, "hotkey", "", "Global `keys` that trigger a burst, e.g. ctrl+alt+b (Linux, needs the input group)")
	flag.StringVar(&cfg.Audio.InputFile, "input", "", "Replay a WAV `file` instead of capturing the microphone")
	flag.BoolVar(&cfg.Audio.Loop, "loop", false, "Loop the --input file")
	flag.Float64Var(&cfg.Audio.Threshold, "threshold", cfg.Audio.Threshold, "RMS volume that counts as a spike")
	flag.Float64Var(&cfg.Audio.MinVolume, "min-volume", cfg.Audio.MinVolume, "Rolling average below this is ignored as noise")
	flag.DurationVar(&cfg.Audio.Cooldown, "cooldown", cfg.Audio.Cooldown, "Minimum time between two spikes")
	flag.IntVar(&cfg.Audio.Window, "window", cfg.Audio.Window, "Number of frames in the rolling volume average")
	flag.IntVar(&cfg.Overlay.Cap, "cap", cfg.Overlay.Cap, "Maximum number of periodic comments on screen")
	flag.Parse()

	logger.SetLevel(*logLevel)
	if *logFilename != "" {
		if err := logger.SetOutputFile(*logFilename); err != nil {
			fmt.Printf("Error setting log file: %v\n", err)
			os.Exit(1)
		}
		defer logger.CloseLogFile()
	}

	logger.Debugf("Log level %s", logger.GetCurrentLevel())

	if *listDevices {
		if err := printDevices(); err != nil {
			logger.Error("Failed to list capture devices", err)
			os.Exit(1)
		}
		return
	}

	if *noDBus {
		cfg.DBus = false
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid settings", err)
		os.Exit(1)
	}

	fileOps, err := fileops.NewDefaultFileOps()
	if err != nil {
		logger.Error("Failed to initialize file operations", err)
		os.Exit(1)
	}

	if err := fileOps.CheckPID(); err != nil {
		if errors.Is(err, fileops.ErrProcessAlreadyRunning) {
			color.New(color.FgRed).Println("❌ Another nicoverlay instance is already running")
			os.Exit(1)
		}
		logger.Warnf("PID check failed: %v", err)
	}
	if err := fileOps.EnsureDirectories(); err != nil {
		logger.Warnf("Runtime directory unavailable: %v", err)
	} else if err := fileOps.SavePID(); err != nil {
		logger.Warnf("Failed to write PID file: %v", err)
	}

	if *logFilename == "" && !cfg.Headless {
		// the terminal renderer owns stdout while it runs
		logger.SetOutput(io.Discard)
	}

	err = run(cfg)
	fileOps.HandleExit()
	if err != nil {
		if *logFilename == "" {
			logger.SetOutput(os.Stdout)
		}
		logger.Error("Overlay failed", err)
		os.Exit(1)
	}
}

func printDevices() error {
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)

	names, err := audio.ListCaptureDevices()
	if err != nil {
		return err
	}

	bold.Println("🎙️  Capture devices:")
	if len(names) == 0 {
		fmt.Println("  (none)")
	}
	for i, name := range names {
		cyan.Printf("  %d. ", i+1)
		fmt.Println(name)
	}
	return nil
}

func run(cfg types.Config) error {
	regular, err := corpus.Regular()
	if err != nil {
		return err
	}
	burst, err := corpus.Burst()
	if err != nil {
		return err
	}

	var notifier notification.Notifier
	if cfg.Quiet {
		notifier = notification.NewSilent()
	} else {
		notifier = notification.New()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	counters := stats.New()

	// The renderer, scheduler, bus and detector call into each other; the
	// closures below are only invoked once everything is wired.
	var (
		sched    *overlay.Scheduler
		bus      *dbus.Server
		detector *audio.Detector
		term     *tui.Renderer
		renderer overlay.Renderer
	)

	if cfg.Headless {
		renderer = headless.New(screen.PrimaryOr(fallbackGeometry))
	} else {
		term = tui.New(
			tui.WithResizeHandler(func(g overlay.Geometry) { sched.Resize(g) }),
			tui.WithBurstKey(func() { sched.NotifySpike() }),
			tui.WithLevels(func() (float64, float64) { return detector.Levels() }),
			tui.WithMeter(func() float64 { return detector.Meter() }),
			tui.WithStats(counters),
		)
		renderer = term
	}

	sched = overlay.NewScheduler(renderer, cfg.Overlay, regular, burst,
		overlay.WithStats(counters),
		overlay.WithBurstHook(func(n int) {
			if bus != nil {
				bus.BurstSpawned(n)
			}
		}),
	)

	if cfg.DBus {
		bus = dbus.NewServer(sched)
		if err := bus.Start(); err != nil {
			logger.Warnf("D-Bus control unavailable: %v", err)
			bus = nil
		} else {
			defer bus.Stop()
		}
	}

	var stream audio.Stream
	source := "default input"
	if cfg.Audio.InputFile != "" {
		stream = audio.NewWAVStream(cfg.Audio.InputFile, cfg.Audio.Loop)
		source = cfg.Audio.InputFile
	} else {
		stream = audio.NewCaptureStream()
	}

	detector = audio.NewDetector(stream, audio.DetectorConfigFrom(cfg.Audio), func() {
		sched.NotifySpike()
		if bus != nil {
			bus.SpikeDetected()
		}
	})

	if err := detector.Start(); err != nil {
		// the owner decides the policy: keep the periodic comments, skip bursts
		logger.Error("Audio input unavailable, bursts disabled", err)
		if nerr := notifier.NotifyDeviceUnavailable(err); nerr != nil {
			logger.Warn("Could not send notification")
		}
	} else {
		// Stop logs its own close failure
		defer detector.Stop()
		if err := notifier.NotifyStarted(fmt.Sprintf("Listening on %s", source)); err != nil {
			logger.Warn("Could not send notification")
		}
	}

	if cfg.Hotkey != "" {
		startHotkey(ctx, cfg.Hotkey, sched)
	}

	if cfg.Headless {
		color.New(color.FgGreen).Printf("💬 Overlay running headless, press Ctrl+C to stop\n")
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	var wg sync.WaitGroup
	var uiErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sched.Run(runCtx); err != nil {
			logger.Error("Scheduler stopped", err)
		}
	}()

	if term != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// quitting the terminal ends the whole overlay
			defer stop()
			uiErr = term.Run(runCtx)
		}()
	}

	wg.Wait()

	st := counters.GetStats()
	logger.Infof("Shutting down: %d periodic, %d burst comments, %d spikes, %d dropped",
		st.PeriodicSpawned, st.BurstSpawned, st.Spikes, st.Dropped)

	if uiErr != nil {
		return fmt.Errorf("terminal renderer failed: %w", uiErr)
	}
	return nil
}

// startHotkey listens in the background; a failure only disables the hotkey
func startHotkey(ctx context.Context, keys string, sched *overlay.Scheduler) {
	binding, err := keyboard.ParseBinding(keys)
	if err != nil {
		logger.Warnf("Ignoring hotkey: %v", err)
		return
	}

	monitor := keyboard.NewMonitor(binding, sched.NotifySpike)
	if err := monitor.Start(ctx); err != nil {
		logger.Warnf("Hotkey %s unavailable: %v", binding, err)
		return
	}
	logger.Infof("⌨️  Press %s to trigger a burst", binding)
}
