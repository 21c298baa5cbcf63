package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"ink2tex/clipboard"
	"ink2tex/config"
	"ink2tex/crop"
	"ink2tex/display"
	"ink2tex/eventloop"
	"ink2tex/logutil"
	"ink2tex/notify"
	"ink2tex/recognition"
	"ink2tex/session"
	"ink2tex/singleinstance"
	"ink2tex/tray"
	"ink2tex/worker"
)

// normalizeFlagDashes maps GNU-style --open/--status to Go's -open/-status
func normalizeFlagDashes() {
	for i := 1; i < len(os.Args); i++ {
		switch arg := os.Args[i]; {
		case arg == "--open":
			os.Args[i] = "-open"
		case arg == "--status":
			os.Args[i] = "-status"
		case strings.HasPrefix(arg, "--open="):
			os.Args[i] = arg[1:]
		case strings.HasPrefix(arg, "--status="):
			os.Args[i] = arg[1:]
		}
	}
}

// logSurface stands in for the overlay window, which is rendered by the
// platform shell. It only records transitions.
type logSurface struct{}

func (logSurface) Show() error {
	log.Printf("overlay: show")
	return nil
}
func (logSurface) Foreground() { log.Printf("overlay: foreground") }
func (logSurface) Hide()       { log.Printf("overlay: hide") }

// logPreview stands in for the LaTeX preview pane.
type logPreview struct{}

func (logPreview) ShowResult(text string) { log.Printf("preview: %q", text) }

func main() {
	// Lock main goroutine to its own OS thread so the tray and hotkey hooks
	// don't share its message queue.
	runtime.LockOSThread()
	enableDPIAwareness()

	openFlag := flag.Bool("open", false, "Open the drawing overlay (delegates to a running instance)")
	statusFlag := flag.Bool("status", false, "Print resident status and exit")
	normalizeFlagDashes()
	flag.Parse()

	// Load .env early so SINGLEINSTANCE_PORT_* apply before any delegation scan
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logutil.Setup(cfg.EnableFileLogging)

	if *statusFlag {
		runStatus()
		return
	}

	// If a resident already holds the activation token, hand it the open
	// request and exit. Otherwise become the resident ourselves.
	ctx := context.Background()
	client := singleinstance.NewClient()
	if delegated, err := client.TryOpen(ctx); err != nil {
		log.Printf("Delegation error: %v; starting standalone", err)
	} else if delegated {
		fmt.Println("Delegated to running instance")
		return
	}
	if *openFlag {
		log.Printf("No resident detected, starting one with an initial open")
	}

	if cfg.APIKey == "" {
		notify.ShowBlockingError("Configuration error",
			fmt.Sprintf("GEMINI_API_KEY is required. Set it in your .env file or point %s at a key file.", config.APIKeyPathEnvVar))
		os.Exit(1)
	}

	recognition.Init(&recognition.Config{
		APIKey: cfg.APIKey,
		Model:  cfg.Model,
	})
	if err := recognition.Ping(ctx); err != nil {
		notify.ShowBlockingError("Recognition service unavailable",
			fmt.Sprintf("Startup check failed: %v\n\nPlease verify your API key and network connectivity.", err))
		os.Exit(1)
	}
	log.Printf("Recognition ping succeeded")

	if err := clipboard.Init(); err != nil {
		log.Fatalf("Failed to initialize clipboard: %v", err)
	}

	canvasSize := display.CanvasSize()
	log.Printf("Ink2TeX initialized")
	log.Printf("Using model: %s (key %s)", cfg.Model, logutil.RedactKey(cfg.APIKey))
	log.Printf("Hotkey: %s, canvas %dx%d, convert deadline %ds",
		cfg.Hotkey, canvasSize.X, canvasSize.Y, cfg.ConvertDeadlineSec)

	pool := worker.New(1, recognition.Recognize)
	defer pool.Close()

	tooltip := fmt.Sprintf("Ink2TeX - Press %s to draw", cfg.Hotkey)
	loop := eventloop.New(eventloop.Config{
		Session: session.Config{
			CanvasSize: canvasSize,
			Crop: crop.Options{
				Padding:     cfg.CropPadding,
				MinSize:     cfg.MinCropSize,
				StrokeWidth: cfg.StrokeWidth,
			},
			Deadline:          time.Duration(cfg.ConvertDeadlineSec) * time.Second,
			ResumeAfterResult: cfg.ResumeAfterResult,
		},
		Runner:         pool,
		Clipboard:      clipboard.Writer{},
		Notifier:       notify.Adapter{},
		Surface:        logSurface{},
		Preview:        logPreview{},
		ServiceOK:      serviceReachable,
		DefaultTooltip: tooltip,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	trayIcon, _ := tray.New(tray.Config{
		Title:       "Ink2TeX",
		Tooltip:     tooltip,
		OnOpen:      func() { loop.Post(eventloop.OpenRequested{}) },
		Status:      queryOwnStatus,
		StatusShown: notify.ShowMessage,
		OnExit:      cancel,
	})
	go trayIcon.Run()
	defer trayIcon.Destroy()

	loop.StartHotkey(cfg.Hotkey)

	if *openFlag {
		loop.Post(eventloop.OpenRequested{})
	}

	// Handle SIGINT/SIGTERM
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	if err := loop.Run(runCtx); err != nil {
		if err == context.Canceled {
			return
		}
		if delegated, derr := client.TryOpen(ctx); derr == nil && delegated {
			// Lost the startup race to another instance.
			fmt.Println("Delegated to running instance")
			return
		}
		log.Printf("event loop stopped: %v", err)
		os.Exit(1)
	}
}

// runStatus asks the resident for its status line.
func runStatus() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	status, found, err := singleinstance.NewClient().QueryStatus(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status query failed: %v\n", err)
		os.Exit(1)
	}
	if !found {
		fmt.Println("not running")
		os.Exit(1)
	}
	fmt.Println(status)
}

// serviceReachable answers the status query's service probe.
func serviceReachable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return recognition.Ping(ctx) == nil
}

// queryOwnStatus is used by the tray menu; it loops back through the resident
// protocol so session state is read on the interaction goroutine.
func queryOwnStatus() string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	status, found, err := singleinstance.NewClient().QueryStatus(ctx)
	if err != nil || !found {
		return "status unavailable"
	}
	return status
}
