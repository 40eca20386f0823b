//go:build !ignore_app
// +build !ignore_app

package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gen2brain/beeep"
	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/darinpp/toshy/hyprland"
	"github.com/darinpp/toshy/internal/common"
	"github.com/darinpp/toshy/kwin"
	"github.com/darinpp/toshy/notifier"
	"github.com/darinpp/toshy/postgres"
	"github.com/darinpp/toshy/sqlite"
	"github.com/darinpp/toshy/webhook"
	"github.com/darinpp/toshy/x11"
)

// Supported window system backends
const (
	backendAuto     = "auto"
	backendKwin     = "kwin"
	backendX11      = "x11"
	backendHyprland = "hyprland"
)

// Supported journal backends
const (
	journalNone     = "none"
	journalSqlite   = "sqlite"
	journalPostgres = "postgres"
)

// Daemon defaults
const (
	defaultPollInterval = 1000 * time.Millisecond
	defaultIgnorePath   = ".toshy-ignore"

	// How long the one-shot mode waits for the KWin bridge script
	// to report the current window.
	oneShotTimeout = 3 * time.Second
)

// Global variables for configuration
var (
	debugMode   bool
	verboseMode bool

	// Color functions for different log levels
	colorDebug   = color.New(color.FgCyan).SprintfFunc()
	colorVerbose = color.New(color.FgBlue).SprintfFunc()
	colorInfo    = color.New(color.FgGreen).SprintfFunc()
	colorError   = color.New(color.FgRed, color.Bold).SprintfFunc()
	colorWarning = color.New(color.FgYellow).SprintfFunc()
	colorSuccess = color.New(color.FgGreen, color.Bold).SprintfFunc()
	colorKey     = color.New(color.FgMagenta).SprintfFunc()
	colorValue   = color.New(color.FgWhite, color.Bold).SprintfFunc()
)

// debugLog prints debug messages if debug mode is enabled
func debugLog(format string, args ...interface{}) {
	if debugMode {
		log.Printf(colorDebug("[DEBUG] "+format, args...))
	}
}

// verboseLog prints verbose messages if verbose mode is enabled
func verboseLog(format string, args ...interface{}) {
	if verboseMode || debugMode {
		log.Printf(colorVerbose("[VERBOSE] "+format, args...))
	}
}

// infoLog prints info messages (always shown)
func infoLog(format string, args ...interface{}) {
	log.Printf(colorInfo("[INFO] "+format, args...))
}

// errorLog prints error messages (always shown)
func errorLog(format string, args ...interface{}) {
	log.Printf(colorError("[ERROR] "+format, args...))
}

// warningLog prints warning messages (always shown)
func warningLog(format string, args ...interface{}) {
	log.Printf(colorWarning("[WARNING] "+format, args...))
}

// successLog prints success messages (always shown)
func successLog(format string, args ...interface{}) {
	log.Printf(colorSuccess("[SUCCESS] "+format, args...))
}

// windowWatcher is the surface shared by the kwin, x11, and hyprland
// watchers. Each delivers *notifier.Window values over Events; nil means
// the host reported no active window.
type windowWatcher interface {
	Start() error
	Events() <-chan *notifier.Window
	Close() error
}

// journalClient is the surface shared by the sqlite and postgres journals.
type journalClient interface {
	SubmitActivation(common.Activation) error
	GetRecent(limit int) ([]common.Activation, error)
	Close() error
}

// detectBackend picks the window system backend for the current session.
// Hyprland is checked first because it also sets WAYLAND_DISPLAY, then
// KWin on the session bus, then plain X11.
func detectBackend() (string, error) {
	if hyprland.Available() {
		return backendHyprland, nil
	}
	if kwin.Available() {
		return backendKwin, nil
	}
	if x11.Available() {
		return backendX11, nil
	}
	return "", fmt.Errorf("no supported window system detected\n\nTroubleshooting:\n  1. On KDE Plasma, make sure KWin is running (org.kde.KWin on the session bus)\n  2. On Hyprland, HYPRLAND_INSTANCE_SIGNATURE must be set\n  3. On X11, DISPLAY must be set\n  4. Force a backend with -backend kwin|x11|hyprland")
}

// newWatcher builds the watcher for the requested backend, resolving
// "auto" first. Returns the watcher and the resolved backend name.
func newWatcher(backendName string, interval time.Duration, resident bool) (windowWatcher, string, error) {
	resolved := backendName
	if resolved == backendAuto {
		detected, err := detectBackend()
		if err != nil {
			return nil, "", err
		}
		resolved = detected
		verboseLog("Auto-detected backend: %s", resolved)
	}

	switch resolved {
	case backendKwin:
		watcher, err := kwin.NewWatcher()
		if err != nil {
			return nil, "", err
		}
		watcher.Resident = resident
		watcher.DebugMode = debugMode
		return watcher, resolved, nil
	case backendX11:
		watcher, err := x11.NewWatcher(interval)
		if err != nil {
			return nil, "", err
		}
		watcher.DebugMode = debugMode
		return watcher, resolved, nil
	case backendHyprland:
		watcher, err := hyprland.NewWatcher()
		if err != nil {
			return nil, "", err
		}
		watcher.DebugMode = debugMode
		return watcher, resolved, nil
	}
	return nil, "", fmt.Errorf("unknown backend: %s (expected auto, kwin, x11, or hyprland)", resolved)
}

// openJournal builds the journal client for the requested kind.
// Kind "none" yields a nil client.
func openJournal(kind, sqlitePath, postgresConn string) (journalClient, error) {
	switch kind {
	case journalNone:
		return nil, nil
	case journalSqlite:
		client, err := sqlite.NewClient(sqlitePath)
		if err != nil {
			return nil, err
		}
		client.DebugMode = debugMode
		return client, nil
	case journalPostgres:
		client, err := postgres.NewClient(postgresConn)
		if err != nil {
			return nil, err
		}
		client.DebugMode = debugMode
		return client, nil
	}
	return nil, fmt.Errorf("unknown journal backend: %s (expected none, sqlite, or postgres)", kind)
}

// receiverPresent reports whether the notification receiver currently
// owns its name on the session bus.
func receiverPresent() (bool, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return false, fmt.Errorf("failed to connect to session bus: %v", err)
	}
	defer conn.Close()

	var hasOwner bool
	err = conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, common.DbusDestination).Store(&hasOwner)
	if err != nil {
		return false, fmt.Errorf("failed to query name owner: %v", err)
	}
	return hasOwner, nil
}

// loadIgnoreList reads the ignored-applications file. A missing file is
// not an error: filtering is off until the user creates one.
func loadIgnoreList(path string) (map[string]bool, error) {
	ignored := make(map[string]bool)

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ignored, nil
		}
		return ignored, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ignored[line] = true
		debugLog("Loaded ignored application: %s", line)
	}

	return ignored, scanner.Err()
}

func formatWindowOutput(caption, resourceClass string) string {
	if resourceClass != "" && resourceClass != common.AttrUndefined {
		return fmt.Sprintf("%s: %s %s",
			colorKey("Active Window"),
			colorValue(caption),
			color.HiBlackString("(%s)", resourceClass))
	}
	return fmt.Sprintf("%s: %s",
		colorKey("Active Window"),
		colorValue(caption))
}

// currentWindow reads the active window once from the given backend.
func currentWindow(backendName string, interval time.Duration) (*notifier.Window, error) {
	switch backendName {
	case backendHyprland:
		return hyprland.Current()
	case backendX11:
		watcher, err := x11.NewWatcher(interval)
		if err != nil {
			return nil, err
		}
		defer watcher.Close()
		return watcher.Current()
	case backendKwin:
		// The bridge script reports the active window as soon as it
		// loads, so start a transient watcher and take the first event.
		watcher, err := kwin.NewWatcher()
		if err != nil {
			return nil, err
		}
		watcher.DebugMode = debugMode
		defer watcher.Close()
		if err := watcher.Start(); err != nil {
			return nil, err
		}
		select {
		case window := <-watcher.Events():
			return window, nil
		case <-time.After(oneShotTimeout):
			return nil, fmt.Errorf("timed out waiting for the KWin bridge script to report the active window")
		}
	}
	return nil, fmt.Errorf("unknown backend: %s (expected auto, kwin, x11, or hyprland)", backendName)
}

func printCurrentWindow(backendName string, interval time.Duration) error {
	window, err := currentWindow(backendName, interval)
	if err != nil {
		return err
	}
	if window == nil {
		color.Yellow("No active window.")
		return nil
	}
	caption, resourceClass, _ := window.Fields()
	fmt.Println(formatWindowOutput(caption, resourceClass))
	return nil
}

// printActivationHistory prints the most recent journal rows, newest first.
func printActivationHistory(journal journalClient, limit int) error {
	activations, err := journal.GetRecent(limit)
	if err != nil {
		return err
	}

	color.New(color.FgCyan, color.Bold).Println("\n=== Recent Activations ===")
	if len(activations) == 0 {
		color.Yellow("No activations recorded.")
		return nil
	}

	for _, activation := range activations {
		fmt.Printf("%s  %s %s %s\n",
			color.HiBlackString(activation.OccurredAt.Format("2006-01-02 15:04:05")),
			colorValue(activation.Caption),
			color.HiBlackString("(%s)", activation.ResourceClass),
			colorKey("[%s]", activation.Backend))
	}
	return nil
}

// validateConfiguration checks critical configuration before starting
func validateConfiguration(backendName, journalKind string, interval time.Duration) error {
	switch backendName {
	case backendAuto, backendKwin, backendX11, backendHyprland:
	default:
		return fmt.Errorf("unknown backend: %s (expected auto, kwin, x11, or hyprland)", backendName)
	}

	switch journalKind {
	case journalNone, journalSqlite, journalPostgres:
	default:
		return fmt.Errorf("unknown journal backend: %s (expected none, sqlite, or postgres)", journalKind)
	}

	// Validate poll interval
	if interval < 50*time.Millisecond {
		return fmt.Errorf("poll interval too short (minimum 50ms), got %v", interval)
	}
	if interval > 5*time.Second {
		warningLog("Poll interval %v is unusually long, may miss window changes", interval)
	}

	// Check environment
	if os.Getenv("WAYLAND_DISPLAY") == "" && os.Getenv("DISPLAY") == "" {
		return fmt.Errorf("no graphical display found (neither WAYLAND_DISPLAY nor DISPLAY set)\nMake sure you're running this in a graphical session")
	}

	return nil
}

// handleActivation runs the fan-out for one activation event. The D-Bus
// dispatch is the only required step; journal and webhook are side
// consumers whose failures never reach it.
func handleActivation(n *notifier.Notifier, window *notifier.Window, backendName string, journal journalClient, webhookClient *webhook.Client, ignored map[string]bool) {
	if window == nil {
		n.OnWindowActivated(nil)
		return
	}

	caption, resourceClass, resourceName := window.Fields()
	if ignored[resourceClass] {
		verboseLog("Ignoring application: %s", resourceClass)
		return
	}

	n.OnWindowActivated(window)
	verboseLog("Window activated: %s (%s)", caption, resourceClass)

	if journal == nil && webhookClient == nil {
		return
	}

	activation := common.Activation{
		EventID:       uuid.New().String(),
		OccurredAt:    time.Now(),
		Backend:       backendName,
		Caption:       caption,
		ResourceClass: resourceClass,
		ResourceName:  resourceName,
	}

	if journal != nil {
		if err := journal.SubmitActivation(activation); err != nil {
			errorLog("Failed to journal activation: %v", err)
		}
	}
	if webhookClient != nil {
		// Webhook delivery retries with backoff; keep it off the
		// event loop so a slow endpoint cannot delay dispatches.
		go func() {
			if err := webhookClient.SubmitActivation(activation); err != nil {
				errorLog("Failed to mirror activation to webhook: %v", err)
			}
		}()
	}
}

func monitorActivations(watcher windowWatcher, backendName string, n *notifier.Notifier, journal journalClient, webhookClient *webhook.Client, ignored map[string]bool, desktopNotify bool) {
	// Add panic recovery to prevent crashes
	defer func() {
		if r := recover(); r != nil {
			errorLog("PANIC recovered in monitorActivations: %v", r)
		}
	}()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sigChan:
			color.Yellow("\nShutting down activation notifier...")
			infoLog("Received shutdown signal")
			if desktopNotify {
				if err := beeep.Notify("Toshy notifier", "Stopped forwarding window activations", ""); err != nil {
					debugLog("Desktop notification failed: %v", err)
				}
			}
			return

		case window := <-watcher.Events():
			handleActivation(n, window, backendName, journal, webhookClient, ignored)
		}
	}
}

func main() {
	// Command line flags
	watch := flag.Bool("watch", false, "Continuously watch for window activations and forward them over D-Bus")
	backendFlag := flag.String("backend", backendAuto, "Window system backend: auto, kwin, x11, or hyprland")
	interval := flag.Duration("interval", defaultPollInterval, "Polling interval for the x11 backend (e.g., 100ms, 1s)")
	kwinResident := flag.Bool("kwin-resident", false, "Use the installed KWin bridge script instead of injecting a transient one")
	journalKind := flag.String("journal", journalNone, "Journal dispatched notifications: none, sqlite, or postgres")
	sqlitePath := flag.String("sqlite", "", "SQLite journal path (default: ~/.local/share/toshy/activations.db)")
	postgresConn := flag.String("postgres", "", "PostgreSQL connection string for the journal")
	webhookURL := flag.String("webhook", "", "Mirror dispatched notifications to this HTTP endpoint")
	ignorePath := flag.String("ignore", defaultIgnorePath, "Path to the ignored-applications file")
	history := flag.Int("history", 0, "Print the N most recent journaled notifications and exit")
	check := flag.Bool("check", false, "Check whether the notification receiver is on the session bus and exit")
	installKwin := flag.Bool("install-kwin-script", false, "Install and enable the KWin bridge script, then exit")
	uninstallKwin := flag.Bool("uninstall-kwin-script", false, "Disable and remove the KWin bridge script, then exit")
	desktopNotify := flag.Bool("desktop-notify", false, "Show desktop notifications for receiver and shutdown status")
	debug := flag.Bool("debug", false, "Enable debug logging")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	envFile := flag.String("env", "", "Load environment variables from this file (default: .env if present)")
	flag.Parse()

	// Set global debug/verbose flags
	debugMode = *debug
	verboseMode = *verbose

	// Configure logging
	log.SetFlags(log.Ldate | log.Ltime)
	if debugMode {
		log.SetPrefix("[toshy] ")
		debugLog("Debug mode enabled")
	}

	// Load environment configuration
	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			errorLog("Failed to load %s: %v", *envFile, err)
			os.Exit(1)
		}
		debugLog("Loaded environment from %s", *envFile)
	} else if err := godotenv.Load(); err == nil {
		debugLog("Loaded environment from .env")
	}

	// One-shot modes that need no window system
	if *installKwin {
		if err := kwin.InstallScript(); err != nil {
			errorLog("Failed to install KWin script: %v", err)
			os.Exit(1)
		}
		successLog("KWin bridge script installed and enabled")
		return
	}
	if *uninstallKwin {
		if err := kwin.UninstallScript(); err != nil {
			errorLog("Failed to uninstall KWin script: %v", err)
			os.Exit(1)
		}
		successLog("KWin bridge script removed")
		return
	}
	if *check {
		present, err := receiverPresent()
		if err != nil {
			errorLog("Receiver check failed: %v", err)
			os.Exit(1)
		}
		if !present {
			warningLog("%s is not on the session bus; notifications will go nowhere until it appears", common.DbusDestination)
			os.Exit(1)
		}
		successLog("Receiver %s is present on the session bus", common.DbusDestination)
		return
	}
	if *history > 0 {
		kind := *journalKind
		if kind == journalNone {
			// Reading history without an explicit journal falls back
			// to the default sqlite file.
			kind = journalSqlite
		}
		journal, err := openJournal(kind, *sqlitePath, *postgresConn)
		if err != nil {
			errorLog("Failed to open journal: %v", err)
			os.Exit(1)
		}
		defer journal.Close()
		if err := printActivationHistory(journal, *history); err != nil {
			errorLog("Failed to read journal: %v", err)
			os.Exit(1)
		}
		return
	}

	// Validate configuration before touching the window system
	if err := validateConfiguration(*backendFlag, *journalKind, *interval); err != nil {
		errorLog("Configuration validation failed: %v", err)
		os.Exit(1)
	}

	if !*watch {
		// Single execution mode
		backendName := *backendFlag
		if backendName == backendAuto {
			detected, err := detectBackend()
			if err != nil {
				errorLog("%v", err)
				os.Exit(1)
			}
			backendName = detected
		}
		if err := printCurrentWindow(backendName, *interval); err != nil {
			errorLog("Error getting window info: %v", err)
			os.Exit(1)
		}
		return
	}

	// Daemon mode
	watcher, backendName, err := newWatcher(*backendFlag, *interval, *kwinResident)
	if err != nil {
		errorLog("Failed to initialize watcher: %v", err)
		os.Exit(1)
	}
	defer watcher.Close()

	n, err := notifier.NewNotifier()
	if err != nil {
		errorLog("Failed to connect to session bus: %v", err)
		os.Exit(1)
	}
	n.DebugMode = debugMode
	defer n.Close()

	journal, err := openJournal(*journalKind, *sqlitePath, *postgresConn)
	if err != nil {
		errorLog("Failed to open journal: %v", err)
		os.Exit(1)
	}
	if journal != nil {
		defer journal.Close()
	}

	var webhookClient *webhook.Client
	if *webhookURL != "" || os.Getenv("TOSHY_WEBHOOK_URL") != "" {
		webhookClient, err = webhook.NewClient(*webhookURL)
		if err != nil {
			errorLog("Failed to configure webhook: %v", err)
			os.Exit(1)
		}
		webhookClient.DebugMode = debugMode
	}

	ignored, err := loadIgnoreList(*ignorePath)
	if err != nil {
		warningLog("Failed to load ignore list %s: %v", *ignorePath, err)
	}
	if len(ignored) > 0 {
		verboseLog("Loaded %d ignored applications from %s", len(ignored), *ignorePath)
	}

	// The receiver is optional: dispatches are fire-and-forget and need
	// no one listening. Report its absence once, then carry on.
	if present, err := receiverPresent(); err != nil {
		debugLog("Receiver check failed: %v", err)
	} else if !present {
		warningLog("%s is not on the session bus; notifications will go nowhere until it appears", common.DbusDestination)
		if *desktopNotify {
			if nerr := beeep.Notify("Toshy notifier", common.DbusDestination+" is not on the session bus", ""); nerr != nil {
				debugLog("Desktop notification failed: %v", nerr)
			}
		}
	} else {
		verboseLog("Receiver %s is present on the session bus", common.DbusDestination)
	}

	if err := watcher.Start(); err != nil {
		errorLog("Failed to start %s watcher: %v", backendName, err)
		os.Exit(1)
	}

	infoLog("Forwarding %s window activations to %s. Press Ctrl+C to stop.", backendName, common.DbusDestination)
	monitorActivations(watcher, backendName, n, journal, webhookClient, ignored, *desktopNotify)
}
