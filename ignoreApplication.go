//go:build ignore_app
// +build ignore_app

package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/darinpp/toshy/hyprland"
	"github.com/darinpp/toshy/kwin"
	"github.com/darinpp/toshy/notifier"
	"github.com/darinpp/toshy/x11"
)

const (
	monitorDuration = 10 * time.Second
	pollInterval    = 500 * time.Millisecond
	ignoreFilePath  = ".toshy-ignore"
)

// SeenApplication tracks when we saw an application
type SeenApplication struct {
	ResourceClass string
	LastSeen      time.Time
	Caption       string
}

// activationSource is the slice of the watcher surface this tool needs.
type activationSource interface {
	Start() error
	Events() <-chan *notifier.Window
	Close() error
}

// openSource picks a backend for the current session and returns its watcher.
func openSource() (activationSource, error) {
	if hyprland.Available() {
		return hyprland.NewWatcher()
	}
	if kwin.Available() {
		return kwin.NewWatcher()
	}
	if x11.Available() {
		return x11.NewWatcher(pollInterval)
	}
	return nil, fmt.Errorf("no supported window system detected")
}

// loadCurrentIgnoreList reads the current ignore list from file
func loadCurrentIgnoreList() map[string]bool {
	ignoredApps := make(map[string]bool)

	file, err := os.Open(ignoreFilePath)
	if err != nil {
		// File doesn't exist yet, that's ok
		return ignoredApps
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ignoredApps[line] = true
	}

	return ignoredApps
}

// saveIgnoreList saves the ignore list to file
func saveIgnoreList(ignoredApps map[string]bool) error {
	file, err := os.Create(ignoreFilePath)
	if err != nil {
		return fmt.Errorf("failed to create ignore file: %v", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	// Write header
	fmt.Fprintln(writer, "# Toshy Ignored Applications")
	fmt.Fprintln(writer, "# One resourceClass per line")
	fmt.Fprintln(writer, "# Lines starting with # are comments")
	fmt.Fprintln(writer, "")

	// Write ignored apps
	for resourceClass := range ignoredApps {
		fmt.Fprintln(writer, resourceClass)
	}

	return writer.Flush()
}

func main() {
	log.SetFlags(0) // No timestamps for this interactive tool

	fmt.Println("=== Toshy Application Ignore Tool ===")
	fmt.Println()
	fmt.Println("This tool will monitor your active windows for the next 10 seconds.")
	fmt.Println("Switch between applications you want to review.")
	fmt.Println()
	fmt.Print("Press Enter to start monitoring...")
	bufio.NewReader(os.Stdin).ReadBytes('\n')

	source, err := openSource()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to the window system.\n")
		fmt.Fprintf(os.Stderr, "Details: %v\n", err)
		os.Exit(1)
	}
	defer source.Close()

	if err := source.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to start watching for activations.\n")
		fmt.Fprintf(os.Stderr, "Details: %v\n", err)
		os.Exit(1)
	}

	// Monitor windows
	fmt.Printf("\nMonitoring for %v...\n", monitorDuration)
	seenApps := make(map[string]*SeenApplication)

	startTime := time.Now()
	deadline := time.After(monitorDuration)

	progressTicker := time.NewTicker(1 * time.Second)
	defer progressTicker.Stop()

	collecting := true
	for collecting {
		select {
		case window := <-source.Events():
			if window == nil || window.ResourceClass == nil || *window.ResourceClass == "" {
				continue
			}

			class := *window.ResourceClass
			if _, exists := seenApps[class]; !exists {
				fmt.Printf("  Found: %s\n", class)
			}
			caption := ""
			if window.Caption != nil {
				caption = *window.Caption
			}
			seenApps[class] = &SeenApplication{
				ResourceClass: class,
				LastSeen:      time.Now(),
				Caption:       caption,
			}

		case <-progressTicker.C:
			elapsed := time.Since(startTime)
			remaining := monitorDuration - elapsed
			fmt.Printf("  %v remaining... (%d apps found)\n", remaining.Round(time.Second), len(seenApps))

		case <-deadline:
			collecting = false
		}
	}

	fmt.Printf("\nFound %d unique applications.\n\n", len(seenApps))

	if len(seenApps) == 0 {
		fmt.Println("No applications detected. Make sure you switched between some windows.")
		os.Exit(0)
	}

	// Load current ignore list
	currentlyIgnored := loadCurrentIgnoreList()

	// Display applications
	fmt.Println("Applications detected:")
	fmt.Println()

	appList := make([]*SeenApplication, 0, len(seenApps))
	for _, app := range seenApps {
		appList = append(appList, app)
	}

	// Sort by last seen (most recent first)
	for i := 0; i < len(appList)-1; i++ {
		for j := i + 1; j < len(appList); j++ {
			if appList[j].LastSeen.After(appList[i].LastSeen) {
				appList[i], appList[j] = appList[j], appList[i]
			}
		}
	}

	// Display numbered list
	for i, app := range appList {
		status := ""
		if currentlyIgnored[app.ResourceClass] {
			status = " [ALREADY IGNORED]"
		}
		fmt.Printf("  %d) %s%s\n", i+1, app.ResourceClass, status)
		if app.Caption != "" {
			fmt.Printf("     Last window: %s\n", app.Caption)
		}
	}

	fmt.Println()
	fmt.Println("Enter the number of the application to ignore (or 0 to cancel):")
	fmt.Print("> ")

	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	choice, err := strconv.Atoi(input)
	if err != nil || choice < 0 || choice > len(appList) {
		fmt.Println("Invalid choice. Exiting.")
		os.Exit(0)
	}

	if choice == 0 {
		fmt.Println("Cancelled.")
		os.Exit(0)
	}

	// Add to ignore list
	selectedApp := appList[choice-1]

	if currentlyIgnored[selectedApp.ResourceClass] {
		fmt.Printf("\n'%s' is already in the ignore list.\n", selectedApp.ResourceClass)
		os.Exit(0)
	}

	currentlyIgnored[selectedApp.ResourceClass] = true

	err = saveIgnoreList(currentlyIgnored)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error saving ignore list: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n✓ Added '%s' to ignore list (%s)\n", selectedApp.ResourceClass, ignoreFilePath)
	fmt.Println()
	fmt.Println("Activations from this application will no longer be forwarded.")
	fmt.Println("Restart the notifier daemon if it's currently running to apply changes.")
}
