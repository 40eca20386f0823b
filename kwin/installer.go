package kwin

import (
	"archive/zip"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/godbus/dbus/v5"

	"github.com/darinpp/toshy/internal/common"
)

// kdeTool resolves a KDE CLI tool, preferring the Plasma 6 name over the
// Plasma 5 one.
func kdeTool(plasma6, plasma5 string) (string, error) {
	if path, err := exec.LookPath(plasma6); err == nil {
		return path, nil
	}
	if path, err := exec.LookPath(plasma5); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("neither %s nor %s found in PATH", plasma6, plasma5)
}

// PackageScript writes a .kwinscript package (main.js plus metadata.json)
// into dir and returns its path.
func PackageScript(dir string) (string, error) {
	pkgPath := filepath.Join(dir, InstalledScriptName+".kwinscript")

	out, err := os.Create(pkgPath)
	if err != nil {
		return "", fmt.Errorf("failed to create kwinscript package: %v", err)
	}
	defer out.Close()

	archive := zip.NewWriter(out)

	script, err := archive.Create("contents/code/main.js")
	if err != nil {
		return "", fmt.Errorf("failed to add main.js to package: %v", err)
	}
	if _, err := script.Write([]byte(BridgeScript())); err != nil {
		return "", fmt.Errorf("failed to write main.js: %v", err)
	}

	metaBytes, err := ScriptMetadata()
	if err != nil {
		return "", fmt.Errorf("failed to build metadata.json: %v", err)
	}
	meta, err := archive.Create("metadata.json")
	if err != nil {
		return "", fmt.Errorf("failed to add metadata.json to package: %v", err)
	}
	if _, err := meta.Write(metaBytes); err != nil {
		return "", fmt.Errorf("failed to write metadata.json: %v", err)
	}

	if err := archive.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize kwinscript package: %v", err)
	}
	return pkgPath, nil
}

// InstallScript packages the bridge script, installs it as a persistent
// KWin script, enables it in kwinrc and asks KWin to reload its
// configuration. After this KWin loads the bridge at session start and a
// watcher should run with Resident set.
func InstallScript() error {
	packager, err := kdeTool("kpackagetool6", "kpackagetool5")
	if err != nil {
		return fmt.Errorf("KDE package tool not found: %v\n\nInstall the KDE CLI tools (kpackagetool) and retry", err)
	}

	dir, err := os.MkdirTemp("", "toshy-kwinscript-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %v", err)
	}
	defer os.RemoveAll(dir)

	pkgPath, err := PackageScript(dir)
	if err != nil {
		return err
	}

	// Remove any previous install first; a failure here just means none
	// was present.
	exec.Command(packager, "-t", "KWin/Script", "-r", InstalledScriptName).Run()

	if out, err := exec.Command(packager, "-t", "KWin/Script", "-i", pkgPath).CombinedOutput(); err != nil {
		return fmt.Errorf("failed to install KWin script: %v\n%s", err, out)
	}

	if err := setScriptEnabled(true); err != nil {
		return err
	}

	return Reconfigure()
}

// UninstallScript removes the persistent bridge script and disables its
// kwinrc entry.
func UninstallScript() error {
	packager, err := kdeTool("kpackagetool6", "kpackagetool5")
	if err != nil {
		return fmt.Errorf("KDE package tool not found: %v", err)
	}

	if out, err := exec.Command(packager, "-t", "KWin/Script", "-r", InstalledScriptName).CombinedOutput(); err != nil {
		return fmt.Errorf("failed to remove KWin script: %v\n%s", err, out)
	}

	if err := setScriptEnabled(false); err != nil {
		return err
	}

	return Reconfigure()
}

// setScriptEnabled flips the script's Plugins entry in kwinrc.
func setScriptEnabled(enabled bool) error {
	writer, err := kdeTool("kwriteconfig6", "kwriteconfig5")
	if err != nil {
		return fmt.Errorf("KDE config tool not found: %v\n\nInstall the KDE CLI tools (kwriteconfig) and retry", err)
	}

	value := "false"
	if enabled {
		value = "true"
	}

	args := []string{"--file", "kwinrc", "--group", "Plugins", "--key", InstalledScriptName + "Enabled", value}
	if out, err := exec.Command(writer, args...).CombinedOutput(); err != nil {
		return fmt.Errorf("failed to update kwinrc: %v\n%s", err, out)
	}
	return nil
}

// Reconfigure asks the running KWin instance to reload its configuration,
// which picks up newly enabled or disabled scripts.
func Reconfigure() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %v", err)
	}
	defer conn.Close()

	obj := conn.Object(common.KwinDestination, dbus.ObjectPath(common.KwinObjectPath))
	if call := obj.Call(common.KwinReconfigure, 0); call.Err != nil {
		return fmt.Errorf("failed to reconfigure KWin: %v", call.Err)
	}
	return nil
}
