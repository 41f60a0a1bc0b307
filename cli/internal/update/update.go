// Package update checks for newer carton releases.
package update

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/hashicorp/go-version"

	"github.com/carton-db/carton/cli/internal/ui"
)

var releasesURL = "https://api.github.com/repos/carton-db/carton/releases/latest"

// CheckForUpdates compares the running version against the latest
// release and prints a notice when a newer one exists. Network failures
// are silent; an update check must never break the CLI.
func CheckForUpdates(currentVersion string) error {
	current, err := version.NewVersion(currentVersion)
	if err != nil {
		return fmt.Errorf("invalid version format: %w", err)
	}

	latestStr, err := fetchLatest()
	if err != nil {
		return nil
	}
	latest, err := version.NewVersion(latestStr)
	if err != nil {
		return nil
	}

	if current.LessThan(latest) {
		ui.PrintWarning("A new version of carton is available!")
		fmt.Printf("Current version: %s\n", currentVersion)
		fmt.Printf("Latest version:  %s\n", latestStr)
		fmt.Printf("\nUpdate with: go install github.com/carton-db/carton/cli@latest\n")
	}
	return nil
}

func fetchLatest() (string, error) {
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(releasesURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("release lookup returned %s", resp.Status)
	}

	var release struct {
		TagName string `json:"tag_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", err
	}
	return strings.TrimPrefix(release.TagName, "v"), nil
}

// DownloadURL returns the release asset URL for the current platform.
func DownloadURL(ver string) string {
	return fmt.Sprintf("https://github.com/carton-db/carton/releases/download/v%s/carton-%s-%s",
		ver, runtime.GOOS, runtime.GOARCH)
}
