package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"embymerge/internal/config"
	"embymerge/internal/emby"
)

// CheckEmby verifies that the Emby server is reachable and accepts the API key.
// It uses a 10-second timeout and a single attempt.
func CheckEmby(ctx context.Context, cfg *config.Config) Result {
	const name = "Emby"

	if strings.TrimSpace(cfg.Emby.BaseURL) == "" {
		return Result{Name: name, Detail: "missing base url"}
	}
	if strings.TrimSpace(cfg.Emby.APIKey) == "" {
		return Result{Name: name, Detail: "missing api key"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	info, err := emby.NewFromConfig(cfg).SystemInfo(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeEmbyError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s %s reachable", info.ServerName, info.Version)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckNtfyTopic validates the notification topic URL without publishing.
func CheckNtfyTopic(topic string) Result {
	const name = "ntfy"

	parsed, err := url.Parse(strings.TrimSpace(topic))
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return Result{Name: name, Detail: fmt.Sprintf("invalid topic url %q", topic)}
	}
	return Result{Name: name, Passed: true, Detail: parsed.Host + parsed.Path}
}

func summarizeEmbyError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (Emby unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (Emby unreachable)"
	}
	if strings.Contains(err.Error(), "returned 401") {
		return "auth failed (invalid api key)"
	}
	return err.Error()
}
