package window

import (
	"net/url"
	"os/exec"
	"runtime"

	"go.uber.org/zap"
)

// IsLocalURL reports whether raw points at the local server.
func IsLocalURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1":
		return true
	default:
		return false
	}
}

// Opener opens URLs outside the launcher.
type Opener interface {
	Open(url string) error
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(url string) error

// Open calls f(url).
func (f OpenerFunc) Open(url string) error {
	return f(url)
}

// SystemOpener opens URLs with the platform's default handler.
type SystemOpener struct{}

// Open starts the platform opener and does not wait for it.
func (SystemOpener) Open(url string) error {
	cmd := openCommand(runtime.GOOS, url)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

func openCommand(goos, url string) *exec.Cmd {
	switch goos {
	case "windows":
		return exec.Command("cmd", "/C", "start", "", url)
	case "darwin":
		return exec.Command("open", url)
	default:
		return exec.Command("xdg-open", url)
	}
}

// NavigationFilter returns a Spec.OnNavigation callback that keeps the
// window on the local server. Any other URL is handed to opener and the
// navigation is cancelled.
func NavigationFilter(opener Opener, logger *zap.Logger) func(string) bool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(target string) bool {
		if IsLocalURL(target) {
			return true
		}
		logger.Info("opening external URL in system browser", zap.String("url", target))
		if err := opener.Open(target); err != nil {
			logger.Warn("failed to open external URL", zap.String("url", target), zap.Error(err))
		}
		return false
	}
}
