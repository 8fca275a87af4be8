package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/msedata/msesync/config"
)

// Trigger invokes the external scraper once. Implementations report only
// their own boundary signal (exit code or HTTP status); whether rows
// actually landed is observed by re-reading the watermarks afterwards.
type Trigger interface {
	Run(ctx context.Context) error
}

// NewTrigger builds the trigger for the configured strategy.
func NewTrigger(cfg config.ScraperConfig) (Trigger, error) {
	switch cfg.Mode {
	case config.ScraperModeProcess:
		return &ProcessTrigger{
			Interpreter: cfg.Interpreter,
			ScriptPath:  cfg.ScriptPath,
			WorkDir:     cfg.WorkDir,
		}, nil
	case config.ScraperModeHTTP:
		return &HTTPTrigger{
			URL:    strings.TrimRight(cfg.URL, "/") + "/api/scrape",
			Client: http.DefaultClient,
		}, nil
	default:
		return nil, fmt.Errorf("unknown scraper mode %q", cfg.Mode)
	}
}

// ProcessTrigger spawns the scraper as a local subprocess and waits for it
// to exit. Combined stdout/stderr is logged so scraper output ends up in
// the server log.
type ProcessTrigger struct {
	Interpreter string
	ScriptPath  string
	WorkDir     string
}

func (t *ProcessTrigger) Run(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, t.Interpreter, t.ScriptPath)
	cmd.Dir = t.WorkDir

	output, err := cmd.CombinedOutput()
	if len(output) > 0 {
		logrus.WithField("script", t.ScriptPath).Debug(string(output))
	}
	if ctx.Err() != nil {
		return fmt.Errorf("scraper process timed out: %w", ctx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("scraper process exited with code %d", exitErr.ExitCode())
		}
		return fmt.Errorf("failed to run scraper process: %w", err)
	}
	return nil
}

// HTTPTrigger calls an already-running scraper service.
type HTTPTrigger struct {
	URL    string
	Client *http.Client
}

func (t *HTTPTrigger) Run(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to build scrape request: %w", err)
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("scrape request timed out: %w", ctx.Err())
		}
		return fmt.Errorf("scrape request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("scraper service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if len(body) > 0 {
		logrus.WithField("url", t.URL).Debug(strings.TrimSpace(string(body)))
	}
	return nil
}
