// Package main provides a standalone health check command for MacroCart.
// It backs Docker HEALTHCHECK directives, monitoring scripts, and debugging.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/macrocart/v2/internal/infrastructure/config"
	"github.com/macrocart/v2/pkg/healthcheck"
	"github.com/macrocart/v2/pkg/logger"
)

const (
	exitCodeSuccess = 0
	exitCodeFailure = 1
	exitCodeError   = 2
)

// options holds command-line configuration
type options struct {
	URL            string
	Timeout        time.Duration
	Verbose        bool
	OutputFormat   string
	ExpectedStatus string
	RetryCount     int
	RetryDelay     time.Duration
	ConfigPath     string
	LocalCheck     bool
}

func main() {
	opts := parseFlags()

	if opts.LocalCheck {
		os.Exit(runLocalHealthCheck(opts))
	}
	os.Exit(runRemoteHealthCheck(opts))
}

// parseFlags parses command-line flags
func parseFlags() options {
	opts := options{}

	flag.StringVar(&opts.URL, "url", "", "Health check endpoint URL (e.g., http://localhost:8080/health)")
	flag.DurationVar(&opts.Timeout, "timeout", 10*time.Second, "Request timeout")
	flag.BoolVar(&opts.Verbose, "verbose", false, "Verbose output")
	flag.StringVar(&opts.OutputFormat, "format", "text", "Output format: text, json, compact")
	flag.StringVar(&opts.ExpectedStatus, "expect", "healthy", "Expected status: healthy, degraded, unhealthy")
	flag.IntVar(&opts.RetryCount, "retry", 0, "Number of retries on failure")
	flag.DurationVar(&opts.RetryDelay, "retry-delay", 1*time.Second, "Delay between retries")
	flag.StringVar(&opts.ConfigPath, "config", "", "Configuration file path")
	flag.BoolVar(&opts.LocalCheck, "local", false, "Perform local health check instead of HTTP request")

	flag.Parse()

	if opts.URL == "" && !opts.LocalCheck {
		opts.URL = detectHealthCheckURL()
	}

	return opts
}

// detectHealthCheckURL attempts to detect the health check URL
func detectHealthCheckURL() string {
	if url := os.Getenv("MACROCART_HEALTH_URL"); url != "" {
		return url
	}

	commonURLs := []string{
		"http://localhost:8080/health",
		"http://127.0.0.1:8080/health",
	}

	for _, url := range commonURLs {
		if checkURLReachable(url) {
			return url
		}
	}

	return "http://localhost:8080/health"
}

// checkURLReachable checks if a URL is reachable
func checkURLReachable(url string) bool {
	client := &http.Client{Timeout: 1 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// runRemoteHealthCheck performs a remote health check via HTTP
func runRemoteHealthCheck(opts options) int {
	client := &http.Client{Timeout: opts.Timeout}

	var lastError error
	for attempt := 0; attempt <= opts.RetryCount; attempt++ {
		if attempt > 0 {
			if opts.Verbose {
				fmt.Printf("Retrying in %v... (attempt %d/%d)\n", opts.RetryDelay, attempt, opts.RetryCount)
			}
			time.Sleep(opts.RetryDelay)
		}

		resp, err := client.Get(opts.URL)
		if err != nil {
			lastError = err
			if opts.Verbose {
				fmt.Printf("Request failed: %v\n", err)
			}
			continue
		}

		return handleResponse(resp, opts)
	}

	fmt.Printf("Health check failed after %d attempts: %v\n", opts.RetryCount+1, lastError)
	return exitCodeError
}

// runLocalHealthCheck builds the health registry in-process and runs it once.
// Only the system probe is registered; dependency probes need the running
// server and belong to the remote mode.
func runLocalHealthCheck(opts options) int {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		return exitCodeError
	}

	log, err := logger.New(logger.Config{
		Level:       "error",
		Format:      "json",
		Development: cfg.App.Debug,
	})
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		return exitCodeError
	}

	hc := healthcheck.New(cfg.App.Version, log)
	hc.Register("system", healthcheck.NewCustomChecker("system", func(ctx context.Context) (healthcheck.Status, string, interface{}) {
		return healthcheck.StatusHealthy, "System operational", map[string]interface{}{
			"service": cfg.App.Name,
			"version": cfg.App.Version,
		}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	response := hc.Check(ctx)
	return outputResult(response, opts)
}

// handleResponse handles the HTTP response
func handleResponse(resp *http.Response, opts options) int {
	defer resp.Body.Close()

	var response healthcheck.Response
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		fmt.Printf("Failed to decode response: %v\n", err)
		return exitCodeError
	}

	return outputResult(response, opts)
}

// outputResult prints the response in the configured format and maps the
// status to an exit code.
func outputResult(response healthcheck.Response, opts options) int {
	switch opts.OutputFormat {
	case "json":
		data, _ := json.MarshalIndent(response, "", "  ")
		fmt.Println(string(data))
	case "compact":
		data, _ := json.Marshal(response)
		fmt.Println(string(data))
	default: // text
		outputText(response, opts.Verbose)
	}

	expected := healthcheck.Status(opts.ExpectedStatus)
	if response.Status == expected {
		return exitCodeSuccess
	}

	if response.Status == healthcheck.StatusUnhealthy {
		return exitCodeFailure
	}

	if response.Status == healthcheck.StatusDegraded && expected == healthcheck.StatusHealthy {
		return exitCodeFailure
	}

	return exitCodeSuccess
}

// outputText outputs the result in text format
func outputText(response healthcheck.Response, verbose bool) {
	fmt.Printf("Status: %s\n", response.Status)
	fmt.Printf("Version: %s\n", response.Version)
	fmt.Printf("Timestamp: %s\n", response.Timestamp.Format(time.RFC3339))
	fmt.Printf("Duration: %dms\n", response.TotalDuration.Milliseconds())

	if verbose && len(response.Checks) > 0 {
		fmt.Println("\nChecks:")
		for _, check := range response.Checks {
			fmt.Printf("  %s: %s", check.Name, check.Status)
			if check.Message != "" {
				fmt.Printf(" (%s)", check.Message)
			}
			fmt.Printf(" [%dms]\n", check.Duration.Milliseconds())
		}
	}
}
