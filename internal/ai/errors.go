package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"

	"google.golang.org/genai"
)

// HTTPError is a non-2xx answer from a model endpoint.
type HTTPError struct {
	Provider   string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, msg)
}

// ConfigError means the profile cannot be used as configured.
type ConfigError struct {
	Provider string
	Message  string
}

func (e *ConfigError) Error() string { return e.Message }

func statusOf(err error) (int, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode, true
	}
	var ae genai.APIError
	if errors.As(err, &ae) {
		return ae.Code, true
	}
	var aep *genai.APIError
	if errors.As(err, &aep) && aep != nil {
		return aep.Code, true
	}
	return 0, false
}

// Recoverable reports whether retrying the request might succeed.
func Recoverable(err error) bool {
	if err == nil {
		return false
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if code, ok := statusOf(err); ok {
		return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
	}
	var ne net.Error
	return errors.As(err, &ne)
}

func displayName(provider string) string {
	switch provider {
	case ProviderGemini:
		return "Gemini"
	case ProviderOllama:
		return "Ollama"
	case ProviderOpenRouter:
		return "OpenRouter"
	}
	if provider == "" {
		return "the model server"
	}
	return provider
}

// Diagnose turns a backend failure into text a user can act on.
func Diagnose(cfg Config, err error) string {
	name := displayName(cfg.Provider)

	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("The request to %s timed out before a reply arrived. The model may still be loading; try again, "+
			"or pick a smaller model.", name)
	}

	if cfg.Provider == ProviderGemini {
		if _, ok := statusOf(err); ok {
			return "Error communicating with Gemini API. Please check your API key and network connection."
		}
	}

	var he *HTTPError
	if errors.As(err, &he) {
		switch he.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Sprintf("Authentication with %s failed (Status: 401). Check the API key in the profile settings.", name)
		case http.StatusForbidden:
			return fmt.Sprintf("%s refused the request (Status: 403). Check the API key, and if %s runs behind an "+
				"origin allow-list make sure this server's origin is permitted (for Ollama set OLLAMA_ORIGINS, "+
				"e.g. OLLAMA_ORIGINS='*', and restart it).", name, name)
		case http.StatusNotFound:
			return fmt.Sprintf("The %s endpoint was not found (Status: 404) at %s. The base URL is probably wrong: "+
				"use the server root such as http://localhost:11434, without a trailing /api path.", name, he.URL)
		}
		body := strings.TrimSpace(he.Body)
		if body == "" {
			return fmt.Sprintf("%s responded with an error (Status: %d).", name, he.StatusCode)
		}
		return fmt.Sprintf("%s responded with an error (Status: %d):\n%s", name, he.StatusCode, body)
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Sprintf("Connection to %s was refused at %s. Make sure the server is running and the base URL "+
			"is correct.", name, cfg.BaseURL)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Sprintf("Could not resolve the %s host %q. Check the base URL and your network connection.",
			name, dnsErr.Name)
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return fmt.Sprintf("Network error while contacting %s: %v. Check that the server is reachable.", name, err)
	}
	return fmt.Sprintf("An unexpected error occurred while communicating with %s: %v", name, err)
}
