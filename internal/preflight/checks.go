package preflight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/sys/unix"

	"clipguard/internal/config"
)

const checkTimeout = 5 * time.Second

// CheckProvider lists a single asset to confirm the API is reachable and the
// token pair is accepted.
func CheckProvider(ctx context.Context, cfg config.Provider) Result {
	const name = "Streaming provider"

	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing base_url"}
	}
	if cfg.TokenID == "" || cfg.TokenSecret == "" {
		return Result{Name: name, Detail: "missing token_id or token_secret"}
	}

	status, err := probe(ctx, http.MethodGet, base+"/assets?limit=1", func(req *http.Request) {
		req.SetBasicAuth(cfg.TokenID, cfg.TokenSecret)
	})
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	switch {
	case status == http.StatusOK:
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (invalid token id or secret)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("auth check failed (%d)", status)}
	}
}

// CheckModeration sends a HEAD request to the moderation endpoint. Only POST
// is meaningful there, so any answer below 500 other than an auth rejection
// counts as reachable.
func CheckModeration(ctx context.Context, endpoint, apiKey string) Result {
	const name = "Moderation service"

	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	status, err := probe(ctx, http.MethodHead, endpoint, func(req *http.Request) {
		if apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}
	})
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (invalid api key)"}
	case status >= 500:
		return Result{Name: name, Detail: fmt.Sprintf("server error (%d)", status)}
	default:
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	}
}

// CheckEvents opens and closes a NATS connection.
func CheckEvents(natsURL string) Result {
	const name = "NATS"

	conn, err := nats.Connect(natsURL,
		nats.Name("clipguard-preflight"),
		nats.Timeout(checkTimeout),
		nats.NoReconnect(),
	)
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	conn.Close()
	return Result{Name: name, Passed: true, Detail: "Connected"}
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

// probe issues a bodyless request and returns the response status.
func probe(ctx context.Context, method, target string, prepare func(*http.Request)) (int, error) {
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, method, target, nil)
	if err != nil {
		return 0, err
	}
	if prepare != nil {
		prepare(req)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	return resp.StatusCode, nil
}

func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out"
	}
	return err.Error()
}
