package preflight

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-redis/redis"
	"golang.org/x/sys/unix"

	"lbfeed/internal/config"
)

const endpointTimeout = 5 * time.Second

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

// CheckStore verifies the configured store backend without opening it, so
// it is safe to run while the daemon holds the store.
func CheckStore(ctx context.Context, cfg *config.Config) Result {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		return CheckRedis(ctx, cfg.Store.RedisAddr, cfg.Store.RedisDB)
	default:
		dir := CheckDirectoryAccess("Release store", filepath.Dir(cfg.Store.SQLitePath))
		if !dir.Passed {
			return dir
		}
		return Result{Name: "Release store", Passed: true, Detail: fmt.Sprintf("sqlite %s", cfg.Store.SQLitePath)}
	}
}

// CheckRedis pings the Redis server at addr.
func CheckRedis(ctx context.Context, addr string, db int) Result {
	const name = "Release store"

	addr = strings.TrimSpace(addr)
	if addr == "" {
		return Result{Name: name, Detail: "redis (missing address)"}
	}
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DB:          db,
		DialTimeout: endpointTimeout,
		ReadTimeout: endpointTimeout,
	}).WithContext(ctx)
	defer client.Close()

	if err := client.Ping().Err(); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("redis %s (error: %v)", addr, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("redis %s (ping ok)", addr)}
}

// CheckEndpoint reports whether baseURL answers HTTP at all. Any response
// below 500 counts as reachable; the APIs reject bare base URLs with 4xx.
func CheckEndpoint(ctx context.Context, name, baseURL, userAgent string) Result {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		return Result{Name: name, Detail: "missing base url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, endpointTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid base url (%v)", err)}
	}
	if ua := strings.TrimSpace(userAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	client := &http.Client{Timeout: endpointTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("unreachable (%v)", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("%s answered %d", base, resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", base)}
}
