// Command tokage estimates when a TikTok account was created.
//
// Usage:
//
//	tokage charlidamelio
//	tokage https://www.tiktok.com/@charlidamelio
//	tokage -id 3000000000 -name dancer99 -followers 150000   # offline, no fetch
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/tokage/pkg/auth"
	"github.com/codeGROOVE-dev/tokage/pkg/estimate"
	"github.com/codeGROOVE-dev/tokage/pkg/httpcache"
	"github.com/codeGROOVE-dev/tokage/pkg/server"
	"github.com/codeGROOVE-dev/tokage/pkg/tiktok"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging")
	verbose := flag.Bool("v", false, "verbose logging (same as -debug)")
	noBrowser := flag.Bool("no-browser", false, "disable reading cookies from browser stores (enabled by default)")
	noCache := flag.Bool("no-cache", false, "disable HTTP caching (enabled by default with 24-hour TTL)")
	cacheTTL := flag.Duration("cache-ttl", 24*time.Hour, "cache time-to-live")

	// Offline mode: estimate from signals given on the command line.
	userID := flag.String("id", "", "estimate offline from this numeric user ID")
	name := flag.String("name", "", "username for offline estimation")
	followers := flag.Int64("followers", 0, "follower count for offline estimation")
	likes := flag.Int64("likes", 0, "total like count for offline estimation")
	verified := flag.Bool("verified", false, "verified flag for offline estimation")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug || *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	offline := *userID != "" || *name != "" || *followers != 0 || *likes != 0 || *verified
	if err := validateMode(offline, flag.NArg()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		usage()
		os.Exit(1)
	}

	est := estimate.New(estimate.WithLogger(logger))

	if offline {
		res := est.AccountAge(*userID, *name, *followers, *likes, *verified)
		if err := outputJSON(res); err != nil {
			fmt.Fprintf(os.Stderr, "Output error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	input := flag.Arg(0)
	if strings.Contains(input, "://") && !tiktok.Match(input) {
		fmt.Fprintf(os.Stderr, "Error: not a TikTok profile URL: %s\n", input)
		os.Exit(1)
	}

	httpCache := newCache(logger, *noCache, *cacheTTL)
	defer func() {
		if err := httpCache.Close(); err != nil {
			logger.Warn("failed to close cache", "error", err)
		}
	}()

	opts := []tiktok.Option{
		tiktok.WithLogger(logger),
		tiktok.WithHTTPCache(httpCache),
	}
	if !*noBrowser {
		opts = append(opts, tiktok.WithBrowserCookies())
	}

	ctx := context.Background()

	client, err := tiktok.New(ctx, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1) //nolint:gocritic // exitAfterDefer is acceptable in main
	}

	profile, err := client.Fetch(ctx, input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	res := est.AccountAge(profile.UserID, profile.Username, profile.Followers, profile.TotalLikes, profile.Verified)
	if err := outputJSON(server.Render(profile, res, time.Now().UTC())); err != nil {
		fmt.Fprintf(os.Stderr, "Output error: %v\n", err)
		os.Exit(1)
	}
}

// validateMode rejects ambiguous invocations: the offline estimation flags
// and a fetch target are mutually exclusive.
func validateMode(offline bool, args int) error {
	switch {
	case offline && args > 0:
		return errors.New("offline flags (-id, -name, -followers, -likes, -verified) cannot be combined with a username")
	case !offline && args < 1:
		return errors.New("username or URL required")
	default:
		return nil
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: tokage [options] <username-or-url>")
	fmt.Fprintln(os.Stderr, "\nOptions:")
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr, "\nAuthentication is optional. To use a session, set "+strings.Join(auth.EnvVarNames(), ", "))
	fmt.Fprintln(os.Stderr, "or let the tool read cookies from your browser.")
}

// newCache returns the disk-backed cache, falling back to the null cache
// when caching is disabled or the disk cache cannot be created.
func newCache(logger *slog.Logger, noCache bool, ttl time.Duration) *httpcache.Cache {
	if noCache {
		return httpcache.NewNull()
	}
	httpCache, err := httpcache.New(ttl)
	if err != nil {
		logger.Warn("failed to initialize cache, continuing without persistence", "error", err)
		return httpcache.NewNull()
	}
	logger.Debug("HTTP cache initialized", "ttl", ttl.String())
	return httpCache
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
