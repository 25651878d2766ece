package main

import (
	"context"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/leonardcser/entity-cache/internal/cache"
	"github.com/leonardcser/entity-cache/internal/config"
	"github.com/leonardcser/entity-cache/internal/logger"
	"github.com/leonardcser/entity-cache/internal/storage"
	tools "github.com/leonardcser/entity-cache/internal/tools"
	web "github.com/leonardcser/entity-cache/internal/web"
)

const daemonBinary = "entity-cache-daemon"

func main() {
	if err := logger.InitFromEnv(); err != nil {
		panic(err)
	}
	defer logger.Close()

	logger.Infof("Starting entity cache MCP server")

	cfg, err := config.Load()
	if err != nil {
		logger.Errorf("Invalid configuration: %v", err)
		panic(err)
	}
	if cfg.Backend == config.BackendSocket {
		ensureDaemon(cfg.SocketPath)
	}
	backend, closer, err := config.OpenBackend(cfg)
	if err != nil {
		logger.Errorf("Failed to open %s backend: %v", cfg.Backend, err)
		panic(err)
	}
	defer closer.Close()
	logger.Infof("Using %s backend", cfg.Backend)

	m := cache.New(backend, cache.Options{SaveConcurrency: 3})
	web.Register(m)
	if err := m.Restore(); err != nil {
		// A bad blob should not keep the server down; start cold instead.
		logger.Warnf("Restore failed, starting with an empty cache: %v", err)
		m.Reset()
	}
	for _, t := range m.Types() {
		logger.Infof("Restored %d %s records", m.Len(t), t)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	done := make(chan struct{})
	go saveLoop(ctx, m, cfg.SaveInterval, cfg.MaxTTL(), done)

	fetcher := web.NewFetcher(m, cfg.FetchTTL)
	searcher := web.NewSearcher(m, cfg.SearchTTL)

	s := server.NewMCPServer(
		"Entity Cache",
		"0.1.0",
		server.WithRecovery(),
		server.WithToolCapabilities(false),
	)
	registerTools(s, m, fetcher, searcher, cfg)

	logger.Infof("Starting MCP server on stdio")
	if err := server.ServeStdio(s); err != nil {
		logger.Errorf("server error: %v", err)
	}
	stop()
	<-done
}

// saveLoop flushes records no entity type can use any more and saves the
// cache every interval, and once more when ctx ends.
func saveLoop(ctx context.Context, m *cache.Manager, interval, maxTTL time.Duration, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := m.FlushRecords(m.Now().Add(-maxTTL)); n > 0 {
				logger.Debugf("Flushed %d expired records", n)
			}
			if err := m.Save(); err != nil {
				logger.Warnf("Periodic save failed: %v", err)
			}
		case <-ctx.Done():
			if err := m.Save(); err != nil {
				logger.Errorf("Final save failed: %v", err)
				return
			}
			logger.Infof("Saved cache on shutdown")
			return
		}
	}
}

func registerTools(s *server.MCPServer, m *cache.Manager, fetcher *web.Fetcher, searcher *web.Searcher, cfg config.Config) {
	toolFetch := mcp.NewTool("web-fetch",
		mcp.WithDescription(multiline(
			"Fetches content from a specified URL and returns the parsed content",
			"\nFunctionality:",
			"- Takes a URL as input",
			"- Fetches the URL content and parses it",
			"- Returns the structured content including title, description, text, and links",
			"\nUsage notes:",
			"- The URL must be a fully-formed valid URL",
			"- This tool is read-only and does not modify any files",
			"- Pages are cached for "+cfg.FetchTTL.String()+"; fetching a page also refreshes matching cached search results",
			"- When a URL redirects, the final URL is reported first",
		)),
		mcp.WithString("url", mcp.Required(), mcp.Description("The URL to fetch content from")),
	)
	s.AddTool(toolFetch, tools.WebFetchHandler(fetcher))

	toolSearch := mcp.NewTool("web-search",
		mcp.WithDescription(multiline(
			"Allows you to search the web and use the results to inform responses",
			"\nFunctionality:",
			"- Provides up-to-date information for current events and recent data",
			"- Returns search result information formatted as search result blocks",
			"\nUsage notes:",
			"- Searches are cached for "+cfg.SearchTTL.String(),
		)),
		mcp.WithString("query", mcp.Required(), mcp.Description("The search query to use")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (1-20, default 10)")),
	)
	s.AddTool(toolSearch, tools.WebSearchHandler(searcher))

	s.AddTool(mcp.NewTool("cache-stats",
		mcp.WithDescription("Lists cached entity types with their record counts and the types persisted across restarts"),
	), tools.CacheStatsHandler(m))

	s.AddTool(mcp.NewTool("cache-get",
		mcp.WithDescription("Shows one cached record as JSON, or lists the ids stored for a type when no id is given"),
		mcp.WithString("type", mcp.Required(), mcp.Description("Entity type identifier, as listed by cache-stats")),
		mcp.WithString("id", mcp.Description("Entity id")),
	), tools.CacheGetHandler(m))

	s.AddTool(mcp.NewTool("cache-expire",
		mcp.WithDescription("Removes one cached record"),
		mcp.WithString("type", mcp.Required(), mcp.Description("Entity type identifier")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entity id")),
	), tools.CacheExpireHandler(m))

	s.AddTool(mcp.NewTool("cache-flush",
		mcp.WithDescription("Removes every cached record older than the given age"),
		mcp.WithNumber("older_than_seconds", mcp.Description("Age in seconds; 0 removes everything")),
	), tools.CacheFlushHandler(m))

	s.AddTool(mcp.NewTool("cache-save",
		mcp.WithDescription("Writes the cache to persistent storage now"),
	), tools.CacheSaveHandler(m))

	s.AddTool(mcp.NewTool("cache-clear",
		mcp.WithDescription("Empties the cache and deletes its persisted copy"),
	), tools.CacheClearHandler(m))

	logger.Infof("Registered web and cache tools")
}

// multiline joins lines with newlines for tool descriptions.
func multiline(lines ...string) string { return strings.Join(lines, "\n") }

// ensureDaemon starts the blob daemon if nothing answers on sock and waits
// for it to come up.
func ensureDaemon(sock string) {
	client := storage.NewClient(sock)
	err := client.Ping()
	if err == nil {
		logger.Infof("Connected to cache daemon at %s", sock)
		return
	}
	logger.Warnf("Failed to connect to cache daemon: %v, attempting to start daemon", err)
	if err := startCacheDaemon(); err != nil {
		logger.Errorf("Failed to start cache daemon: %v", err)
		return
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if client.Ping() == nil {
			logger.Infof("Cache daemon started successfully")
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	logger.Errorf("Cache daemon did not come up at %s; saves will fail until it does", sock)
}

func startCacheDaemon() error {
	candidates := []string{}
	// Binary next to this server executable
	if exePath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exePath), daemonBinary))
	}
	if path, err := exec.LookPath(daemonBinary); err == nil {
		candidates = append(candidates, path)
	}
	candidates = append(candidates, "./"+daemonBinary)

	for _, c := range candidates {
		if _, err := os.Stat(c); err != nil {
			continue
		}
		cmd := exec.Command(c)
		cmd.Stdout = nil
		cmd.Stderr = nil
		cmd.Env = os.Environ()
		return cmd.Start()
	}
	return exec.ErrNotFound
}
