package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/leonardcser/entity-cache/internal/cache"
	"github.com/leonardcser/entity-cache/internal/logger"
)

type handlerFunc = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// CacheStatsHandler lists every cached type with its record count, followed
// by the types registered for persistence.
func CacheStatsHandler(m *cache.Manager) handlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var sb strings.Builder
		types := m.Types()
		if len(types) == 0 {
			sb.WriteString("Cache is empty.\n")
		}
		for _, t := range types {
			fmt.Fprintf(&sb, "%s: %d\n", t, m.Len(t))
		}
		if reg := m.Registered(); len(reg) > 0 {
			sb.WriteString("\nPersisted types:\n")
			for _, t := range reg {
				sb.WriteString("- ")
				sb.WriteString(t)
				sb.WriteString("\n")
			}
		}
		return mcp.NewToolResultText(strings.TrimRight(sb.String(), "\n")), nil
	}
}

// CacheGetHandler returns one record as JSON. Without an id it lists the
// ids stored for the type.
func CacheGetHandler(m *cache.Manager) handlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		typeID, err := req.RequireString("type")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		id := req.GetString("id", "")
		if id == "" {
			infos := m.Records(typeID)
			if len(infos) == 0 {
				return mcp.NewToolResultError("no records of type " + typeID), nil
			}
			var sb strings.Builder
			for _, info := range infos {
				fmt.Fprintf(&sb, "%s (stored %s)\n", info.ID, info.LastUpdated.Format(time.RFC3339))
			}
			return mcp.NewToolResultText(strings.TrimRight(sb.String(), "\n")), nil
		}

		raw, info, ok, err := m.Lookup(typeID, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("no %s record with id %q", typeID, id)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("stored %s\n%s", info.LastUpdated.Format(time.RFC3339), raw)), nil
	}
}

// CacheExpireHandler removes one record.
func CacheExpireHandler(m *cache.Manager) handlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		typeID, err := req.RequireString("type")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !m.ExpireID(typeID, id) {
			return mcp.NewToolResultText(fmt.Sprintf("No %s record with id %q.", typeID, id)), nil
		}
		logger.Infof("expired %s %q", typeID, id)
		return mcp.NewToolResultText(fmt.Sprintf("Expired %s %q.", typeID, id)), nil
	}
}

// CacheFlushHandler removes every record older than the given number of
// seconds; zero flushes everything stored up to now.
func CacheFlushHandler(m *cache.Manager) handlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		seconds := req.GetFloat("older_than_seconds", 0)
		if seconds < 0 {
			return mcp.NewToolResultError("older_than_seconds must not be negative"), nil
		}
		cutoff := m.Now().Add(-time.Duration(seconds * float64(time.Second)))
		n := m.FlushRecords(cutoff)
		logger.Infof("flushed %d records stored before %s", n, cutoff.Format(time.RFC3339))
		return mcp.NewToolResultText(fmt.Sprintf("Flushed %d records.", n)), nil
	}
}

// CacheSaveHandler writes every persisted type to the backend.
func CacheSaveHandler(m *cache.Manager) handlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := m.Save(); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Saved %d types.", len(m.Registered()))), nil
	}
}

// CacheClearHandler empties the cache and deletes every persisted type.
func CacheClearHandler(m *cache.Manager) handlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := m.Clear(); err != nil {
			var clearErr *cache.ClearError
			if errors.As(err, &clearErr) {
				return mcp.NewToolResultError("Cache emptied, but persisted data remains for: " +
					strings.Join(clearErr.TypeIDs(), ", ")), nil
			}
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("Cache cleared."), nil
	}
}
