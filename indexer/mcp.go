package indexer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/dblpfeeds/idgen"
	"github.com/hazyhaar/dblpfeeds/kit"
)

// RegisterMCP registers indexer tools on an MCP server.
func (ix *Indexer) RegisterMCP(srv *mcp.Server) {
	ix.registerListVenuesTool(srv)
	ix.registerVenueRecordsTool(srv)
	ix.registerStatsTool(srv)
	ix.registerIngestLogTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func (ix *Indexer) register(srv *mcp.Server, tool *mcp.Tool, endpoint kit.Endpoint, decode func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error)) {
	endpoint = kit.Chain(kit.Logging(ix.logger, tool.Name))(endpoint)
	kit.RegisterMCPTool(srv, tool, endpoint, func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		res, err := decode(req)
		if err != nil {
			return nil, err
		}
		res.EnrichCtx = func(ctx context.Context) context.Context {
			return kit.WithRequestID(ctx, idgen.Request())
		}
		return res, nil
	})
}

func decodeInto[T any](req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var r T
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
	}
	return &kit.MCPDecodeResult{Request: &r}, nil
}

// --- list_venues ---

type listVenuesRequest struct {
	Kind string `json:"kind,omitempty"`
}

func (ix *Indexer) registerListVenuesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "dblpfeeds_list_venues",
		Description: "List DBLP venues known to the index, ordered by kind then name.",
		InputSchema: inputSchema(map[string]any{
			"kind": map[string]any{"type": "string", "enum": []any{"conf", "journals"}, "description": "Restrict to one venue kind"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*listVenuesRequest)
		venues, err := ix.Venues(ctx, r.Kind)
		if err != nil {
			return nil, err
		}
		if venues == nil {
			venues = []*Venue{}
		}
		return venues, nil
	}

	ix.register(srv, tool, endpoint, decodeInto[listVenuesRequest])
}

// --- venue_records ---

type venueRecordsRequest struct {
	Venue string `json:"venue"`
	Limit int    `json:"limit,omitempty"`
}

func (ix *Indexer) registerVenueRecordsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "dblpfeeds_venue_records",
		Description: "Most recent records of a venue, newest first.",
		InputSchema: inputSchema(map[string]any{
			"venue": map[string]any{"type": "string", "description": "Venue key, e.g. conf/icse or journals/tcs"},
			"limit": map[string]any{"type": "integer", "description": "Max records (default 20)"},
		}, []string{"venue"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*venueRecordsRequest)
		if r.Venue == "" {
			return nil, fmt.Errorf("%w: venue is required", ErrInvalidInput)
		}
		limit := r.Limit
		if limit <= 0 {
			limit = 20
		}
		rows, err := ix.VenueRecords(ctx, r.Venue, limit)
		if err != nil {
			return nil, err
		}
		if rows == nil {
			rows = []*Row{}
		}
		return rows, nil
	}

	ix.register(srv, tool, endpoint, decodeInto[venueRecordsRequest])
}

// --- stats ---

type statsRequest struct{}

func (ix *Indexer) registerStatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "dblpfeeds_stats",
		Description: "Counts of venues, records, arXiv entries, tags and pipeline runs.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return ix.Stats(ctx)
	}

	ix.register(srv, tool, endpoint, decodeInto[statsRequest])
}

// --- ingest_log ---

type ingestLogRequest struct {
	Limit int `json:"limit,omitempty"`
}

func (ix *Indexer) registerIngestLogTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "dblpfeeds_ingest_log",
		Description: "Recent pipeline runs with their record counters, newest first.",
		InputSchema: inputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Max runs (default 20)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*ingestLogRequest)
		runs, err := ix.IngestLog(ctx, r.Limit)
		if err != nil {
			return nil, err
		}
		if runs == nil {
			runs = []*IngestLog{}
		}
		return runs, nil
	}

	ix.register(srv, tool, endpoint, decodeInto[ingestLogRequest])
}
