package indexer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testImpl = &mcp.Implementation{Name: "dblpfeeds-test", Version: "0.1.0"}

// mcpSession registers the tools of ix and returns a connected client
// session.
func mcpSession(t *testing.T, ix *Indexer) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testImpl, nil)
	ix.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() {
		_ = srv.Run(ctx, serverT)
	}()

	client := mcp.NewClient(testImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func call(t *testing.T, session *mcp.ClientSession, name string, args any) *mcp.CallToolResult {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	return result
}

// callTool invokes a tool and returns the JSON text from the first TextContent.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result := call(t, session, name, args)
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	if result.IsError {
		t.Fatalf("CallTool(%s) tool error: %s", name, tc.Text)
	}
	return tc.Text
}

func TestMCP_ListTools(t *testing.T) {
	session := mcpSession(t, testIndexer(t))
	res, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	want := map[string]bool{
		"dblpfeeds_list_venues":   false,
		"dblpfeeds_venue_records": false,
		"dblpfeeds_stats":         false,
		"dblpfeeds_ingest_log":    false,
	}
	for _, tool := range res.Tools {
		if _, ok := want[tool.Name]; ok {
			want[tool.Name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("tool %s not registered", name)
		}
	}
}

func TestMCP_ListVenues(t *testing.T) {
	// WHAT: list_venues returns venues ordered by kind, filtered by kind.
	session := mcpSession(t, loaded(t))

	var all []Venue
	if err := json.Unmarshal([]byte(callTool(t, session, "dblpfeeds_list_venues", map[string]any{})), &all); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("venues: got %d, want 3", len(all))
	}
	if all[0].Key != "conf/aaai" || all[2].Key != "journals/tcs" {
		t.Errorf("order: got %s .. %s", all[0].Key, all[2].Key)
	}

	var journals []Venue
	if err := json.Unmarshal([]byte(callTool(t, session, "dblpfeeds_list_venues", map[string]any{"kind": "journals"})), &journals); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(journals) != 1 || journals[0].Name != "Theoretical Computer Science" {
		t.Errorf("journals: got %+v", journals)
	}
}

func TestMCP_ListVenues_EmptyIsArray(t *testing.T) {
	session := mcpSession(t, testIndexer(t))
	if got := callTool(t, session, "dblpfeeds_list_venues", nil); got != "[]" {
		t.Errorf("got %s, want []", got)
	}
}

func TestMCP_VenueRecords(t *testing.T) {
	session := mcpSession(t, loaded(t))

	var rows []Row
	text := callTool(t, session, "dblpfeeds_venue_records", map[string]any{"venue": "conf/icse", "limit": 1})
	if err := json.Unmarshal([]byte(text), &rows); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rows) != 1 || rows[0].Title != "Fuzzing Everything." {
		t.Errorf("rows: got %+v", rows)
	}
}

func TestMCP_VenueRecords_Errors(t *testing.T) {
	// WHAT: Missing or unknown venues come back as tool errors.
	// WHY: Agents must see the reason instead of an empty list.
	session := mcpSession(t, loaded(t))

	if res := call(t, session, "dblpfeeds_venue_records", map[string]any{}); !res.IsError {
		t.Error("missing venue: expected tool error")
	}
	if res := call(t, session, "dblpfeeds_venue_records", map[string]any{"venue": "conf/nope"}); !res.IsError {
		t.Error("unknown venue: expected tool error")
	}
}

func TestMCP_StatsAndIngestLog(t *testing.T) {
	session := mcpSession(t, loaded(t))

	var stats Stats
	if err := json.Unmarshal([]byte(callTool(t, session, "dblpfeeds_stats", nil)), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats.Venues != 3 || stats.Records != 3 || stats.Runs != 1 {
		t.Errorf("stats: got %+v", stats)
	}

	var runs []IngestLog
	if err := json.Unmarshal([]byte(callTool(t, session, "dblpfeeds_ingest_log", map[string]any{"limit": 5})), &runs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != "ok" || runs[0].Sunk != 3 {
		t.Errorf("runs: got %+v", runs)
	}
	if runs[0].FinishedAt == nil {
		t.Error("finished_at not set")
	}
}
