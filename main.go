package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"google.golang.org/genai"
)

func main() {
	testMode := flag.Bool("t", false, "Run in interactive CLI test mode")
	modelFlag := flag.String("model", "", "Override the Gemini model for repair sessions")
	flag.Parse()

	ctx := context.Background()
	// MCP talks on stdout; all logging goes to stderr.
	logger := log.New(os.Stderr, "[rulemcp] ", log.LstdFlags)

	cfg, err := LoadConfig(logger)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *modelFlag != "" {
		cfg.Gemini.LLMModel = *modelFlag
	}
	if cfg.Gemini.APIKey == "" {
		log.Fatal("GEMINI_API_KEY environment variable is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.Gemini.APIKey,
	})
	if err != nil {
		log.Fatalf("Failed to create GenAI client: %v", err)
	}

	store, err := OpenRuleStore(cfg.Store.RulePath)
	if err != nil {
		log.Fatalf("Failed to open rule store: %v", err)
	}
	defer store.Close()

	embFunc := makeGeminiEmbedder(client, cfg.Gemini.EmbeddingModel)
	memory, err := NewRepairMemory(cfg.Store.MemoryPath, embFunc, logger)
	if err != nil {
		log.Fatalf("Failed to open repair memory: %v", err)
	}

	planner := NewGeminiPlanner(client, cfg.Gemini.LLMModel)
	agent := NewRepairAgent(store, planner, memory, cfg.MaxSteps, logger)

	app := &App{
		store:    store,
		memory:   memory,
		agent:    agent,
		logger:   logger,
		testMode: *testMode,
	}

	if *testMode {
		app.runInteractiveCLI(ctx)
		return
	}

	s := server.NewMCPServer(ServerName, ServerVersion)

	// --- Tool Registration ---

	s.AddTool(mcp.NewTool("repair_rule",
		mcp.WithDescription("Fix a user's email rules from a natural-language complaint about how one email was handled."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("ID of the user whose rules to repair")),
		mcp.WithString("user_email", mcp.Description("The user's email address")),
		mcp.WithString("user_about", mcp.Description("Short profile text about the user")),
		mcp.WithString("correction_subject", mcp.Description("Subject of the user's correction email")),
		mcp.WithString("correction_body", mcp.Required(), mcp.Description("Body of the user's correction email")),
		mcp.WithString("original_from", mcp.Required(), mcp.Description("Sender of the email that was mishandled")),
		mcp.WithString("original_to", mcp.Description("Recipient of the mishandled email")),
		mcp.WithString("original_subject", mcp.Description("Subject of the mishandled email")),
		mcp.WithString("original_body", mcp.Description("Body of the mishandled email")),
		mcp.WithString("matched_rule", mcp.Description("Name of the rule that matched the original email, if any")),
	), app.repairRuleHandler)

	s.AddTool(mcp.NewTool("list_rules",
		mcp.WithDescription("List a user's email rules."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("ID of the user")),
	), app.listRulesHandler)

	s.AddTool(mcp.NewTool("show_rule",
		mcp.WithDescription("Show one rule in its full serialized form, including group items and category filters."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("ID of the user")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Name of the rule")),
	), app.showRuleHandler)

	s.AddTool(mcp.NewTool("import_rules",
		mcp.WithDescription("Bulk-import rules, groups and categories for a user from a JSON payload."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("ID of the user")),
		mcp.WithString("data", mcp.Required(), mcp.Description("JSON object with rules, groups and categories arrays")),
	), app.importRulesHandler)

	s.AddTool(mcp.NewTool("repair_history",
		mcp.WithDescription("Search past repair sessions by similarity to a query."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("ID of the user")),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural language description of the repair to look for")),
	), app.repairHistoryHandler)

	logger.Printf("%s %s starting on Stdio...", ServerName, ServerVersion)
	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
