package main

// Model configuration constants
const (
	// LLM model driving repair sessions
	DefaultLLMModel = "gemini-flash-lite-latest"
	// Embedding model for repair memory recall
	DefaultEmbeddingModel = "gemini-embedding-001"
	// Output dimensionality for embeddings (MRL optimized)
	EmbeddingDimension = 768
)

// Repair session constants
const (
	// Maximum deliberate/execute cycles per repair session
	DefaultMaxSteps = 8
	// Name of the terminal tool that ends a session
	ReplyToolName = "reply"
	// Past corrections recalled into a repair prompt
	DefaultRecallResults = 3
)

// Storage constants
const (
	// Default directory for the badger rule store
	DefaultStorePath = "rule_store"
	// Default path for the persisted repair memory
	DefaultMemoryPath = "repair_memory.bin"
	// Collection name in the vector database
	MemoryCollectionName = "repair_memory"
)

// Store key prefixes. Every record is JSON under a typed prefix.
const (
	ruleKeyPrefix     = "rule:"
	ruleNamePrefix    = "rulename:"
	groupKeyPrefix    = "group:"
	categoriesPrefix  = "categories:"
	senderLabelPrefix = "sender:"
)

// Embedding task type constants
const (
	// Task type for storing documents
	TaskTypeDocument = "RETRIEVAL_DOCUMENT"
	// Task type for querying
	TaskTypeQuery = "RETRIEVAL_QUERY"
	// Prefix to mark query tasks in the embedding function
	QueryTaskPrefix = "QUERY_TASK:"
)

// Server configuration constants
const (
	// MCP server name
	ServerName = "rulemend-mcp"
	// Server version following semantic versioning
	ServerVersion = "1.0.0"
)

// UI/CLI messages
const (
	PromptStr     = "rules> "
	WelcomeMsg    = "=== RuleMend Test Mode ==="
	HelpMsg       = "Commands: rules <user> | show <user> <name> | repair <user> <complaint> | history <user> <query> | exit"
	UnknownCmdMsg = "Unknown command. Try: rules, show, repair, history, exit"
)

// Error and status messages
const (
	NoRulesMsg         = "No rules configured for this user."
	SessionFailedMsg   = "Sorry, something went wrong while fixing your rules. Please try again."
	NoTerminalMsg      = "The assistant made changes but did not send a summary before running out of steps."
	NoHistoryMsg       = "No similar past repairs found."
	RuleNotFoundMsg    = "Rule not found"
	GroupNotFoundMsg   = "Group not found"
	ItemNotFoundMsg    = "Group item not found"
	UnknownItemTypeMsg = "Unknown group item type"
)
