package main

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"
)

// ToolInvocation is a tool call chosen by the planner.
type ToolInvocation struct {
	Name string
	Args map[string]any
}

// Decision is one step of the planner: either a tool invocation or a
// terminal free-text reply (Call == nil).
type Decision struct {
	Call  *ToolInvocation
	Reply string
}

// Turn is one entry of the session conversation, kept in a
// planner-neutral shape so any decision maker can be plugged in.
type Turn struct {
	Role     string // "user", "model" or "tool"
	Text     string
	ToolName string
	Call     *ToolInvocation // set on model turns that invoked a tool
	Result   map[string]any  // set on tool turns
}

// Planner is the external decision maker. Decide receives the system
// instructions, the conversation so far and the session's tool schemas,
// and returns the next action. A Go error from Decide is a transport
// failure and fails the whole session.
type Planner interface {
	Decide(ctx context.Context, system string, turns []Turn, tools []*RepairTool) (*Decision, error)
}

// RepairAgent drives step-bounded repair sessions against the store.
type RepairAgent struct {
	store    *RuleStore
	planner  Planner
	memory   *RepairMemory // optional
	maxSteps int
	logger   *log.Logger
}

// NewRepairAgent creates an agent. memory may be nil.
func NewRepairAgent(store *RuleStore, planner Planner, memory *RepairMemory, maxSteps int, logger *log.Logger) *RepairAgent {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &RepairAgent{
		store:    store,
		planner:  planner,
		memory:   memory,
		maxSteps: maxSteps,
		logger:   logger,
	}
}

// Run executes one repair session: it assembles the prompt, then
// alternates planner decisions and tool executions until the terminal
// reply tool is chosen, the planner answers in free text, or the step
// budget is exhausted. Tool failures are fed back to the planner as
// data; only a planner transport failure aborts the session. Mutations
// already applied are never rolled back.
func (a *RepairAgent) Run(ctx context.Context, req *RepairRequest) (*RepairResult, error) {
	toolset := BuildRepairToolset(a.store, req)
	system := BuildSystemInstructions(req)
	prompt := BuildRepairPrompt(req)

	result := &RepairResult{
		SessionID: uuid.NewString(),
		ToolCalls: []ToolCallRecord{},
	}
	turns := []Turn{{Role: "user", Text: prompt}}

	a.logger.Printf("repair session %s started (user=%s, matched=%v, tools=%d)",
		result.SessionID, req.User.ID, req.MatchedRule != nil, len(toolset.All()))

	for step := 0; step < a.maxSteps; step++ {
		decision, err := a.planner.Decide(ctx, system, turns, toolset.All())
		if err != nil {
			return nil, fmt.Errorf("planner failed at step %d: %w", step+1, err)
		}
		result.Steps = step + 1

		if decision.Call == nil {
			// Free-text answer: terminal without a tool call.
			result.TerminalReply = decision.Reply
			a.logger.Printf("repair session %s ended with free-text reply after %d steps", result.SessionID, result.Steps)
			return a.finish(ctx, req, result), nil
		}

		call := decision.Call
		tool := toolset.Get(call.Name)
		if tool == nil {
			res := toolError(fmt.Sprintf("Unknown tool: %q", call.Name))
			result.ToolCalls = append(result.ToolCalls, ToolCallRecord{Tool: call.Name, Args: call.Args, Result: res})
			turns = appendExchange(turns, call, res)
			continue
		}

		if tool.Terminal {
			content, _ := call.Args["content"].(string)
			result.TerminalReply = content
			result.ToolCalls = append(result.ToolCalls, ToolCallRecord{Tool: tool.Name, Args: call.Args, Result: toolSuccess()})
			a.logger.Printf("repair session %s ended via %s after %d steps", result.SessionID, tool.Name, result.Steps)
			return a.finish(ctx, req, result), nil
		}

		var res map[string]any
		if err := ValidateToolArgs(tool.Parameters, call.Args); err != nil {
			// Schema violation: rejected before execute, no mutation.
			res = toolError("Invalid arguments: " + err.Error())
		} else {
			res = tool.Run(ctx, call.Args)
		}

		a.logger.Printf("repair session %s step %d: %s -> %v", result.SessionID, result.Steps, tool.Name, res)
		result.ToolCalls = append(result.ToolCalls, ToolCallRecord{Tool: tool.Name, Args: call.Args, Result: res})
		turns = appendExchange(turns, call, res)
	}

	// Budget exhausted without a terminal reply. Not an error: the
	// caller still gets the accumulated tool-call log.
	a.logger.Printf("repair session %s exhausted its %d-step budget", result.SessionID, a.maxSteps)
	return a.finish(ctx, req, result), nil
}

// appendExchange records a tool call and its result in the conversation.
func appendExchange(turns []Turn, call *ToolInvocation, result map[string]any) []Turn {
	return append(turns,
		Turn{Role: "model", ToolName: call.Name, Call: call},
		Turn{Role: "tool", ToolName: call.Name, Result: result},
	)
}

// finish records the completed session in repair memory, best effort.
func (a *RepairAgent) finish(ctx context.Context, req *RepairRequest, result *RepairResult) *RepairResult {
	if a.memory != nil {
		if err := a.memory.Record(ctx, req, result); err != nil {
			a.logger.Printf("Warning: failed to record repair session %s: %v", result.SessionID, err)
		}
	}
	return result
}
