package main

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// scriptedPlanner returns canned decisions in order. It stands in for
// the model so the orchestration loop can be tested deterministically.
type scriptedPlanner struct {
	decisions []*Decision
	err       error
	calls     int
	lastTools []*RepairTool
	lastTurns []Turn
}

func (p *scriptedPlanner) Decide(ctx context.Context, system string, turns []Turn, tools []*RepairTool) (*Decision, error) {
	p.calls++
	p.lastTools = tools
	p.lastTurns = turns
	if p.err != nil {
		return nil, p.err
	}
	if p.calls > len(p.decisions) {
		// Keep looping on a harmless non-terminal call.
		return &Decision{Call: &ToolInvocation{
			Name: "add_to_group",
			Args: map[string]any{"type": "from", "value": "loop@example.com"},
		}}, nil
	}
	return p.decisions[p.calls-1], nil
}

func callTool(name string, args map[string]any) *Decision {
	return &Decision{Call: &ToolInvocation{Name: name, Args: args}}
}

func TestAgentRun_TerminalToolEndsEarly(t *testing.T) {
	store := newTestStore(t)
	req := seedSession(t, store, nil)
	planner := &scriptedPlanner{decisions: []*Decision{
		callTool(ReplyToolName, map[string]any{"content": "All set, nothing to change."}),
	}}

	agent := NewRepairAgent(store, planner, nil, 8, nil)
	result, err := agent.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TerminalReply != "All set, nothing to change." {
		t.Errorf("wrong terminal reply: %q", result.TerminalReply)
	}
	if result.Steps != 1 || planner.calls != 1 {
		t.Errorf("session should end on the terminal tool: steps=%d calls=%d", result.Steps, planner.calls)
	}
	if result.SessionID == "" {
		t.Error("expected a session ID")
	}
}

func TestAgentRun_FreeTextIsTerminal(t *testing.T) {
	store := newTestStore(t)
	req := seedSession(t, store, nil)
	planner := &scriptedPlanner{decisions: []*Decision{
		{Reply: "I could not find a rule to fix."},
	}}

	agent := NewRepairAgent(store, planner, nil, 8, nil)
	result, err := agent.Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if result.TerminalReply != "I could not find a rule to fix." {
		t.Errorf("free text should become the terminal reply: %q", result.TerminalReply)
	}
	if len(result.ToolCalls) != 0 {
		t.Errorf("no tool calls expected, got %d", len(result.ToolCalls))
	}
}

func TestAgentRun_BudgetExhaustionIsNotAnError(t *testing.T) {
	store := newTestStore(t)
	req := seedSession(t, store, nil)
	// The planner never terminates; decisions past the script repeat a
	// harmless tool call.
	planner := &scriptedPlanner{}

	agent := NewRepairAgent(store, planner, nil, 3, nil)
	result, err := agent.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("budget exhaustion must not be an error: %v", err)
	}
	if result.TerminalReply != "" {
		t.Errorf("expected no terminal reply, got %q", result.TerminalReply)
	}
	if result.Steps != 3 || planner.calls != 3 {
		t.Errorf("expected exactly 3 steps, got steps=%d calls=%d", result.Steps, planner.calls)
	}
	if len(result.ToolCalls) != 3 {
		t.Errorf("tool-call log should cover every step, got %d entries", len(result.ToolCalls))
	}
}

func TestAgentRun_PlannerFailureAbortsSession(t *testing.T) {
	store := newTestStore(t)
	req := seedSession(t, store, nil)
	planner := &scriptedPlanner{err: errors.New("connection reset")}

	agent := NewRepairAgent(store, planner, nil, 8, nil)
	result, err := agent.Run(context.Background(), req)
	if err == nil {
		t.Fatal("expected a transport failure to abort the session")
	}
	if result != nil {
		t.Errorf("no result expected on failure, got %+v", result)
	}
	if !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("underlying cause missing from error: %v", err)
	}
}

func TestAgentRun_InvalidArgsRejectedWithoutMutation(t *testing.T) {
	store := newTestStore(t)
	req := seedSession(t, store, nil)
	planner := &scriptedPlanner{decisions: []*Decision{
		// Enum violation inside the nested condition.
		callTool("edit_rule", map[string]any{
			"explanation": "bad operator",
			"condition":   map[string]any{"conditional_operator": "XOR", "subject": "x"},
		}),
		callTool(ReplyToolName, map[string]any{"content": "done"}),
	}}

	agent := NewRepairAgent(store, planner, nil, 8, nil)
	result, err := agent.Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	if len(result.ToolCalls) != 2 {
		t.Fatalf("expected 2 recorded calls, got %d", len(result.ToolCalls))
	}
	first := result.ToolCalls[0].Result
	reason, _ := first["error"].(string)
	if !strings.Contains(reason, "Invalid arguments") {
		t.Errorf("expected a validation payload, got %v", first)
	}

	// The matched rule must be untouched.
	got, _ := store.GetRule("u1", "r-receipts")
	if got.Condition.Static.Subject != "" {
		t.Errorf("rejected call still mutated the store: %+v", got.Condition)
	}
}

func TestAgentRun_UnknownToolFedBackAsData(t *testing.T) {
	store := newTestStore(t)
	req := seedSession(t, store, nil)
	planner := &scriptedPlanner{decisions: []*Decision{
		callTool("delete_rule", map[string]any{"rule_name": "Receipts"}),
		callTool(ReplyToolName, map[string]any{"content": "done"}),
	}}

	agent := NewRepairAgent(store, planner, nil, 8, nil)
	result, err := agent.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("an unknown tool must not fail the session: %v", err)
	}
	if result.TerminalReply != "done" {
		t.Errorf("session should continue to the reply: %q", result.TerminalReply)
	}
	reason, _ := result.ToolCalls[0].Result["error"].(string)
	if !strings.Contains(reason, "delete_rule") {
		t.Errorf("error payload should name the unknown tool: %v", result.ToolCalls[0].Result)
	}
}

func TestAgentRun_ToolResultsReachTheNextDecision(t *testing.T) {
	store := newTestStore(t)
	req := seedSession(t, store, nil)
	planner := &scriptedPlanner{decisions: []*Decision{
		callTool("remove_from_group", map[string]any{"type": "subject", "value": "thanks"}),
		callTool(ReplyToolName, map[string]any{"content": "done"}),
	}}

	agent := NewRepairAgent(store, planner, nil, 8, nil)
	if _, err := agent.Run(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	// At the second decision the conversation must contain the failed
	// removal as a tool turn.
	var sawResult bool
	for _, turn := range planner.lastTurns {
		if turn.Role == "tool" && turn.ToolName == "remove_from_group" {
			sawResult = true
			if turn.Result["error"] != ItemNotFoundMsg {
				t.Errorf("tool turn carries the wrong result: %v", turn.Result)
			}
		}
	}
	if !sawResult {
		t.Error("tool result never fed back into the conversation")
	}
}

// The newsletter scenario: the user complains that forwarded copies of
// the digest are not archived, and the agent widens the matching rule
// while keeping its name and actions.
func TestAgentRun_NewsletterEditScenario(t *testing.T) {
	store := newTestStore(t)

	rule := sampleRule()
	if err := store.InsertRule(rule); err != nil {
		t.Fatal(err)
	}
	req := &RepairRequest{
		User:        UserProfile{ID: "u1", Email: "user@example.com"},
		Rules:       []*Rule{rule},
		Groups:      map[string]*Group{},
		MatchedRule: nil,
		UserRequestEmail: EmailMessage{
			From: "user@example.com",
			Body: "The weekly digest still lands in my inbox when a colleague forwards it. Archive those too.",
		},
		OriginalEmail: EmailMessage{From: "colleague@example.com", Subject: "Fwd: Weekly Digest"},
	}

	planner := &scriptedPlanner{decisions: []*Decision{
		callTool("edit_rule", map[string]any{
			"rule_name":   "Newsletter",
			"explanation": "Match on the subject alone so forwarded copies are archived as well.",
			"condition": map[string]any{
				"conditional_operator": "AND",
				"subject":              "Weekly Digest",
			},
		}),
		callTool(ReplyToolName, map[string]any{
			"content": "Forwarded copies of the digest will now be archived too.",
		}),
	}}

	agent := NewRepairAgent(store, planner, nil, 8, nil)
	result, err := agent.Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if result.TerminalReply == "" {
		t.Fatal("expected a terminal reply")
	}
	if result.Steps != 2 {
		t.Errorf("expected 2 steps, got %d", result.Steps)
	}

	got, err := store.GetRule("u1", rule.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Condition.Static.From != "" || got.Condition.Static.Subject != "Weekly Digest" {
		t.Errorf("condition not narrowed to the subject: %+v", got.Condition.Static)
	}
	if got.Name != "Newsletter" || len(got.Actions) != 1 || got.Actions[0].Type != "ARCHIVE" {
		t.Errorf("edit must preserve name and actions: %+v", got)
	}
}

// The receipts scenario: the agent guesses a group item that does not
// exist, observes the failure and reports it instead of mutating blind.
func TestAgentRun_ReceiptsFailedRemovalScenario(t *testing.T) {
	store := newTestStore(t)
	req := seedSession(t, store, nil)

	planner := &scriptedPlanner{decisions: []*Decision{
		callTool("remove_from_group", map[string]any{"type": "subject", "value": "thanks"}),
		callTool(ReplyToolName, map[string]any{
			"content": "I could not find a matching group item to remove.",
		}),
	}}

	agent := NewRepairAgent(store, planner, nil, 8, nil)
	result, err := agent.Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	if result.ToolCalls[0].Result["error"] != ItemNotFoundMsg {
		t.Errorf("expected %q payload, got %v", ItemNotFoundMsg, result.ToolCalls[0].Result)
	}
	group, _ := store.GetGroup("u1", "g1")
	if len(group.Items) != 1 || group.Items[0].Value != "Invoice" {
		t.Errorf("group must be unchanged after the failed removal: %+v", group.Items)
	}
	if result.TerminalReply == "" {
		t.Error("session should still end with a reply")
	}
}

func TestAgentRun_ToolsetMatchesSession(t *testing.T) {
	store := newTestStore(t)
	req := seedSession(t, store, nil)
	req.MatchedRule = nil
	planner := &scriptedPlanner{decisions: []*Decision{
		{Reply: "nothing to do"},
	}}

	agent := NewRepairAgent(store, planner, nil, 8, nil)
	if _, err := agent.Run(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	names := make(map[string]bool)
	for _, tool := range planner.lastTools {
		names[tool.Name] = true
	}
	if names["change_sender_category"] || names["remove_from_group"] {
		t.Errorf("planner was offered tools outside the session context: %v", names)
	}
	if !names["edit_rule"] || !names[ReplyToolName] {
		t.Errorf("core tools missing from the planner's view: %v", names)
	}
}
