package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// App wires the repair agent, the rule store and the repair memory
// behind the MCP tool surface.
type App struct {
	store    *RuleStore
	memory   *RepairMemory
	agent    *RepairAgent
	logger   *log.Logger
	testMode bool
}

// repairRuleHandler handles the repair_rule tool: it assembles one
// repair session from the request and the store, runs the agent and
// returns the terminal reply plus the tool-call log. End users only
// ever see the reply or a generic failure notice; the raw error detail
// goes to the log for the auditor.
func (a *App) repairRuleHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return mcp.NewToolResultError("Invalid arguments"), nil
	}

	userID, _ := args["user_id"].(string)
	if userID = strings.TrimSpace(userID); userID == "" {
		return mcp.NewToolResultError("user_id cannot be empty"), nil
	}

	correctionBody, _ := args["correction_body"].(string)
	if strings.TrimSpace(correctionBody) == "" {
		return mcp.NewToolResultError("correction_body cannot be empty"), nil
	}

	req, err := a.buildRepairRequest(ctx, userID, args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := a.agent.Run(ctx, req)
	if err != nil {
		a.logger.Printf("repair session failed for user %s: %v", userID, err)
		return mcp.NewToolResultError(SessionFailedMsg), nil
	}

	var sb strings.Builder
	if result.TerminalReply != "" {
		sb.WriteString(result.TerminalReply)
	} else {
		sb.WriteString(NoTerminalMsg)
	}
	if len(result.ToolCalls) > 0 {
		sb.WriteString("\n\nActions taken:\n")
		for _, call := range result.ToolCalls {
			if reason, failed := call.Result["error"]; failed {
				sb.WriteString(fmt.Sprintf("- %s: failed (%v)\n", call.Tool, reason))
			} else {
				sb.WriteString(fmt.Sprintf("- %s: ok\n", call.Tool))
			}
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// buildRepairRequest loads the session context from the store: the
// user's rules with their groups, the category list, the sender's
// current label and similar past repairs.
func (a *App) buildRepairRequest(ctx context.Context, userID string, args map[string]any) (*RepairRequest, error) {
	rules, err := a.store.ListRules(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %v", err)
	}

	groups := make(map[string]*Group)
	for _, r := range rules {
		if r.GroupID == "" {
			continue
		}
		if _, seen := groups[r.GroupID]; seen {
			continue
		}
		group, err := a.store.GetGroup(userID, r.GroupID)
		if err != nil {
			if errors.Is(err, ErrGroupNotFound) {
				a.logger.Printf("Warning: rule %q references missing group %q", r.Name, r.GroupID)
				continue
			}
			return nil, fmt.Errorf("failed to load group: %v", err)
		}
		groups[r.GroupID] = group
	}

	req := &RepairRequest{
		User: UserProfile{
			ID:    userID,
			Email: stringArg(args, "user_email"),
			About: stringArg(args, "user_about"),
		},
		Rules:  rules,
		Groups: groups,
		UserRequestEmail: EmailMessage{
			From:    stringArg(args, "user_email"),
			Subject: stringArg(args, "correction_subject"),
			Body:    stringArg(args, "correction_body"),
		},
		OriginalEmail: EmailMessage{
			From:    stringArg(args, "original_from"),
			To:      stringArg(args, "original_to"),
			Subject: stringArg(args, "original_subject"),
			Body:    stringArg(args, "original_body"),
		},
	}

	if matchedName := stringArg(args, "matched_rule"); matchedName != "" {
		for _, r := range rules {
			if r.Name == matchedName {
				req.MatchedRule = r
				break
			}
		}
		if req.MatchedRule == nil {
			return nil, fmt.Errorf("matched rule %q not found", matchedName)
		}
	}

	categories, err := a.store.Categories(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %v", err)
	}
	req.Categories = categories

	if req.Categories != nil && req.OriginalEmail.From != "" {
		label, err := a.store.SenderCategory(userID, req.OriginalEmail.From)
		if err != nil {
			return nil, fmt.Errorf("failed to load sender category: %v", err)
		}
		req.SenderCategory = label
	}

	if a.memory != nil {
		past, err := a.memory.Recall(ctx, userID, req.UserRequestEmail.Body, DefaultRecallResults)
		if err != nil {
			a.logger.Printf("Warning: repair memory recall failed: %v", err)
		} else {
			req.PastRepairs = past
		}
	}

	return req, nil
}

// listRulesHandler handles the list_rules tool.
func (a *App) listRulesHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	userID, _ := args["user_id"].(string)
	if userID = strings.TrimSpace(userID); userID == "" {
		return mcp.NewToolResultError("user_id cannot be empty"), nil
	}

	rules, err := a.store.ListRules(userID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list rules: %v", err)), nil
	}
	if len(rules) == 0 {
		return mcp.NewToolResultText(NoRulesMsg), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d rules:\n", len(rules)))
	for _, r := range rules {
		sb.WriteString(fmt.Sprintf("- %s (%s, %d actions", r.Name, r.Condition.Operator, len(r.Actions)))
		if r.GroupID != "" {
			if g, err := a.store.GetGroup(userID, r.GroupID); err == nil {
				sb.WriteString(", group: " + g.Name)
			}
		}
		sb.WriteString(")\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// showRuleHandler handles the show_rule tool - renders one rule in the
// same serialized form the repair agent sees.
func (a *App) showRuleHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	userID, _ := args["user_id"].(string)
	name, _ := args["name"].(string)

	if strings.TrimSpace(userID) == "" || strings.TrimSpace(name) == "" {
		return mcp.NewToolResultError("user_id and name are required"), nil
	}

	rule, err := a.store.GetRuleByName(userID, name)
	if err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("Rule %q not found", name)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load rule: %v", err)), nil
	}

	var group *Group
	if rule.GroupID != "" {
		if g, err := a.store.GetGroup(userID, rule.GroupID); err == nil {
			group = g
		}
	}

	return mcp.NewToolResultText(SerializeRule(rule, group)), nil
}

// rulesImport is the payload shape accepted by import_rules.
type rulesImport struct {
	Rules      []*Rule  `json:"rules"`
	Groups     []*Group `json:"groups"`
	Categories []string `json:"categories"`
}

// importRulesHandler handles the import_rules tool - bulk-loads rules,
// groups and the category list for a user from a JSON payload.
func (a *App) importRulesHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	userID, _ := args["user_id"].(string)
	payload, _ := args["data"].(string)

	if userID = strings.TrimSpace(userID); userID == "" {
		return mcp.NewToolResultError("user_id cannot be empty"), nil
	}

	var imp rulesImport
	if err := json.Unmarshal([]byte(payload), &imp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid import payload: %v", err)), nil
	}

	for _, g := range imp.Groups {
		g.UserID = userID
		if err := a.store.InsertGroup(g); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to import group %q: %v", g.Name, err)), nil
		}
	}
	for _, r := range imp.Rules {
		r.UserID = userID
		if err := a.store.InsertRule(r); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to import rule %q: %v", r.Name, err)), nil
		}
	}
	if imp.Categories != nil {
		if err := a.store.SetCategories(userID, imp.Categories); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to set categories: %v", err)), nil
		}
	}

	return mcp.NewToolResultText(fmt.Sprintf("Imported %d rules, %d groups, %d categories.",
		len(imp.Rules), len(imp.Groups), len(imp.Categories))), nil
}

// repairHistoryHandler handles the repair_history tool - semantic
// search over past repair sessions.
func (a *App) repairHistoryHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	userID, _ := args["user_id"].(string)
	query, _ := args["query"].(string)

	if strings.TrimSpace(userID) == "" || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("user_id and query are required"), nil
	}
	if a.memory == nil {
		return mcp.NewToolResultText(NoHistoryMsg), nil
	}

	summaries, err := a.memory.Recall(ctx, userID, query, DefaultRecallResults)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("History search failed: %v", err)), nil
	}
	if len(summaries) == 0 {
		return mcp.NewToolResultText(NoHistoryMsg), nil
	}

	var sb strings.Builder
	sb.WriteString("Similar past repairs:\n\n")
	for _, s := range summaries {
		sb.WriteString(s + "\n---\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
