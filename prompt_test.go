package main

import (
	"strings"
	"testing"
)

func TestBuildRepairPrompt_MatchedRuleHidesFullRuleSet(t *testing.T) {
	rule := sampleRule()
	req := &RepairRequest{
		User:        UserProfile{ID: "u1", Email: "user@example.com"},
		Rules:       []*Rule{rule, {Name: "Receipts", Condition: RuleCondition{Operator: OperatorAnd}}},
		MatchedRule: rule,
	}

	out := BuildRepairPrompt(req)
	if !strings.Contains(out, "<matched_rule>") {
		t.Errorf("matched rule section missing:\n%s", out)
	}
	if strings.Contains(out, "<user_rules>") {
		t.Errorf("full rule set must not be included when a rule matched:\n%s", out)
	}
}

func TestBuildRepairPrompt_NoMatchShowsAllRules(t *testing.T) {
	req := &RepairRequest{
		User:  UserProfile{ID: "u1", Email: "user@example.com"},
		Rules: []*Rule{sampleRule()},
	}

	out := BuildRepairPrompt(req)
	if strings.Contains(out, "<matched_rule>") {
		t.Errorf("no matched rule section expected:\n%s", out)
	}
	if !strings.Contains(out, "<user_rules>") || !strings.Contains(out, "Name: Newsletter") {
		t.Errorf("full rule set missing:\n%s", out)
	}
}

func TestBuildRepairPrompt_NoRulesAtAll(t *testing.T) {
	req := &RepairRequest{User: UserProfile{ID: "u1", Email: "user@example.com"}}

	out := BuildRepairPrompt(req)
	if !strings.Contains(out, "The user has no rules yet.") {
		t.Errorf("empty rule set marker missing:\n%s", out)
	}
}

func TestBuildRepairPrompt_CategorySection(t *testing.T) {
	req := &RepairRequest{
		User:           UserProfile{ID: "u1", Email: "user@example.com"},
		Categories:     []string{"Work", "Shopping"},
		SenderCategory: "Shopping",
	}

	out := BuildRepairPrompt(req)
	if !strings.Contains(out, "Known categories: Work, Shopping") {
		t.Errorf("category list missing:\n%s", out)
	}
	if !strings.Contains(out, "currently in category: Shopping") {
		t.Errorf("sender label missing:\n%s", out)
	}

	// Disabled entirely when the user has no category list.
	req.Categories = nil
	out = BuildRepairPrompt(req)
	if strings.Contains(out, "<sender_categories>") {
		t.Errorf("category section must be absent when disabled:\n%s", out)
	}
}

func TestBuildSystemInstructions_CategoryGuidance(t *testing.T) {
	req := &RepairRequest{User: UserProfile{ID: "u1"}}

	base := BuildSystemInstructions(req)
	if strings.Contains(base, "categories") {
		t.Errorf("category guidance must be absent when disabled:\n%s", base)
	}

	req.Categories = []string{"Work"}
	withCats := BuildSystemInstructions(req)
	if !strings.Contains(withCats, "reassign the sender") {
		t.Errorf("category guidance missing:\n%s", withCats)
	}
}
