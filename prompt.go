package main

import (
	"strings"
)

// BuildSystemInstructions returns the behavioral guidance supplied to
// the model. The preference ordering among tools is advisory: it steers
// the model but nothing here is mechanically enforced.
func BuildSystemInstructions(req *RepairRequest) string {
	var sb strings.Builder

	sb.WriteString(`You are an email rule assistant. A user is telling you that one of their
automated email rules handled a message wrongly. Fix their rules using the
available tools, then send them a short reply describing what you changed.

Guidelines:
- Prefer editing an existing rule over creating a new one.
- When the rule has a group, prefer adding or removing group items over
  broadening the rule's AI instructions.
- Only add subject patterns to a group when they recur across emails;
  never add one-off values.
- Make the smallest change that fixes the complaint.
- If a tool returns an error, read it and correct your call; do not
  repeat the identical call.
- Finish by calling the reply tool exactly once.`)

	if req.Categories != nil {
		sb.WriteString("\n- The user sorts senders into categories. If the complaint is about a sender being in the wrong category, reassign the sender instead of editing rules.")
	}

	return sb.String()
}

// BuildRepairPrompt assembles the session prompt: user profile, the
// correction email, the original email, the matched rule (or the full
// rule set when nothing matched), category context and similar past
// repairs. Sections with no content are omitted.
func BuildRepairPrompt(req *RepairRequest) string {
	var sections []string

	var user strings.Builder
	user.WriteString("<user_profile>\n")
	user.WriteString("Email: " + req.User.Email + "\n")
	if req.User.About != "" {
		user.WriteString("About: " + req.User.About + "\n")
	}
	user.WriteString("</user_profile>")
	sections = append(sections, user.String())

	sections = append(sections,
		"<correction_email>\n"+SerializeEmail(req.UserRequestEmail)+"\n</correction_email>")
	sections = append(sections,
		"<original_email>\n"+SerializeEmail(req.OriginalEmail)+"\n</original_email>")

	if req.MatchedRule != nil {
		sections = append(sections,
			"<matched_rule>\n"+SerializeRule(req.MatchedRule, req.MatchedGroup())+"\n</matched_rule>")
	} else if len(req.Rules) > 0 {
		sections = append(sections,
			"No rule matched the original email. These are all of the user's rules:\n<user_rules>\n"+
				SerializeRuleSet(req.Rules, req.Groups)+"\n</user_rules>")
	} else {
		sections = append(sections, "The user has no rules yet.")
	}

	if req.Categories != nil {
		var cat strings.Builder
		cat.WriteString("<sender_categories>\n")
		cat.WriteString("Known categories: " + strings.Join(req.Categories, ", ") + "\n")
		if req.SenderCategory != "" {
			cat.WriteString("The original sender is currently in category: " + req.SenderCategory + "\n")
		} else {
			cat.WriteString("The original sender has no category.\n")
		}
		cat.WriteString("</sender_categories>")
		sections = append(sections, cat.String())
	}

	if len(req.PastRepairs) > 0 {
		var past strings.Builder
		past.WriteString("<similar_past_repairs>\n")
		for _, p := range req.PastRepairs {
			past.WriteString("- " + p + "\n")
		}
		past.WriteString("</similar_past_repairs>")
		sections = append(sections, past.String())
	}

	return strings.Join(sections, "\n\n")
}
