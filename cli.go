package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// runInteractiveCLI starts an interactive command-line interface for
// exercising the repair agent without an MCP client.
func (a *App) runInteractiveCLI(ctx context.Context) {
	fmt.Println(WelcomeMsg)
	fmt.Println(HelpMsg)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n" + PromptStr)
		if !scanner.Scan() {
			break
		}

		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		cmd := strings.ToLower(parts[0])
		switch cmd {
		case "exit":
			return

		case "rules":
			if len(parts) < 2 {
				fmt.Println("Usage: rules <user>")
				continue
			}
			a.cliRules(ctx, parts[1])

		case "show":
			if len(parts) < 3 {
				fmt.Println("Usage: show <user> <rule name>")
				continue
			}
			a.cliShow(ctx, parts[1], strings.Join(parts[2:], " "))

		case "repair":
			if len(parts) < 3 {
				fmt.Println("Usage: repair <user> <complaint>")
				continue
			}
			a.cliRepair(ctx, parts[1], strings.Join(parts[2:], " "))

		case "history":
			if len(parts) < 3 {
				fmt.Println("Usage: history <user> <query>")
				continue
			}
			a.cliHistory(ctx, parts[1], strings.Join(parts[2:], " "))

		default:
			fmt.Println(UnknownCmdMsg)
		}
	}
}

// cliRules executes the list_rules operation from CLI.
func (a *App) cliRules(ctx context.Context, userID string) {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"user_id": userID}
	res, _ := a.listRulesHandler(ctx, req)
	fmt.Println(res.Content[0].(mcp.TextContent).Text)
}

// cliShow executes the show_rule operation from CLI.
func (a *App) cliShow(ctx context.Context, userID, name string) {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"user_id": userID, "name": name}
	res, _ := a.showRuleHandler(ctx, req)
	fmt.Println(res.Content[0].(mcp.TextContent).Text)
}

// cliRepair runs a repair session from a one-line complaint. The
// complaint doubles as the correction email body; the original email
// fields are left empty, which is enough to exercise the loop.
func (a *App) cliRepair(ctx context.Context, userID, complaint string) {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{
		"user_id":         userID,
		"correction_body": complaint,
		"original_from":   "",
	}
	res, err := a.repairRuleHandler(ctx, req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
	} else if res.IsError {
		fmt.Printf("Error: %v\n", res.Content[0].(mcp.TextContent).Text)
	} else {
		fmt.Println(res.Content[0].(mcp.TextContent).Text)
	}
}

// cliHistory executes the repair_history operation from CLI.
func (a *App) cliHistory(ctx context.Context, userID, query string) {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"user_id": userID, "query": query}
	res, _ := a.repairHistoryHandler(ctx, req)
	fmt.Println(res.Content[0].(mcp.TextContent).Text)
}
