package main

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiPlanner implements Planner on top of Gemini function calling.
// It is stateless: every Decide call replays the conversation, which
// keeps the serialized rule blocks byte-stable for prompt caching.
type GeminiPlanner struct {
	client    *genai.Client
	modelName string
}

// NewGeminiPlanner creates a planner using the given Gemini model.
func NewGeminiPlanner(client *genai.Client, modelName string) *GeminiPlanner {
	if modelName == "" {
		modelName = DefaultLLMModel
	}
	return &GeminiPlanner{
		client:    client,
		modelName: modelName,
	}
}

// Decide sends the conversation and tool declarations to Gemini and
// maps the response onto the action union: a function call becomes a
// tool invocation, plain text a terminal reply.
func (p *GeminiPlanner) Decide(ctx context.Context, system string, turns []Turn, tools []*RepairTool) (*Decision, error) {
	contents := turnsToContents(turns)

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		},
		Tools: []*genai.Tool{{
			FunctionDeclarations: toolDeclarations(tools),
		}},
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.modelName, contents, config)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("model returned no candidates")
	}

	var texts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.FunctionCall != nil {
			return &Decision{Call: &ToolInvocation{
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			}}, nil
		}
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
	}

	return &Decision{Reply: strings.TrimSpace(strings.Join(texts, "\n"))}, nil
}

// turnsToContents converts the planner-neutral conversation into
// Gemini content. Tool results travel back as function responses.
func turnsToContents(turns []Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case "model":
			if turn.Call != nil {
				contents = append(contents, &genai.Content{
					Role: "model",
					Parts: []*genai.Part{{
						FunctionCall: &genai.FunctionCall{
							Name: turn.Call.Name,
							Args: turn.Call.Args,
						},
					}},
				})
			} else {
				contents = append(contents, &genai.Content{
					Role:  "model",
					Parts: []*genai.Part{{Text: turn.Text}},
				})
			}
		case "tool":
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						Name:     turn.ToolName,
						Response: turn.Result,
					},
				}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: turn.Text}},
			})
		}
	}
	return contents
}

// toolDeclarations maps the session toolset onto function declarations.
func toolDeclarations(tools []*RepairTool) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
		})
	}
	return decls
}
