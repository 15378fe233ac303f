package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"
	"google.golang.org/genai"
)

// RepairMemory stores summaries of completed repair sessions in a local
// vector database so later sessions can recall how similar complaints
// were fixed. Recall output is advisory prompt context only; it never
// drives a mutation by itself.
type RepairMemory struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	dbPath     string
	logger     *log.Logger
}

// NewRepairMemory opens (or creates) the repair memory at dbPath.
func NewRepairMemory(dbPath string, embFunc chromem.EmbeddingFunc, logger *log.Logger) (*RepairMemory, error) {
	db := chromem.NewDB()

	if info, err := os.Stat(dbPath); err == nil && info.Size() > 0 {
		if err := db.ImportFromFile(dbPath, ""); err != nil {
			logger.Printf("Note: started repair memory fresh (import failed: %v)", err)
		}
	}

	collection, err := db.GetOrCreateCollection(MemoryCollectionName, nil, embFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to open repair memory collection: %w", err)
	}

	return &RepairMemory{
		db:         db,
		collection: collection,
		dbPath:     dbPath,
		logger:     logger,
	}, nil
}

// Record stores a one-document summary of a finished session.
func (m *RepairMemory) Record(ctx context.Context, req *RepairRequest, result *RepairResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.collection.AddDocuments(ctx, []chromem.Document{{
		ID:      result.SessionID,
		Content: summarizeSession(req, result),
		Metadata: map[string]string{
			"user": req.User.ID,
		},
	}}, 1)
	if err != nil {
		return fmt.Errorf("failed to store repair summary: %w", err)
	}

	if err := m.db.ExportToFile(m.dbPath, true, ""); err != nil {
		m.logger.Printf("Warning: failed to persist repair memory: %v", err)
	}
	return nil
}

// Recall returns up to n past repair summaries for this user, most
// similar to the given correction text first.
func (m *RepairMemory) Recall(ctx context.Context, userID, correction string, n int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := m.collection.Count()
	if total == 0 {
		return nil, nil
	}
	if total < n {
		n = total
	}

	results, err := m.collection.Query(ctx, QueryTaskPrefix+correction, n,
		map[string]string{"user": userID}, nil)
	if err != nil {
		return nil, fmt.Errorf("repair memory query failed: %w", err)
	}

	summaries := make([]string, 0, len(results))
	for _, res := range results {
		summaries = append(summaries, res.Content)
	}
	return summaries, nil
}

// summarizeSession condenses a session into one retrievable document.
func summarizeSession(req *RepairRequest, result *RepairResult) string {
	var sb strings.Builder
	sb.WriteString("Complaint: " + req.UserRequestEmail.Subject)
	body := req.UserRequestEmail.Body
	if len(body) > 300 {
		body = body[:297] + "..."
	}
	if body != "" {
		sb.WriteString(" - " + body)
	}

	var applied []string
	for _, call := range result.ToolCalls {
		if call.Tool == ReplyToolName {
			continue
		}
		if _, failed := call.Result["error"]; failed {
			continue
		}
		applied = append(applied, call.Tool)
	}
	if len(applied) > 0 {
		sb.WriteString("\nApplied: " + strings.Join(applied, ", "))
	}
	if result.TerminalReply != "" {
		sb.WriteString("\nResolution: " + result.TerminalReply)
	}
	return sb.String()
}

// makeGeminiEmbedder creates an embedding function using Gemini's
// embedding API. Query texts are marked with QueryTaskPrefix so the
// right task type is used.
func makeGeminiEmbedder(client *genai.Client, modelName string) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		taskType := TaskTypeDocument
		if strings.HasPrefix(text, QueryTaskPrefix) {
			taskType = TaskTypeQuery
			text = strings.TrimPrefix(text, QueryTaskPrefix)
		}

		contents := []*genai.Content{{Parts: []*genai.Part{{Text: text}}}}
		dim := int32(EmbeddingDimension)
		res, err := client.Models.EmbedContent(ctx, modelName, contents, &genai.EmbedContentConfig{
			TaskType:             taskType,
			OutputDimensionality: &dim,
		})
		if err != nil {
			return nil, err
		}
		if len(res.Embeddings) == 0 {
			return nil, fmt.Errorf("no embeddings returned")
		}
		values := res.Embeddings[0].Values
		normalize(values)
		return values, nil
	}
}

// normalize performs L2 normalization on a vector of float32 values.
func normalize(v []float32) {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}
	magnitude := float32(math.Sqrt(sum))
	if magnitude <= 0 {
		return
	}
	for i := range v {
		v[i] /= magnitude
	}
}
