// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/flowvector/flowvector/pkg/models"
)

// StubEmbedderDimensions is the vector length produced by StubEmbedder.
const StubEmbedderDimensions = 32

// StubEmbedder is a deterministic in-process embedding provider: each word
// hashes into one dimension of a bag-of-words vector, so texts sharing words
// score higher cosine similarity. Good enough for ranking assertions without
// a model.
type StubEmbedder struct {
	// Fail, when set, makes every call return this error.
	Fail error
}

func (e *StubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.Fail != nil {
		return nil, e.Fail
	}

	return wordVector(text), nil
}

func (e *StubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	for i, text := range texts {
		vector, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}

		vectors[i] = vector
	}

	return vectors, nil
}

func (e *StubEmbedder) Dimensions() int { return StubEmbedderDimensions }

func (e *StubEmbedder) ModelName() string { return "stub-bag-of-words" }

func wordVector(text string) []float32 {
	vector := make([]float32, StubEmbedderDimensions)

	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(word, ".,!?")))
		vector[h.Sum32()%StubEmbedderDimensions]++
	}

	return vector
}

// ChatModelDescriptor builds the canonical chat model node descriptor used
// across tests.
func ChatModelDescriptor() *models.NodeDescriptor {
	return &models.NodeDescriptor{
		Name:        "chatModel",
		Label:       "Chat Model",
		Description: "Large language chat model that powers chatbot conversation responses",
		Category:    models.CategoryTypeModel,
		Inputs: []models.InputPort{
			{Name: "prompt", Types: []string{"text"}, Required: false},
		},
		Outputs: []models.OutputPort{
			{Name: "model", Type: "languageModel"},
		},
		RequiresCredentials: true,
		Version:             1,
	}
}

// ConversationMemoryDescriptor builds the conversation memory descriptor.
func ConversationMemoryDescriptor() *models.NodeDescriptor {
	return &models.NodeDescriptor{
		Name:        "conversationMemory",
		Label:       "Conversation Memory",
		Description: "Remembers conversation history so a chatbot can recall earlier messages",
		Category:    models.CategoryTypeMemory,
		Inputs:      []models.InputPort{},
		Outputs: []models.OutputPort{
			{Name: "memory", Type: "memory"},
		},
		Version: 1,
	}
}

// ConversationChainDescriptor builds the conversation chain descriptor that
// consumes a model and a memory.
func ConversationChainDescriptor() *models.NodeDescriptor {
	return &models.NodeDescriptor{
		Name:        "conversationChain",
		Label:       "Conversation Chain",
		Description: "Chains a chat model with memory into a conversational pipeline",
		Category:    models.CategoryTypeChain,
		Inputs: []models.InputPort{
			{Name: "model", Types: []string{"languageModel"}, Required: true},
			{Name: "memory", Types: []string{"memory"}, Required: true},
			{Name: "input", Types: []string{"text"}, Required: false},
		},
		Outputs: []models.OutputPort{
			{Name: "output", Type: "text"},
		},
		Version: 1,
	}
}

// HTTPToolDescriptor builds an unrelated descriptor useful as search noise.
func HTTPToolDescriptor() *models.NodeDescriptor {
	return &models.NodeDescriptor{
		Name:        "httpTool",
		Label:       "HTTP Tool",
		Description: "Performs outbound web requests against arbitrary endpoints",
		Category:    models.CategoryTypeTool,
		Inputs: []models.InputPort{
			{Name: "url", Types: []string{"text"}, Required: true},
		},
		Outputs: []models.OutputPort{
			{Name: "response", Type: "json"},
		},
		Version: 1,
	}
}

// SupportBotTemplate builds a small template whose graph wires a chat model
// and memory into a conversation chain.
func SupportBotTemplate() *models.TemplateDescriptor {
	graph := models.NewFlowGraph("support bot")

	_ = graph.AddNode(&models.FlowNode{ID: "chatModel_0", Type: "chatModel"})
	_ = graph.AddNode(&models.FlowNode{ID: "conversationMemory_0", Type: "conversationMemory"})
	_ = graph.AddNode(&models.FlowNode{
		ID:   "conversationChain_0",
		Type: "conversationChain",
		Inputs: map[string]any{
			"model":  models.NodeRef("chatModel_0", "model"),
			"memory": models.NodeRef("conversationMemory_0", "memory"),
		},
	})

	graph.AddEdge(&models.Edge{
		ID:         "edge-1",
		SourceNode: "chatModel_0",
		SourcePort: "model",
		TargetNode: "conversationChain_0",
		TargetPort: "model",
	})
	graph.AddEdge(&models.Edge{
		ID:         "edge-2",
		SourceNode: "conversationMemory_0",
		SourcePort: "memory",
		TargetNode: "conversationChain_0",
		TargetPort: "memory",
	})

	return &models.TemplateDescriptor{
		TemplateID:  "tpl-support-bot",
		Name:        "Support Bot",
		Description: "Customer support chatbot with conversation memory",
		Tags:        []string{"chatbot", "support", "memory"},
		Graph:       graph,
	}
}
