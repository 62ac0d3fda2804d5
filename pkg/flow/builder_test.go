package flow

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/flowvector/flowvector/pkg/breaker"
	"github.com/flowvector/flowvector/pkg/catalog"
	"github.com/flowvector/flowvector/pkg/flowapi"
	"github.com/flowvector/flowvector/pkg/models"
	"github.com/flowvector/flowvector/pkg/persistence/file"
	"github.com/flowvector/flowvector/pkg/testutil"
)

type mockFlowClient struct {
	mock.Mock
}

func (m *mockFlowClient) CreateFlow(ctx context.Context, doc *flowapi.Document) (*flowapi.Flow, error) {
	args := m.Called(ctx, doc)
	if flow := args.Get(0); flow != nil {
		return flow.(*flowapi.Flow), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *mockFlowClient) GetFlow(ctx context.Context, id string) (*flowapi.Flow, error) {
	args := m.Called(ctx, id)
	if flow := args.Get(0); flow != nil {
		return flow.(*flowapi.Flow), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *mockFlowClient) UpdateFlow(ctx context.Context, id string, doc *flowapi.Document) (*flowapi.Flow, error) {
	args := m.Called(ctx, id, doc)
	if flow := args.Get(0); flow != nil {
		return flow.(*flowapi.Flow), args.Error(1)
	}

	return nil, args.Error(1)
}

func newTestRegistry() *catalog.Registry {
	registry := catalog.NewRegistry(slog.Default())

	registry.RegisterNode(testutil.ChatModelDescriptor())
	registry.RegisterNode(testutil.ConversationMemoryDescriptor())
	registry.RegisterNode(testutil.ConversationChainDescriptor())
	registry.RegisterNode(testutil.HTTPToolDescriptor())
	registry.RegisterTemplate(testutil.SupportBotTemplate())

	return registry
}

func newTestService(t *testing.T, client flowapi.Client, config breaker.Config) *Service {
	t.Helper()

	apiBreaker, err := breaker.New(context.Background(), "flow-api",
		file.NewStateStore(t.TempDir()), slog.Default(), config)
	require.NoError(t, err)

	return NewService(slog.Default(), newTestRegistry(), client, apiBreaker)
}

func TestBuildFlowInfersChatbotConnections(t *testing.T) {
	client := &mockFlowClient{}

	var submitted *flowapi.Document

	client.On("CreateFlow", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			submitted = args.Get(1).(*flowapi.Document)
		}).
		Return(&flowapi.Flow{ID: "flow-1"}, nil)

	service := newTestService(t, client, breaker.Config{})

	flowID, err := service.BuildFlow(context.Background(), &BuildRequest{
		Name:      "support chatbot",
		NodeTypes: []string{"chatModel", "conversationMemory", "conversationChain"},
	})
	require.NoError(t, err)
	assert.Equal(t, "flow-1", flowID)

	require.NotNil(t, submitted)
	require.Len(t, submitted.Nodes, 3)
	require.Len(t, submitted.Edges, 2)

	type connection struct{ source, sourcePort, target, targetPort string }

	connections := make([]connection, 0, len(submitted.Edges))
	for _, edge := range submitted.Edges {
		connections = append(connections, connection{edge.Source, edge.SourceHandle, edge.Target, edge.TargetHandle})
	}

	assert.Contains(t, connections, connection{"chatModel_0", "model", "conversationChain_0", "model"})
	assert.Contains(t, connections, connection{"conversationMemory_0", "memory", "conversationChain_0", "memory"})

	// Inferred connections also materialize as input references.
	assert.Equal(t, "{{chatModel_0.model}}", submitted.Nodes[2].Inputs["model"])
	assert.Equal(t, "{{conversationMemory_0.memory}}", submitted.Nodes[2].Inputs["memory"])
}

func TestBuildFlowInferenceIgnoresListOrder(t *testing.T) {
	client := &mockFlowClient{}

	var submitted *flowapi.Document

	client.On("CreateFlow", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			submitted = args.Get(1).(*flowapi.Document)
		}).
		Return(&flowapi.Flow{ID: "flow-5"}, nil)

	service := newTestService(t, client, breaker.Config{})

	// The consumer comes first: its producers appear later in the list and
	// must still satisfy its required inputs.
	_, err := service.BuildFlow(context.Background(), &BuildRequest{
		Name:      "reversed chatbot",
		NodeTypes: []string{"conversationChain", "chatModel", "conversationMemory"},
	})
	require.NoError(t, err)

	require.NotNil(t, submitted)
	require.Len(t, submitted.Edges, 2)

	assert.Equal(t, "{{chatModel_0.model}}", submitted.Nodes[0].Inputs["model"])
	assert.Equal(t, "{{conversationMemory_0.memory}}", submitted.Nodes[0].Inputs["memory"])
}

func TestBuildFlowRejectsBothAndNeitherSource(t *testing.T) {
	service := newTestService(t, &mockFlowClient{}, breaker.Config{})
	ctx := context.Background()

	_, err := service.BuildFlow(ctx, &BuildRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = service.BuildFlow(ctx, &BuildRequest{
		TemplateID: "tpl-support-bot",
		NodeTypes:  []string{"chatModel"},
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestBuildFlowUnknownNodeType(t *testing.T) {
	service := newTestService(t, &mockFlowClient{}, breaker.Config{})

	_, err := service.BuildFlow(context.Background(), &BuildRequest{
		NodeTypes: []string{"quantumOracle"},
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.ErrorContains(t, err, "quantumOracle")
}

func TestAssembleDuplicateTypeOrdinals(t *testing.T) {
	service := newTestService(t, &mockFlowClient{}, breaker.Config{})

	graph, err := service.Assemble(&BuildRequest{
		NodeTypes: []string{"httpTool", "httpTool", "chatModel"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"httpTool_0", "httpTool_1", "chatModel_0"}, graph.Order)
}

func TestBuildFlowTemplateRoundTrip(t *testing.T) {
	client := &mockFlowClient{}

	var submitted *flowapi.Document

	client.On("CreateFlow", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			submitted = args.Get(1).(*flowapi.Document)
		}).
		Return(&flowapi.Flow{ID: "flow-2"}, nil)

	service := newTestService(t, client, breaker.Config{})

	_, err := service.BuildFlow(context.Background(), &BuildRequest{TemplateID: "tpl-support-bot"})
	require.NoError(t, err)

	stored := testutil.SupportBotTemplate().Graph
	require.NotNil(t, submitted)
	require.Len(t, submitted.Nodes, len(stored.Order))

	for i, id := range stored.Order {
		assert.Equal(t, id, submitted.Nodes[i].ID)
		assert.Equal(t, stored.Nodes[id].Type, submitted.Nodes[i].Type)
	}

	require.Len(t, submitted.Edges, len(stored.Edges))

	for i, edge := range stored.Edges {
		assert.Equal(t, edge.SourceNode, submitted.Edges[i].Source)
		assert.Equal(t, edge.SourcePort, submitted.Edges[i].SourceHandle)
		assert.Equal(t, edge.TargetNode, submitted.Edges[i].Target)
		assert.Equal(t, edge.TargetPort, submitted.Edges[i].TargetHandle)
	}
}

func TestAssembleTemplateOverrides(t *testing.T) {
	service := newTestService(t, &mockFlowClient{}, breaker.Config{})

	graph, err := service.Assemble(&BuildRequest{
		TemplateID: "tpl-support-bot",
		Overrides: []Override{
			{NodeID: "conversationChain_0", Port: "input", Value: "hello"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", graph.Nodes["conversationChain_0"].Inputs["input"])

	// The stored template body must stay untouched.
	stored := testutil.SupportBotTemplate().Graph
	assert.NotContains(t, stored.Nodes["conversationChain_0"].Inputs, "input")
}

func TestAssembleRejectsMalformedOverride(t *testing.T) {
	service := newTestService(t, &mockFlowClient{}, breaker.Config{})

	_, err := service.Assemble(&BuildRequest{
		TemplateID: "tpl-support-bot",
		Overrides:  []Override{{NodeID: "ghost_0", Port: "input", Value: 1}},
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = service.Assemble(&BuildRequest{
		TemplateID: "tpl-support-bot",
		Overrides:  []Override{{NodeID: "chatModel_0", Port: "volume", Value: 11}},
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestBuildFlowExplicitEdges(t *testing.T) {
	client := &mockFlowClient{}
	client.On("CreateFlow", mock.Anything, mock.Anything).Return(&flowapi.Flow{ID: "flow-3"}, nil)

	service := newTestService(t, client, breaker.Config{})

	graph, err := service.Assemble(&BuildRequest{
		NodeTypes: []string{"chatModel", "conversationMemory", "conversationChain"},
		Edges: []EdgeSpec{
			{SourceNode: "chatModel_0", TargetNode: "conversationChain_0"},
			{SourceNode: "conversationMemory_0", SourcePort: "memory", TargetNode: "conversationChain_0", TargetPort: "memory"},
		},
	})
	require.NoError(t, err)
	require.Len(t, graph.Edges, 2)

	// Omitted ports resolve to the single compatible pair.
	assert.Equal(t, "model", graph.Edges[0].SourcePort)
	assert.Equal(t, "model", graph.Edges[0].TargetPort)

	require.NoError(t, service.Validate(graph))
}

func TestBuildFlowCircuitOpenFailsFast(t *testing.T) {
	client := &mockFlowClient{}
	client.On("CreateFlow", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	service := newTestService(t, client, breaker.Config{
		FailureThreshold: 1,
		ResetTimeout:     30 * time.Second,
	})
	ctx := context.Background()

	request := &BuildRequest{NodeTypes: []string{"chatModel", "conversationMemory", "conversationChain"}}

	_, err := service.BuildFlow(ctx, request)
	require.ErrorIs(t, err, assert.AnError)

	_, err = service.BuildFlow(ctx, request)
	require.Error(t, err)
	assert.True(t, breaker.IsCircuitOpen(err))
	assert.ErrorContains(t, err, "retry after")

	// The rejected call never reached the client.
	client.AssertNumberOfCalls(t, "CreateFlow", 1)
}

func TestBuildFlowCorrectionPassOnRenamedInstances(t *testing.T) {
	client := &mockFlowClient{}

	canonical := flowapi.Document{
		Name: "renamed",
		Nodes: []flowapi.Node{
			{ID: "node-aaa", Type: "chatModel", Inputs: map[string]any{}},
			{ID: "node-bbb", Type: "conversationMemory", Inputs: map[string]any{}},
			{ID: "node-ccc", Type: "conversationChain", Inputs: map[string]any{
				"model":  models.NodeRef("chatModel_0", "model"),
				"memory": models.NodeRef("conversationMemory_0", "memory"),
			}},
		},
		Edges: []flowapi.Edge{
			{ID: "e1", Source: "chatModel_0", SourceHandle: "model", Target: "conversationChain_0", TargetHandle: "model"},
			{ID: "e2", Source: "conversationMemory_0", SourceHandle: "memory", Target: "conversationChain_0", TargetHandle: "memory"},
		},
	}

	client.On("CreateFlow", mock.Anything, mock.Anything).
		Return(&flowapi.Flow{ID: "flow-4", Document: canonical}, nil)
	client.On("GetFlow", mock.Anything, "flow-4").
		Return(&flowapi.Flow{ID: "flow-4", Document: canonical}, nil)

	var corrected *flowapi.Document

	client.On("UpdateFlow", mock.Anything, "flow-4", mock.Anything).
		Run(func(args mock.Arguments) {
			corrected = args.Get(2).(*flowapi.Document)
		}).
		Return(&flowapi.Flow{ID: "flow-4"}, nil)

	service := newTestService(t, client, breaker.Config{})

	flowID, err := service.BuildFlow(context.Background(), &BuildRequest{
		NodeTypes: []string{"chatModel", "conversationMemory", "conversationChain"},
	})
	require.NoError(t, err)
	assert.Equal(t, "flow-4", flowID)

	client.AssertCalled(t, "GetFlow", mock.Anything, "flow-4")
	require.NotNil(t, corrected)

	assert.Equal(t, "{{node-aaa.model}}", corrected.Nodes[2].Inputs["model"])
	assert.Equal(t, "{{node-bbb.memory}}", corrected.Nodes[2].Inputs["memory"])
	assert.Equal(t, "node-aaa", corrected.Edges[0].Source)
	assert.Equal(t, "node-ccc", corrected.Edges[0].Target)
}
