package dialogue

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/okaimono/shopping-agent/agent/contract"
)

func (c *Controller) compileHandleInputGraph(
	ctx context.Context,
) (compose.Runnable[GraphInput, contract.Reply], error) {
	graph := compose.NewGraph[GraphInput, contract.Reply]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in GraphInput) (*graphState, error) {
			return c.validateRequest(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("load_session",
		compose.InvokableLambda(func(ctx context.Context, st *graphState) (*graphState, error) {
			return c.loadSession(ctx, st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_session: %w", err)
	}

	if err := graph.AddLambdaNode("extract_preferences",
		compose.InvokableLambda(func(ctx context.Context, st *graphState) (*graphState, error) {
			return c.extractPreferences(st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node extract_preferences: %w", err)
	}

	if err := graph.AddLambdaNode("advance_state",
		compose.InvokableLambda(func(ctx context.Context, st *graphState) (*graphState, error) {
			return c.advanceState(st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node advance_state: %w", err)
	}

	if err := graph.AddLambdaNode("run_search",
		compose.InvokableLambda(func(ctx context.Context, st *graphState) (*graphState, error) {
			return c.runSearch(ctx, st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node run_search: %w", err)
	}

	if err := graph.AddLambdaNode("compose_reply",
		compose.InvokableLambda(func(ctx context.Context, st *graphState) (*graphState, error) {
			return c.composeReply(st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node compose_reply: %w", err)
	}

	if err := graph.AddLambdaNode("save_session",
		compose.InvokableLambda(func(ctx context.Context, st *graphState) (*graphState, error) {
			return c.saveSession(ctx, st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node save_session: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, st *graphState) (contract.Reply, error) {
			return c.finalizeReply(ctx, st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "load_session"},
		{"load_session", "extract_preferences"},
		{"extract_preferences", "advance_state"},
		{"advance_state", "run_search"},
		{"run_search", "compose_reply"},
		{"compose_reply", "save_session"},
		{"save_session", "finalize_reply"},
		{"finalize_reply", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("dialogue.handle_input"))
	if err != nil {
		return nil, fmt.Errorf("compile dialogue graph: %w", err)
	}
	return runner, nil
}
