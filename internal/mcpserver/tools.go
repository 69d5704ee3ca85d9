package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

func sessionIDParam(opts ...mcp.PropertyOption) mcp.ToolOption {
	opts = append(opts, mcp.Description("Session returned by start_game"))
	return mcp.WithString("session_id", opts...)
}

func listPersonalitiesTool() mcp.Tool {
	return mcp.NewTool(
		"list_personalities",
		mcp.WithDescription("Lists the built-in personalities that can join a cast by name"),
	)
}

func startGameTool() mcp.Tool {
	return mcp.NewTool(
		"start_game",
		mcp.WithDescription("Starts a storytelling game, or continues a finished story after edit_cast when session_id is given"),
		sessionIDParam(),
		mcp.WithArray("personalities",
			mcp.Description(`Cast in turn order. Each entry has "name", "prompt", "type" ("user" or "ai"), optional "builtin" naming a built-in personality and optional "model" {"provider","endpoint","model"}. Defaults to a single human player.`),
			mcp.Items(map[string]any{"type": "object"}),
		),
		mcp.WithNumber("rounds",
			mcp.Description("Number of full rotations before the story editor summarizes"),
			mcp.DefaultNumber(1),
			mcp.Min(1),
		),
		mcp.WithString("seed",
			mcp.Description("Opening line spoken by the narrator"),
		),
		mcp.WithBoolean("image_generation",
			mcp.Description("Illustrate each turn"),
		),
	)
}

func submitTurnTool() mcp.Tool {
	return mcp.NewTool(
		"submit_turn",
		mcp.WithDescription("Plays the current turn. Human players pass text; AI turns are generated and ignore it."),
		sessionIDParam(mcp.Required()),
		mcp.WithString("text",
			mcp.Description("The human player's contribution"),
		),
	)
}

func editCastTool() mcp.Tool {
	return mcp.NewTool(
		"edit_cast",
		mcp.WithDescription("Reopens a finished game for a new cast; call start_game with the same session_id to continue the story"),
		sessionIDParam(mcp.Required()),
	)
}

func newGameTool() mcp.Tool {
	return mcp.NewTool(
		"new_game",
		mcp.WithDescription("Discards the story and cast of a session"),
		sessionIDParam(mcp.Required()),
	)
}

func getStateTool() mcp.Tool {
	return mcp.NewTool(
		"get_state",
		mcp.WithDescription("Returns the transcript and whose turn it is"),
		sessionIDParam(mcp.Required()),
	)
}
