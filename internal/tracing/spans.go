package tracing

// Span attribute keys. These are the semantic conventions for the
// orchestrator's span tree.
const (
	// Tick attributes
	AttrTickID       = "tick.id"
	AttrTextPrompts  = "tick.text_prompts"
	AttrMediaPrompts = "tick.media_prompts"

	// Prompt attributes
	AttrPromptID   = "prompt.id"
	AttrPromptType = "prompt.type"

	// Session attributes
	AttrSessionID = "session.id"
	AttrAgentName = "agent.name"
	AttrModelName = "model.name"
	AttrRounds    = "session.rounds"
	AttrToolName  = "tool.name"

	// Media attributes
	AttrRunID         = "media.run_id"
	AttrPipelineType  = "media.pipeline_type"
	AttrScriptName    = "media.script"
	AttrArtifactCount = "media.artifact_count"

	// Error attributes
	AttrErrorMessage = "error.message"
)

// Span names for consistent naming across the tick tree.
const (
	SpanTick    = "queue.tick"
	SpanPrompt  = "prompt.process"
	SpanSession = "session.run"
	SpanHarvest = "session.harvest"
	SpanMedia   = "media.run"
)
