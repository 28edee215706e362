// Package agent turns user instructions into model completions.
//
// The Agent is shared by every front end (CLI, Slack, GitHub, HTTP, MCP).
// It owns the conversation memory and the workspace, builds prompts, and
// sends them to an llm.Provider.
//
// # Chat
//
// Chat handles a free-form message:
//
//	reply, err := a.Chat(ctx, "review internal/server", domain.SourceCLI)
//
// The message is answered conversationally using the personality prompt,
// the workspace prompt, the conversation context, and the ten most recent
// messages. When the message reads like a task ("analyze", "generate",
// "review pr", ...) the matching task is also run against the workspace
// files and its solution is appended to the reply. Provider failures are
// turned into an apology reply rather than an error, so every front end
// always has something to relay.
//
// # Tasks
//
// ProcessTask runs a structured domain.Task:
//
//   - analyze: one completion, suggestions extracted from the analysis
//   - generate: the code, then a follow-up explanation; fenced blocks
//     naming a file become CodeChanges
//   - review: the review, then concrete improvements; suggestions are
//     prioritized with critical ones first
//
// Unknown task types yield domain.ErrUnknownTaskType.
package agent
