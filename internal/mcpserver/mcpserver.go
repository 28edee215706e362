// Package mcpserver exposes the agent as Model Context Protocol tools.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tognete/codi/internal/agent"
	"github.com/tognete/codi/internal/domain"
)

// Name is the server name reported during initialization.
const Name = "codi"

// Tool names.
const (
	ToolAnalyze  = "analyze_code"
	ToolGenerate = "generate_code"
	ToolReview   = "review_code"
	ToolChat     = "chat"
)

// defaultSnippetName labels inline code that arrives without a filename.
const defaultSnippetName = "snippet"

// Runner is the agent surface the tools call into. It is satisfied by *agent.Agent.
type Runner interface {
	ProcessTask(ctx context.Context, task *domain.Task) (*domain.CodeResponse, error)
	Chat(ctx context.Context, message string, source domain.Source) (string, error)
	WorkspaceContext(path string) (domain.CodeContext, error)
}

// codeArgs are the arguments accepted by analyze_code and review_code.
type codeArgs struct {
	Description string `json:"description"`
	Path        string `json:"path"`
	Code        string `json:"code"`
	Filename    string `json:"filename"`
	Language    string `json:"language"`
}

type generateArgs struct {
	Description  string   `json:"description"`
	Language     string   `json:"language"`
	Requirements []string `json:"requirements"`
}

type chatArgs struct {
	Message string `json:"message"`
}

// New creates an MCP server with the codi tools registered.
func New(runner Runner, version string) *server.MCPServer {
	s := server.NewMCPServer(Name, version, server.WithToolCapabilities(true))
	t := &tools{runner: runner}

	s.AddTool(codeTool(ToolAnalyze, "Analyze source code for structure, bugs, performance, and security issues."), t.code(domain.TaskAnalyze))
	s.AddTool(codeTool(ToolReview, "Perform a thorough code review with prioritized suggestions."), t.code(domain.TaskReview))
	s.AddTool(mcp.NewTool(ToolGenerate,
		mcp.WithDescription("Generate code from a description. Files in the reply are marked with 'File: <path>' headers."),
		mcp.WithString("description", mcp.Required(), mcp.Description("What to build")),
		mcp.WithString("language", mcp.Description("Preferred language")),
		mcp.WithArray("requirements", mcp.Description("Specific requirements"), mcp.Items(map[string]any{"type": "string"})),
	), t.generate)
	s.AddTool(mcp.NewTool(ToolChat,
		mcp.WithDescription("Talk to codi. The conversation is kept across calls."),
		mcp.WithString("message", mcp.Required(), mcp.Description("Message to send")),
	), t.chat)
	return s
}

// Serve runs s over stdin and stdout until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func codeTool(name, description string) mcp.Tool {
	return mcp.NewTool(name,
		mcp.WithDescription(description),
		mcp.WithString("description", mcp.Required(), mcp.Description("What to look for")),
		mcp.WithString("path", mcp.Description("File or directory relative to the workspace root")),
		mcp.WithString("code", mcp.Description("Inline source code, used instead of or in addition to path")),
		mcp.WithString("filename", mcp.Description("Name for the inline code")),
		mcp.WithString("language", mcp.Description("Language of the code")),
	)
}

type tools struct {
	runner Runner
}

func (t *tools) code(taskType domain.TaskType) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args codeArgs
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		if strings.TrimSpace(args.Path) == "" && args.Code == "" {
			return mcp.NewToolResultError("either path or code is required"), nil
		}

		codeCtx := domain.CodeContext{Files: map[string]string{}, Language: args.Language}
		if strings.TrimSpace(args.Path) != "" {
			c, err := t.runner.WorkspaceContext(args.Path)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("reading %s: %v", args.Path, err)), nil
			}
			codeCtx.Files = c.Files
			codeCtx.ProjectRoot = c.ProjectRoot
			codeCtx.CurrentFile = args.Path
		}
		if args.Code != "" {
			name := args.Filename
			if name == "" {
				name = defaultSnippetName
			}
			codeCtx.Files[name] = args.Code
			if codeCtx.CurrentFile == "" {
				codeCtx.CurrentFile = name
			}
		}

		return t.run(ctx, &domain.Task{Type: taskType, Description: args.Description, Context: codeCtx})
	}
}

func (t *tools) generate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args generateArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	return t.run(ctx, &domain.Task{
		Type:         domain.TaskGenerate,
		Description:  args.Description,
		Context:      domain.CodeContext{Files: map[string]string{}, Language: args.Language},
		Requirements: args.Requirements,
	})
}

func (t *tools) chat(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args chatArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if strings.TrimSpace(args.Message) == "" {
		return mcp.NewToolResultError("message is required"), nil
	}
	reply, err := t.runner.Chat(ctx, args.Message, domain.SourceMCP)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(reply), nil
}

func (t *tools) run(ctx context.Context, task *domain.Task) (*mcp.CallToolResult, error) {
	if err := task.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ctx = agent.WithSource(ctx, domain.SourceMCP)
	clog.FromContext(ctx).Info("[MCP Task]", "type", task.Type, "files", len(task.Context.Files))

	resp, err := t.runner.ProcessTask(ctx, task)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(FormatResponse(resp)), nil
}

// FormatResponse renders a task response as markdown text. Changed files are
// listed by path; their contents are already part of the solution.
func FormatResponse(resp *domain.CodeResponse) string {
	var b strings.Builder
	b.WriteString(resp.Solution)
	if len(resp.Suggestions) > 0 && !strings.Contains(resp.Solution, "## Prioritized Suggestions") {
		b.WriteString("\n\n## Suggestions\n")
		for _, s := range resp.Suggestions {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	if paths := resp.ChangedPaths(); len(paths) > 0 {
		b.WriteString("\n\nFiles: ")
		b.WriteString(strings.Join(paths, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
