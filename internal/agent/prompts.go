package agent

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/tognete/codi/internal/domain"
	"github.com/tognete/codi/internal/workspace"
)

// Personality describes who the agent presents itself as.
type Personality struct {
	Name         string
	Role         string
	Style        string
	Expertise    []string
	Capabilities []string
}

// DefaultPersonality is the Codi persona.
func DefaultPersonality() Personality {
	return Personality{
		Name:  "Codi",
		Role:  "AI Senior Software Developer",
		Style: "professional and experienced",
		Expertise: []string{
			"software architecture",
			"code review",
			"system design",
			"debugging",
			"best practices",
		},
		Capabilities: []string{
			"direct file system access",
			"workspace awareness",
			"code reading and writing",
			"git repository interaction",
			"real-time code analysis",
		},
	}
}

// personalityPrompt renders the system prompt that establishes the persona
// and the workspace it works in. ws may be nil.
func personalityPrompt(p Personality, ws *workspace.Workspace) string {
	project, location := "Not yet determined", "Not yet determined"
	if ws != nil {
		project, location = ws.Name, ws.Root
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, an %s with extensive experience in %s.\n", p.Name, p.Role, strings.Join(p.Expertise, ", "))
	fmt.Fprintf(&b, "You communicate in a %s manner, drawing from years of software development expertise.\n\n", p.Style)
	b.WriteString("You have direct access to the following capabilities:\n")
	for _, c := range p.Capabilities {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	b.WriteString("\nYour workspace context:\n")
	fmt.Fprintf(&b, "- Project: %s\n", project)
	fmt.Fprintf(&b, "- Location: %s\n\n", location)
	b.WriteString(`You should:
1. Be confident in your ability to directly access and modify code
2. Actively use your file system access to help users
3. Provide precise, technically sound solutions
4. Demonstrate deep understanding of software engineering principles
5. Ask clarifying questions when requirements are unclear
6. Maintain technical context from previous messages
7. Be proactive in suggesting architectural improvements

IMPORTANT: You have DIRECT access to the file system and can read/write code. Never suggest that you don't have access. Instead, use your capabilities to help users effectively.`)
	return b.String()
}

func workspacePrompt(ws *workspace.Workspace) string {
	return fmt.Sprintf(`You are actively working in the project '%s' located at %s.
You have full access to read and modify files in this workspace. Use this access to provide concrete, specific help.

IMPORTANT: For any file operations or tool usage:
1. Always log what you're doing
2. Show progress during long operations
3. Confirm when operations are complete`, ws.Name, ws.Root)
}

// contextPrompt renders the conversation context as JSON.
func contextPrompt(values map[string]string) string {
	data, err := json.Marshal(values)
	if err != nil {
		data = []byte("{}")
	}
	return "Current conversation context: " + string(data)
}

const (
	analysisSystem     = "You are a senior software developer performing code analysis. Be thorough but concise."
	generationSystem   = "You are a senior software developer generating production-ready code. Focus on writing clean, efficient, and well-documented code that follows best practices."
	explanationSystem  = "You are a senior software developer explaining generated code."
	reviewSystem       = "You are a senior software developer performing a thorough code review. Be specific, constructive, and provide actionable feedback with examples."
	improvementsSystem = "You are a senior software developer providing specific code improvements."

	explanationRequest  = "Provide a brief explanation of the code and any important implementation notes or suggestions."
	improvementsRequest = "Based on the review, provide specific code improvements and refactoring suggestions. Include code examples for the most important changes."
)

// formatFiles renders files as labelled fenced blocks in path order.
func formatFiles(files map[string]string) string {
	blocks := make([]string, 0, len(files))
	for _, path := range slices.Sorted(maps.Keys(files)) {
		blocks = append(blocks, fmt.Sprintf("File: %s\n```\n%s\n```", path, files[path]))
	}
	return strings.Join(blocks, "\n\n")
}

func analysisPrompt(task *domain.Task) string {
	return fmt.Sprintf(`As a senior software developer, analyze the following code:

%s

Focus on:
1. Code structure and organization
2. Potential bugs or issues
3. Performance considerations
4. Best practices and patterns
5. Security concerns
6. Suggestions for improvement

Task description: %s`, formatFiles(task.Context.Files), task.Description)
}

func generationPrompt(task *domain.Task) string {
	var b strings.Builder
	b.WriteString("As a senior software developer, generate code based on the following:\n\n")
	fmt.Fprintf(&b, "Task description: %s\n", task.Description)
	if task.Context.Language != "" {
		fmt.Fprintf(&b, "\nPreferred language: %s\n", task.Context.Language)
	}
	if len(task.Requirements) > 0 {
		b.WriteString("\nSpecific requirements:\n")
		for _, r := range task.Requirements {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	if len(task.Context.Files) > 0 {
		fmt.Fprintf(&b, "\nExisting project files:\n%s\n", formatFiles(task.Context.Files))
	}
	b.WriteString(`
Please ensure the code:
1. Follows best practices and design patterns
2. Is well-documented and maintainable
3. Handles edge cases and errors appropriately
4. Is efficient and performant
5. Includes necessary imports and dependencies
6. Is security-conscious

Generate complete, production-ready code that can be used immediately.`)
	return b.String()
}

func reviewPrompt(task *domain.Task) string {
	return fmt.Sprintf(`As a senior software developer, perform a comprehensive code review of the following code:

%s

Task description: %s

Please analyze the code for:
1. Code Quality:
   - Clean code principles
   - Design patterns usage
   - Code organization
   - Naming conventions
   - Documentation quality

2. Functionality:
   - Logic correctness
   - Edge cases handling
   - Error handling
   - API consistency

3. Performance:
   - Algorithmic efficiency
   - Resource usage
   - Potential bottlenecks
   - Optimization opportunities

4. Security:
   - Potential vulnerabilities
   - Input validation
   - Authentication/Authorization issues
   - Data protection

5. Maintainability:
   - Code complexity
   - Test coverage
   - Dependencies
   - Technical debt

6. Best Practices:
   - Language-specific conventions
   - Framework usage
   - Modern practices
   - Industry standards

Provide specific, actionable feedback with code examples where relevant.`, formatFiles(task.Context.Files), task.Description)
}

// reviewSummary assembles the final review document.
func reviewSummary(review, improvements string, suggestions []string) string {
	var b strings.Builder
	b.WriteString("# Code Review Summary\n\n")
	fmt.Fprintf(&b, "## General Review\n%s\n\n", review)
	fmt.Fprintf(&b, "## Specific Improvements\n%s\n\n", improvements)
	b.WriteString("## Prioritized Suggestions\n")
	for _, s := range suggestions {
		b.WriteString("\n" + s)
	}
	return b.String()
}

func greetingReply(ws *workspace.Workspace) string {
	project := "current"
	if ws != nil && ws.Name != "" {
		project = ws.Name
	}
	return fmt.Sprintf("👋 Hello! I'm Codi, your AI senior software developer. I'm currently working in the %s project and have full access to the codebase. Let's write some excellent code together.", project)
}
