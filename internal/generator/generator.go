// Package generator drives the tool-using chat loop with the language
// model.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/coursechat/internal/models"
	"github.com/raphaelgruber/coursechat/internal/tools"
	"github.com/tmc/langchaingo/llms"
)

// ErrGenerationFailed indicates the LLM call could not complete. It is
// not retried here; retries are caller policy.
var ErrGenerationFailed = errors.New("generation failed")

const systemPrompt = `You are an AI assistant specialized in course materials and educational content with access to tools for course information.

Available Tools:
1. search_course_content: Search within course lesson content for specific topics or details.
2. get_course_outline: Retrieve a course's title, course link, and full lesson list. Use this for questions about what a course covers, its structure, table of contents, or lesson listing.

Tool Usage:
- For course outline, structure, or "what lessons" questions: use get_course_outline
- For specific topic or content questions: use search_course_content
- When returning an outline, include the course title, course link, and every lesson with its number and title
- Synthesize tool results into accurate, fact-based responses
- Only reference courses and lessons that appear in tool results. Never invent or suggest courses that were not returned by a tool
- If a tool yields no results, state this clearly without offering alternatives

Response Protocol:
- General knowledge questions: answer using existing knowledge without searching
- Course-specific questions: use the appropriate tool first, then answer
- Provide direct answers only. No reasoning process, search explanations, or question-type analysis
- Do not mention "based on the search results" or "based on the tool results"

All responses must be:
1. Brief, concise and focused
2. Educational
3. Clear, using accessible language
4. Example-supported when examples aid understanding
Provide only the direct answer to what was asked.`

// Model is the LLM behind the generator. Implemented by llm.Model.
type Model interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// ToolExecutor dispatches tool calls. Implemented by tools.Registry.
type ToolExecutor interface {
	Definitions() []llms.Tool
	Execute(ctx context.Context, name string, args json.RawMessage) (tools.Result, error)
}

// Answer is the final text plus the citations collected from tool
// calls along the way.
type Answer struct {
	Text    string
	Sources []models.Source
}

// Generator runs the bounded tool loop: each round sends the
// conversation to the model, executes any requested tool calls and
// feeds the results back. After the last allowed round the model is
// called once more without tools, which forces a text answer.
type Generator struct {
	model     Model
	registry  ToolExecutor
	maxRounds int
	log       *slog.Logger
}

// New creates a generator. maxRounds caps the number of
// tool-execution rounds per query.
func New(model Model, registry ToolExecutor, maxRounds int, log *slog.Logger) *Generator {
	if maxRounds <= 0 {
		maxRounds = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Generator{
		model:     model,
		registry:  registry,
		maxRounds: maxRounds,
		log:       log,
	}
}

// Generate answers a question, optionally using tools. history is the
// formatted prior conversation, empty for a fresh session.
func (g *Generator) Generate(ctx context.Context, question, history string) (*Answer, error) {
	system := systemPrompt
	if history != "" {
		system = fmt.Sprintf("%s\n\nPrevious conversation:\n%s", systemPrompt, history)
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, question),
	}

	var sources []models.Source

	for round := 0; round < g.maxRounds; round++ {
		response, err := g.model.GenerateContent(ctx, messages, llms.WithTools(g.registry.Definitions()))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
		}
		choice, err := firstChoice(response)
		if err != nil {
			return nil, err
		}

		if len(choice.ToolCalls) == 0 {
			return &Answer{Text: choice.Content, Sources: sources}, nil
		}

		g.log.Debug("model requested tools", "round", round, "calls", len(choice.ToolCalls))
		messages = append(messages, assistantTurn(choice))
		messages = append(messages, g.executeTools(ctx, choice.ToolCalls, &sources)...)
	}

	// Rounds exhausted, force a text answer
	response, err := g.model.GenerateContent(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	choice, err := firstChoice(response)
	if err != nil {
		return nil, err
	}
	return &Answer{Text: choice.Content, Sources: sources}, nil
}

// executeTools runs every call the model requested in one turn. Tool
// failures become model-visible error text instead of aborting the
// round. The sources of the last call that produced any win.
func (g *Generator) executeTools(ctx context.Context, calls []llms.ToolCall, sources *[]models.Source) []llms.MessageContent {
	results := make([]llms.MessageContent, 0, len(calls))
	for _, call := range calls {
		if call.FunctionCall == nil {
			continue
		}

		content := ""
		result, err := g.registry.Execute(ctx, call.FunctionCall.Name, json.RawMessage(call.FunctionCall.Arguments))
		if err != nil {
			content = fmt.Sprintf("Tool execution error: %v", err)
		} else {
			content = result.Text
			if len(result.Sources) > 0 {
				*sources = result.Sources
			}
		}

		results = append(results, llms.MessageContent{
			Role: llms.ChatMessageTypeTool,
			Parts: []llms.ContentPart{llms.ToolCallResponse{
				ToolCallID: call.ID,
				Name:       call.FunctionCall.Name,
				Content:    content,
			}},
		})
	}
	return results
}

// assistantTurn rebuilds the assistant message that requested tools,
// so providers see their own tool calls in the transcript.
func assistantTurn(choice *llms.ContentChoice) llms.MessageContent {
	msg := llms.MessageContent{Role: llms.ChatMessageTypeAI}
	if choice.Content != "" {
		msg.Parts = append(msg.Parts, llms.TextContent{Text: choice.Content})
	}
	for _, call := range choice.ToolCalls {
		msg.Parts = append(msg.Parts, call)
	}
	return msg
}

func firstChoice(response *llms.ContentResponse) (*llms.ContentChoice, error) {
	if response == nil || len(response.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty model response", ErrGenerationFailed)
	}
	return response.Choices[0], nil
}
