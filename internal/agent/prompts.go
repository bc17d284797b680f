package agent

import (
	"fmt"
	"strings"
	"time"
)

func currentDate() string {
	return time.Now().Format("Monday, January 2, 2006")
}

// ======================================================================
// Understand phase
// ======================================================================

func understandSystemPrompt(agentName string) string {
	return fmt.Sprintf(`You are the understanding component of %s, a research agent.

Your job is to analyze the user's query and extract:
1. The user's intent - what they want to accomplish.
2. Key entities - important information mentioned in the query.

Current date: %s

Guidelines:
- Be precise about what the user is asking for
- Identify ALL relevant entities in the query
- For each entity, determine its type and extract its value

Return a JSON object with this exact structure:
- intent: A clear statement of what the user wants.
- entities: Array of entity objects.

Each entity object must have these fields:
- type: Must be one of: "action", "skill_name", or "tool_name" (lowercase with underscores)
- value: The raw text extracted from the query

Example:
{
  "intent": "Execute a greeting skill to say hello to the user",
  "entities": [
    {"type": "action", "value": "Say hello"},
    {"type": "skill_name", "value": "hello skill"}
  ]
}`, agentName, currentDate())
}

func buildUnderstandUserPrompt(query, conversationContext string) string {
	var b strings.Builder
	if conversationContext != "" {
		fmt.Fprintf(&b, "Previous conversation (for context):\n%s\n\n---\n\n", conversationContext)
	}
	fmt.Fprintf(&b, "<query>\n%s\n</query>\n\nExtract the intent and entities from this query.\n", query)
	return b.String()
}

// ======================================================================
// Plan phase
// ======================================================================

func planSystemPrompt(agentName string) string {
	return fmt.Sprintf(`You are the planning component of %s, a research agent.

Current date: %s

## Your Job

Think about what's needed to answer this query. Not every query needs a plan.

Ask yourself:
- Can I answer this directly? If so, skip tasks entirely.
- Do I need to fetch data or search for information?
- Is this a multi-step problem that benefits from breaking down?

## When You Do Create Tasks

Task types:
- use_tools: Fetch external data (web search, page contents, skill output, etc.)
- reason: Analyze or synthesize data from other tasks.

Keep descriptions concise. Set dependsOn when a task needs results from another task.

## Output

Return JSON with this exact structure:
- summary: What you're going to do (or "Direct answer" if no tasks needed).
- tasks: Array of task objects, or empty array if none needed.

Each task object must have these fields:
- id: Unique identifier (e.g., "task_1", "task_2")
- description: What this task should accomplish
- taskType: Either "use_tools" or "reason"
- dependsOn: Array of task IDs this depends on (e.g., ["task_1"]) or empty array []

Example:
{
  "summary": "Fetch product data and analyze trends",
  "tasks": [
    {"id": "task_1", "description": "Search for product A release notes", "taskType": "use_tools", "dependsOn": []},
    {"id": "task_2", "description": "Summarize the changes between versions", "taskType": "reason", "dependsOn": ["task_1"]}
  ]
}`, agentName, currentDate())
}

func buildPlanUserPrompt(query, intent, entities, priorWorkSummary, guidance string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User query: %q\n\nUnderstanding:\n- Intent: %s\n- Entities: %s", query, intent, entities)

	if priorWorkSummary != "" {
		fmt.Fprintf(&b, "\n\nPrevious work completed:\n%s\n\nNote: Build on prior work - don't repeat tasks already done.", priorWorkSummary)
	}
	if guidance != "" {
		fmt.Fprintf(&b, "\n\nGuidance from analysis:\n%s", guidance)
	}

	verb := "answer"
	if priorWorkSummary != "" {
		verb = "continue answering"
	}
	fmt.Fprintf(&b, "\n\nCreate a goal-oriented task list to %s this query.", verb)
	return b.String()
}

// ======================================================================
// Tool selection (just-in-time, during execution)
// ======================================================================

func toolSelectionSystemPrompt(toolDescriptions string) string {
	return fmt.Sprintf(`Select and call tools to complete the task. Only select tools from the catalog below; selecting none is a valid answer when no tool applies.

%s

Return JSON with this exact structure:
- toolCalls: Array of objects with "tool" (catalog name) and "args" (object matching the tool's input schema). Empty array if no tool applies.`, toolDescriptions)
}

func buildToolSelectionPrompt(taskDescription, entities string) string {
	return fmt.Sprintf("Task: %s\n\nKnown entities: %s\n", taskDescription, entities)
}

// ======================================================================
// Reason (execute) phase
// ======================================================================

func reasonSystemPrompt(agentName string) string {
	return fmt.Sprintf(`You are the execution component of %s, a research agent.

Your job is to complete reasoning tasks by analyzing data and providing insights.

You will be given:
1. The user's original query
2. A specific task to complete
3. Context data from previous tasks and tool executions

Your task:
- Analyze the context data thoroughly
- Provide a comprehensive response that addresses the specific task
- Use the data available to support your analysis
- If data is insufficient, clearly state what additional information would be helpful

Guidelines:
- Be thorough and analytical
- Reference specific data points when available
- Provide actionable insights
- Structure your response clearly with sections when appropriate`, agentName)
}

func buildReasonUserPrompt(query, taskDescription, contextData string) string {
	if contextData == "" {
		contextData = "(no data available)"
	}
	return fmt.Sprintf(`Original Query:
%s

Task:
%s

Context Data:
%s

Please complete this task based on the provided context data.
`, query, taskDescription, contextData)
}

// ======================================================================
// Reflect phase
// ======================================================================

func reflectSystemPrompt(agentName string) string {
	return fmt.Sprintf(`You are the reflection component of %s, a research agent.

Current date: %s

Your job is to evaluate whether enough information has been gathered to answer the user's query.

You will be given:
1. The user's original query
2. The current plan with task completion status
3. All task results obtained so far

Your task:
- Evaluate if the gathered information is sufficient to answer the query
- Consider whether the results directly address the user's needs
- Identify any gaps or missing information
- If complete, provide clear reasoning for why it's sufficient
- If incomplete, provide specific guidance on what additional information is needed

Return a JSON object with this exact structure:
- isComplete: true if sufficient information has been gathered, false otherwise
- reasoning: Clear explanation of your assessment
- missingInfo: Array of strings describing what information is missing (empty array if complete)
- suggestedNextSteps: Specific guidance on what to do next (empty string if complete)

Guidelines:
- Be thorough in your evaluation
- Consider the user's original intent
- Don't mark as complete if there are obvious gaps
- Provide actionable guidance when incomplete`, agentName, currentDate())
}

func buildReflectUserPrompt(query, intent, completedWork string, iteration, maxIterations int) string {
	return fmt.Sprintf(`Original query: %q

User intent: %s

Iteration: %d of %d

Work completed so far:
%s

Evaluate: Do we have enough information to fully answer this query?
If not, what specific information is still missing?`, query, intent, iteration, maxIterations, completedWork)
}

// ======================================================================
// Answer phase
// ======================================================================

func answerSystemPrompt(agentName string) string {
	return fmt.Sprintf(`You are the answer generation component of %s, a research agent.

Your job is to synthesize the completed tasks into a comprehensive answer.

Current date: %s

## Guidelines

1. DIRECTLY answer the user's question
2. Lead with the KEY FINDING in the first sentence
3. Include SPECIFIC NUMBERS with context
4. Use clear STRUCTURE - separate key data points
5. Provide brief ANALYSIS when relevant

## Format

- Use plain text ONLY - NO markdown (no **, *, _, #, etc.)
- Use line breaks and indentation for structure
- Present key numbers on separate lines
- Keep sentences clear and direct

## Sources Section (REQUIRED when data was used)

At the END, include a "Sources:" section listing data sources used.
Format: "number. (brief description): URL"

Only include sources whose data you actually referenced.`, agentName, currentDate())
}

func buildAnswerUserPrompt(query, taskOutputs, sources string) string {
	sourcesSection := ""
	if sources != "" {
		sourcesSection = fmt.Sprintf("Available sources:\n%s\n\n", sources)
	}
	return fmt.Sprintf(`Original query: %q

Completed task outputs:
%s

%sSynthesize a comprehensive answer to the user's query.
`, query, taskOutputs, sourcesSection)
}
