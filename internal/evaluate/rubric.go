package evaluate

import (
	"fmt"
	"strings"
)

// Dimension is one scored axis. Anchors run from 5 (best) down to 1.
type Dimension struct {
	Key      string
	Question string
	Anchors  [5]string
}

// Rubric is the fixed text a judge scores against.
type Rubric struct {
	Name             string
	SystemPrompt     string
	Intro            string // formatted with the task prompt
	ContentHeading   string
	ReasoningHint    string
	TruncationMarker string
	Dimensions       []Dimension
}

// Prompt renders the user message for one evaluation.
func (r Rubric) Prompt(task, content string) string {
	var b strings.Builder
	fmt.Fprintf(&b, r.Intro, task)
	b.WriteString("\n\n## Scoring Rubrics (1-5 scale)\n\n")
	for _, d := range r.Dimensions {
		fmt.Fprintf(&b, "**%s** - %s\n", strings.ToUpper(d.Key), d.Question)
		for i, a := range d.Anchors {
			fmt.Fprintf(&b, "- %d: %s\n", 5-i, a)
		}
		b.WriteString("\n")
	}
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "## %s\n\n%s\n\n---\n\n", r.ContentHeading, content)
	b.WriteString("## Your Evaluation\n\n")
	b.WriteString("Provide your scores and a brief justification. Format your response exactly as:\n\n")
	for _, d := range r.Dimensions {
		fmt.Fprintf(&b, "%s: [1-5]\n", d.Key)
	}
	fmt.Fprintf(&b, "reasoning: [%s]\n", r.ReasoningHint)
	return b.String()
}

// ContentRubric scores informational writing.
var ContentRubric = Rubric{
	Name: "content",
	SystemPrompt: "You are an expert content evaluator assessing AI-generated educational and informational content.\n" +
		"Your role is to provide objective, consistent quality assessments using the scoring rubrics provided.\n" +
		"Be strict but fair - reserve 5s for truly exceptional content and 1s for content with serious deficiencies.",
	Intro:            `Evaluate the following content written about: "%s"`,
	ContentHeading:   "Content to Evaluate",
	ReasoningHint:    "2-3 sentences explaining key strengths and weaknesses",
	TruncationMarker: "\n\n[Content truncated for evaluation...]",
	Dimensions: []Dimension{
		{"completeness", "Does the content thoroughly cover the topic?", [5]string{
			"Comprehensive coverage of all key aspects, no significant gaps",
			"Covers most important points with minor omissions",
			"Addresses main topic but misses some relevant points",
			"Superficial coverage, several important aspects missing",
			"Severely incomplete, barely addresses the topic",
		}},
		{"structure", "Is the content well-organized and logical?", [5]string{
			"Excellent organization with clear flow, headings, and transitions",
			"Good structure with minor flow issues",
			"Adequate organization but could be clearer",
			"Disorganized, hard to follow the progression",
			"No discernible structure, chaotic presentation",
		}},
		{"accuracy", "Is the information factually correct and reliable?", [5]string{
			"All claims are accurate, well-reasoned, no errors",
			"Mostly accurate with very minor issues",
			"Generally accurate but some questionable claims",
			"Contains noticeable factual errors or misleading statements",
			"Significantly inaccurate or contains harmful misinformation",
		}},
		{"engagement", "Is the content readable and compelling?", [5]string{
			"Highly engaging, excellent writing quality, maintains interest throughout",
			"Well-written and interesting with minor dull spots",
			"Readable but somewhat dry or formulaic",
			"Difficult to read, poorly written, or boring",
			"Unreadable, confusing, or off-putting",
		}},
		{"evidence_quality", "Does the content use concrete evidence to support claims?", [5]string{
			"Rich with specific statistics, company examples, academic citations, case studies",
			"Good evidence with several concrete examples and some data",
			"Some evidence but mostly general claims without specifics",
			"Few examples, vague references, lacks concrete data",
			"No evidence, all claims unsupported or purely theoretical",
		}},
		{"balance", "Does the content address both benefits AND limitations/challenges?", [5]string{
			"Thoroughly discusses pros and cons, acknowledges trade-offs and challenges",
			"Good balance with some acknowledgment of limitations",
			"Mentions limitations briefly but mostly one-sided",
			"Almost entirely one-sided, minimal acknowledgment of downsides",
			"Completely one-sided, no mention of limitations or challenges",
		}},
		{"actionability", "Does the content provide practical implementation guidance?", [5]string{
			"Clear step-by-step guidance, specific tips, implementation strategies",
			"Good practical advice with some specific recommendations",
			"Some practical elements but mostly theoretical discussion",
			"Vague suggestions, lacks concrete actionable advice",
			"Purely theoretical, no practical guidance whatsoever",
		}},
		{"depth", "Does the content provide deep analysis or just surface-level summary?", [5]string{
			"Deep analysis with nuanced insights, explores implications thoroughly",
			"Good depth with meaningful analysis beyond basics",
			"Moderate depth, covers basics well but lacks deeper exploration",
			"Shallow treatment, skims surface of topics",
			"Extremely superficial, barely scratches the surface",
		}},
	},
}

// AgentTaskRubric scores tool-using agent runs on outcome rather than prose.
var AgentTaskRubric = Rubric{
	Name: "agent-task",
	SystemPrompt: "You are an expert evaluator assessing AI agent task completion.\n" +
		"Your role is to determine if the agent successfully completed the requested task.\n" +
		"Focus on outcomes and correct tool usage, not writing quality.\n" +
		"Be strict - the task either succeeded or it didn't.",
	Intro:            `Evaluate whether the AI agent successfully completed this task: "%s"`,
	ContentHeading:   "Agent Output to Evaluate",
	ReasoningHint:    "2-3 sentences explaining whether the task was completed successfully and any issues",
	TruncationMarker: "\n\n[Output truncated for evaluation...]",
	Dimensions: []Dimension{
		{"completeness", "Did the agent complete ALL steps of the task?", [5]string{
			"All required steps completed successfully",
			"Most steps completed, minor omissions",
			"Core task done but some steps skipped",
			"Task partially completed, significant steps missing",
			"Task not completed or wrong task performed",
		}},
		{"structure", "Did the agent follow a logical sequence of actions?", [5]string{
			"Optimal sequence, efficient tool usage",
			"Good sequence with minor inefficiencies",
			"Completed task but with unnecessary steps",
			"Confusing sequence, redundant actions",
			"Chaotic, illogical action sequence",
		}},
		{"accuracy", "Did the agent make correct decisions and tool calls?", [5]string{
			"All decisions and parameters correct",
			"Mostly correct with minor issues",
			"Some incorrect choices but recovered",
			"Multiple errors affecting outcome",
			"Fundamentally wrong approach",
		}},
		{"engagement", "Did the agent communicate clearly about its actions?", [5]string{
			"Clear, helpful communication throughout",
			"Good communication with minor gaps",
			"Adequate but could be clearer",
			"Confusing or incomplete communication",
			"Poor or misleading communication",
		}},
		{"evidence_quality", "Did the agent use data from tools correctly?", [5]string{
			"Correctly interpreted all tool responses",
			"Good interpretation with minor issues",
			"Some misinterpretation but functional",
			"Significant misuse of tool data",
			"Ignored or misunderstood tool responses",
		}},
		{"balance", "Did the agent handle the task appropriately (not over/under-doing)?", [5]string{
			"Perfect scope - did exactly what was needed",
			"Appropriate scope with minor extras/omissions",
			"Acceptable but scope could be better",
			"Over-engineered or under-delivered",
			"Completely wrong scope",
		}},
		{"actionability", "Did the agent take concrete actions vs just talking?", [5]string{
			"All necessary actions taken, task completed",
			"Most actions taken, task mostly complete",
			"Some actions taken but incomplete execution",
			"More talk than action, limited progress",
			"No meaningful actions taken",
		}},
		{"depth", "Did the agent handle edge cases and details?", [5]string{
			"Handled all details and potential issues",
			"Good detail handling with minor oversights",
			"Basic handling, some details missed",
			"Shallow execution, many details missed",
			"No attention to details or edge cases",
		}},
	},
}

// RubricByName resolves "content" or "agent-task".
func RubricByName(name string) (Rubric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "content":
		return ContentRubric, nil
	case "agent-task", "agent_task", "agent":
		return AgentTaskRubric, nil
	default:
		return Rubric{}, fmt.Errorf("unknown rubric %q (want content or agent-task)", name)
	}
}
