package pipelines

import (
	"context"

	"github.com/daryltucker/forest-bench/internal/llm"
	"github.com/daryltucker/forest-bench/internal/registry"
)

const chainingPrompt = "The benefits of test-driven development in software engineering"

var (
	researcherInstructions = dedent(`
		You are a research assistant specializing in gathering and synthesizing information.

		When given a topic:
		1. Identify the main concepts and subtopics
		2. List 3-5 key points that should be covered
		3. Note any important facts, statistics, or examples
		4. Identify the target audience and appropriate tone

		Output format: Structured research notes with clear sections.
		Keep your response concise but comprehensive.
	`)

	outlinerInstructions = dedent(`
		You are a content strategist who creates clear, logical outlines.

		Based on the research notes provided:
		1. Create a hierarchical outline with main sections and subsections
		2. Include brief descriptions for each section (1-2 sentences)
		3. Suggest an introduction hook and conclusion
		4. Recommend word count per section

		Output format: Numbered outline with clear hierarchy.
		Focus on logical flow and reader engagement.
	`)

	writerInstructions = dedent(`
		You are a professional content writer who creates engaging, well-structured articles.

		Based on the outline provided:
		1. Write polished content following the outline structure
		2. Use clear, engaging language appropriate for the target audience
		3. Include transitions between sections
		4. Add a compelling introduction and satisfying conclusion

		IMPORTANT: Output ONLY the final article. Do not include the research notes, outline, or any previous context in your output.

		Your output should be a complete, polished article with headers and formatted paragraphs.
		Maintain consistent tone throughout.
	`)

	combinedInstructions = dedent(`
		You are a professional content writer who creates engaging, well-structured articles.

		When given a topic, follow these steps internally:

		## Step 1: Research
		- Identify the main concepts and subtopics
		- List 3-5 key points that should be covered
		- Note any important facts, statistics, or examples
		- Identify the target audience and appropriate tone

		## Step 2: Outline
		- Create a hierarchical outline with main sections and subsections
		- Include brief descriptions for each section (1-2 sentences)
		- Suggest an introduction hook and conclusion
		- Recommend word count per section
		- Focus on logical flow and reader engagement

		## Step 3: Write
		- Write polished content following the outline structure
		- Use clear, engaging language appropriate for the target audience
		- Include transitions between sections
		- Add a compelling introduction and satisfying conclusion

		IMPORTANT: Output ONLY the final article. Do not include the research notes, outline, or any previous context in your output.

		Your output should be a complete, polished article with headers and formatted paragraphs.
		Maintain consistent tone throughout.
	`)
)

// PromptChaining compares a three-step researcher/outliner/writer chain with a
// single agent given the combined instructions.
func PromptChaining(d Deps) registry.Source {
	return func() (registry.Group, error) {
		return registry.Group{
			Category:    "prompt-chaining",
			Prompt:      chainingPrompt,
			Description: "Content generation with prompt chaining",
			Candidates: []registry.Method{
				{
					Name:        "single-agent",
					Description: "Single agent with combined instructions",
					Baseline:    true,
					New:         func() (any, error) { return d.singleAgent() },
				},
				{
					Name:        "multi-agent",
					Description: "3-agent pipeline: Researcher -> Outliner -> Writer",
					New:         func() (any, error) { return d.multiAgent() },
				},
			},
		}, nil
	}
}

func (d Deps) singleAgent() (registry.PromptFunc, error) {
	writer, err := d.agent("CombinedContentAgent", d.Models.pick(d.Models.Writer))
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, prompt string) (registry.Output, error) {
		text, err := writer.ask(ctx, llm.System(combinedInstructions), llm.User(prompt))
		if err != nil {
			return registry.Output{}, err
		}
		return registry.Output{Content: text, AgentModels: agentModels(writer)}, nil
	}, nil
}

func (d Deps) multiAgent() (registry.PromptFunc, error) {
	researcher, err := d.agent("Researcher", d.Models.pick(d.Models.Researcher))
	if err != nil {
		return nil, err
	}
	outliner, err := d.agent("Outliner", d.Models.pick(d.Models.Outliner))
	if err != nil {
		return nil, err
	}
	writer, err := d.agent("Writer", d.Models.pick(d.Models.Writer))
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, prompt string) (registry.Output, error) {
		notes, err := researcher.ask(ctx, llm.System(researcherInstructions), llm.User(prompt))
		if err != nil {
			return registry.Output{}, err
		}
		outline, err := outliner.ask(ctx, llm.System(outlinerInstructions), llm.User(notes))
		if err != nil {
			return registry.Output{}, err
		}
		article, err := writer.ask(ctx, llm.System(writerInstructions), llm.User(outline))
		if err != nil {
			return registry.Output{}, err
		}
		return registry.Output{Content: article, AgentModels: agentModels(researcher, outliner, writer)}, nil
	}, nil
}
