package pipelines

import (
	"context"
	"strings"

	"github.com/daryltucker/forest-bench/internal/llm"
	"github.com/daryltucker/forest-bench/internal/output"
	"github.com/daryltucker/forest-bench/internal/registry"
)

const reflectionPrompt = "An AI-powered platform connecting travelers with sustainable Alpine experiences in Switzerland. " +
	"Features eco-certified accommodations, local mountain guides, farm-to-table restaurants, and carbon-neutral transport options. " +
	"Uses AI to create personalized itineraries that minimize environmental impact while maximizing authentic Swiss mountain culture experiences. " +
	"Target market: environmentally-conscious international travelers seeking premium sustainable tourism in the Swiss Alps."

const defaultMaxIterations = 3

var (
	singleShotInstructions = dedent(`
		You are an expert startup pitch writer. Given a startup idea, create a
		compelling pitch that covers all the essential elements investors look for.

		Structure your pitch with these sections:
		1. **Problem**: What pain point are you solving? Make it compelling.
		2. **Solution**: How does your product/service solve this problem?
		3. **Market Size**: TAM/SAM/SOM - be specific with numbers.
		4. **Business Model**: How will you make money?
		5. **Traction**: Any validation, users, or revenue?
		6. **Competition**: Who else is in this space? What's your moat?
		7. **Team**: Why is this the right team? (hypothetical if not specified)
		8. **The Ask**: What funding are you seeking and what will you use it for?

		Make the pitch persuasive yet realistic. Use specific numbers and examples
		where possible. The pitch should be ready for an investor presentation.
	`)

	selfReflectionInstructions = dedent(`
		You are an expert startup pitch writer with strong self-critique abilities.

		You will go through three phases:

		PHASE 1 - INITIAL DRAFT:
		Create a compelling startup pitch covering: Problem, Solution, Market Size,
		Business Model, Traction, Competition, Team, and The Ask.

		PHASE 2 - SELF-CRITIQUE:
		After creating the draft, put on your "skeptical VC" hat and critically evaluate
		your own pitch. Consider: Is the problem compelling? Is the market size credible?
		Is the business model viable? What are the weaknesses?

		PHASE 3 - REVISION:
		Based on your self-critique, revise and strengthen the pitch. Address the
		weaknesses you identified while maintaining a compelling narrative.

		Output ONLY the final revised pitch after completing all three phases internally.
		Do not show the intermediate steps - just provide the polished final pitch.
	`)

	pitchWriterInstructions = dedent(`
		You are an expert startup pitch writer. Given a startup idea, create a
		compelling pitch that covers: Problem, Solution, Market Size, Business Model,
		Traction, Competition, Team, and The Ask.

		When given feedback from investors, thoughtfully address their concerns
		while maintaining a compelling narrative. Focus on making the pitch stronger
		with each revision.

		Structure your pitch with clear sections and make it persuasive yet realistic.
	`)

	criticInstructions = dedent(`
		You are a skeptical VC partner evaluating startup pitches. Your job is to
		find weaknesses and ask tough questions. Evaluate the pitch on:
		- Problem clarity and market pain
		- Solution-market fit
		- TAM/SAM/SOM credibility
		- Competitive differentiation
		- Business model viability
		- Traction and validation
		- Team execution ability

		Provide specific, actionable feedback. Be constructive but rigorous.

		IMPORTANT: At the end of your critique, you MUST include one of these verdicts:
		- "APPROVED" - if the pitch is strong enough for an investor meeting
		- "NEEDS_REVISION" - if the pitch needs more work

		Only approve if the pitch genuinely addresses the core investor concerns.
	`)
)

// Reflection compares a single-shot pitch with self-critique and a writer/critic loop.
func Reflection(d Deps) registry.Source {
	return func() (registry.Group, error) {
		return registry.Group{
			Category:    "reflection",
			Prompt:      reflectionPrompt,
			Description: "Startup pitch generation with reflection pattern",
			Candidates: []registry.Method{
				{
					Name:        "single-shot",
					Description: "Direct pitch generation without reflection",
					Baseline:    true,
					New:         func() (any, error) { return d.singleShot() },
				},
				{
					Name:        "self-reflection",
					Description: "Single agent with internal self-critique loop",
					New:         func() (any, error) { return d.selfReflection() },
				},
				{
					Name:        "two-agent",
					Description: "PitchWriter + VCCritic iterative refinement",
					New:         func() (any, error) { return d.twoAgent() },
				},
			},
		}, nil
	}
}

func (d Deps) singleShot() (registry.PromptFunc, error) {
	writer, err := d.agent("SingleShotPitchWriter", d.Models.pick(d.Models.PitchWriter))
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, prompt string) (registry.Output, error) {
		pitch, err := writer.ask(ctx, llm.System(singleShotInstructions), llm.User(prompt))
		if err != nil {
			return registry.Output{}, err
		}
		return registry.Output{Content: pitch, AgentModels: agentModels(writer)}, nil
	}, nil
}

func (d Deps) selfReflection() (registry.PromptFunc, error) {
	writer, err := d.agent("SelfReflectionAgent", d.Models.pick(d.Models.PitchWriter))
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, prompt string) (registry.Output, error) {
		pitch, err := writer.ask(ctx, llm.System(selfReflectionInstructions), llm.User("Create a startup pitch for: "+prompt))
		if err != nil {
			return registry.Output{}, err
		}
		return registry.Output{Content: pitch, AgentModels: agentModels(writer)}, nil
	}, nil
}

func (d Deps) twoAgent() (registry.PromptFunc, error) {
	writer, err := d.agent("PitchWriter", d.Models.pick(d.Models.PitchWriter))
	if err != nil {
		return nil, err
	}
	critic, err := d.agent("VCCritic", d.Models.pick(d.Models.Critic))
	if err != nil {
		return nil, err
	}
	maxIter := d.Models.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}

	return func(ctx context.Context, prompt string) (registry.Output, error) {
		conversation := []llm.Message{
			llm.System(pitchWriterInstructions),
			llm.User("Create a startup pitch for: " + prompt),
		}
		pitch, err := writer.ask(ctx, conversation...)
		if err != nil {
			return registry.Output{}, err
		}
		conversation = append(conversation, llm.Assistant(pitch))

		for i := 0; i < maxIter; i++ {
			critique, err := critic.ask(ctx,
				llm.System(criticInstructions),
				llm.User("Please evaluate this startup pitch:\n\n"+pitch),
			)
			if err != nil {
				return registry.Output{}, err
			}
			if Approved(critique) {
				output.Logger.Debug("Pitch approved", "iteration", i+1)
				break
			}
			if i == maxIter-1 {
				output.Logger.Debug("Max iterations reached", "iterations", maxIter)
				break
			}

			conversation = append(conversation, llm.User(
				"The VC provided this feedback on your pitch:\n\n"+critique+
					"\n\nPlease revise the pitch to address these concerns while maintaining a compelling narrative."))
			pitch, err = writer.ask(ctx, conversation...)
			if err != nil {
				return registry.Output{}, err
			}
			conversation = append(conversation, llm.Assistant(pitch))
		}
		return registry.Output{Content: pitch, AgentModels: agentModels(writer, critic)}, nil
	}, nil
}

// Approved reports whether a critique carries an unqualified approval verdict.
func Approved(critique string) bool {
	c := strings.ToUpper(critique)
	return strings.Contains(c, "APPROVED") &&
		!strings.Contains(c, "NOT APPROVED") &&
		!strings.Contains(c, "NEEDS_REVISION")
}
