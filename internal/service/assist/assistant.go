// Package assist runs the AI writing helpers behind the monthly quota.
package assist

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gigmarket/internal/model"
	"gigmarket/internal/provider"
	"gigmarket/internal/service/quota"
	"gigmarket/pkg/apperror"
	"gigmarket/pkg/logger"
	"gigmarket/pkg/metrics"
)

// Meter gates and records metered calls.
type Meter interface {
	CheckAndReserve(ctx context.Context, accountID uuid.UUID) (quota.Decision, error)
	RecordUsage(ctx context.Context, accountID uuid.UUID) error
	Usage(ctx context.Context, accountID uuid.UUID) (quota.Usage, error)
}

// Result is a generated text plus the allowance left after it.
// RemainingUsage is -1 for unlimited tiers.
type Result struct {
	Text           string `json:"text"`
	Kind           string `json:"kind"`
	RemainingUsage int    `json:"remaining_usage"`
}

type Assistant struct {
	meter    Meter
	provider provider.Provider
	logger   *zap.Logger
}

func NewAssistant(meter Meter, p provider.Provider, log *zap.Logger) *Assistant {
	return &Assistant{meter: meter, provider: p, logger: log}
}

func (a *Assistant) Usage(ctx context.Context, accountID uuid.UUID) (quota.Usage, error) {
	return a.meter.Usage(ctx, accountID)
}

// generate checks the allowance, calls the provider and consumes one unit
// only when the provider answered.
func (a *Assistant) generate(ctx context.Context, accountID uuid.UUID, kind, prompt, systemPrompt string) (*Result, error) {
	decision, err := a.meter.CheckAndReserve(ctx, accountID)
	if err != nil {
		return nil, err
	}

	log := logger.WithTrace(ctx, a.logger).With(
		zap.String("account_id", accountID.String()),
		zap.String("kind", kind),
		zap.String("provider", a.provider.Name()),
	)

	text, err := a.provider.Complete(ctx, prompt, systemPrompt)
	if err != nil {
		metrics.IncrementOperationError("assist_"+kind, string(apperror.KindOf(err)))
		log.Warn("Generation failed, quota untouched", zap.Error(err))
		if apperror.KindOf(err) == apperror.KindInternal {
			return nil, apperror.ServiceUnavailable("AI service temporarily unavailable", err)
		}
		return nil, err
	}

	if err := a.meter.RecordUsage(ctx, accountID); err != nil {
		log.Error("Failed to record usage", zap.Error(err))
	}

	remaining := model.UnlimitedQuota
	if decision.Remaining != model.UnlimitedQuota {
		remaining = decision.Remaining - 1
	}
	log.Info("Generation completed", zap.Int("remaining", remaining))
	return &Result{Text: text, Kind: kind, RemainingUsage: remaining}, nil
}

type GigIdeasInput struct {
	Topic    string `json:"topic"`
	Category string `json:"category"`
	Count    int    `json:"count"`
}

func (a *Assistant) GenerateGigIdeas(ctx context.Context, accountID uuid.UUID, in GigIdeasInput) (*Result, error) {
	if strings.TrimSpace(in.Topic) == "" {
		return nil, apperror.InvalidArgument("topic is required")
	}
	if in.Count <= 0 {
		in.Count = 3
	}
	if in.Count > 10 {
		return nil, apperror.InvalidArgument("count must be at most 10")
	}
	prompt := fmt.Sprintf(`Generate %d unique gig ideas for a %s professional interested in %s. For each idea, provide:
1. A catchy title (max 80 characters)
2. A brief description (2-3 sentences)
3. Suggested skills needed
4. Estimated budget range

Format as JSON array.`, in.Count, in.Category, in.Topic)
	return a.generate(ctx, accountID, "gig_ideas", prompt,
		"You are a creative consultant helping freelancers create compelling gig listings.")
}

type ProposalInput struct {
	GigTitle       string   `json:"gig_title"`
	GigDescription string   `json:"gig_description"`
	Skills         []string `json:"skills"`
	DeliveryDays   int      `json:"delivery_days"`
}

func (a *Assistant) GenerateProposal(ctx context.Context, accountID uuid.UUID, in ProposalInput) (*Result, error) {
	if strings.TrimSpace(in.GigTitle) == "" || strings.TrimSpace(in.GigDescription) == "" {
		return nil, apperror.InvalidArgument("gig title and description are required")
	}
	prompt := fmt.Sprintf(`Write a compelling proposal (max 400 words) for this gig:

Title: %s
Description: %s

My skills: %s
I can deliver in: %d days

Make it professional, personalized, and highlight relevant experience.`,
		in.GigTitle, in.GigDescription, strings.Join(in.Skills, ", "), in.DeliveryDays)
	return a.generate(ctx, accountID, "proposal", prompt,
		"You are an expert proposal writer helping freelancers win projects.")
}

type ContentInput struct {
	Type    string `json:"type"`
	Prompt  string `json:"prompt"`
	Context string `json:"context"`
}

var contentSystemPrompts = map[string]string{
	"tagline":     "You are a creative copywriter specializing in taglines.",
	"description": "You are a marketing expert writing product descriptions.",
	"brainstorm":  "You are a creative brainstorming partner.",
}

func (a *Assistant) GenerateContent(ctx context.Context, accountID uuid.UUID, in ContentInput) (*Result, error) {
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, apperror.InvalidArgument("prompt is required")
	}
	system, ok := contentSystemPrompts[in.Type]
	if !ok {
		system = "You are a helpful creative assistant."
	}
	prompt := in.Prompt
	if in.Context != "" {
		prompt = fmt.Sprintf("Context: %s\n\nTask: %s", in.Context, in.Prompt)
	}
	kind := "content"
	if in.Type != "" {
		kind = in.Type
	}
	return a.generate(ctx, accountID, kind, prompt, system)
}

func (a *Assistant) AnalyzeRequirements(ctx context.Context, accountID uuid.UUID, description string) (*Result, error) {
	if strings.TrimSpace(description) == "" {
		return nil, apperror.InvalidArgument("description is required")
	}
	prompt := fmt.Sprintf(`Analyze this project description and extract:
1. Key deliverables
2. Required skills
3. Potential challenges
4. Estimated time range
5. Suggested milestones

Project: %s

Format as structured JSON.`, description)
	return a.generate(ctx, accountID, "analysis", prompt,
		"You are a project analyst helping break down complex requirements.")
}
