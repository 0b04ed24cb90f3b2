package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/macrocart/v2/internal/infrastructure/config"
	"github.com/macrocart/v2/internal/infrastructure/monitoring"
	"github.com/macrocart/v2/internal/ports/outbound"
	apperrors "github.com/macrocart/v2/pkg/errors"
	"go.uber.org/zap"
)

// DescriptionClient asks the model for one-sentence meal blurbs. Callers
// treat failures as cosmetic and fall back to an empty description.
type DescriptionClient struct {
	chat
}

var _ outbound.DescriptionClient = (*DescriptionClient)(nil)

// NewDescriptionClient creates the description client with the short call
// budget.
func NewDescriptionClient(cfg *config.LLMConfig, metrics *monitoring.MetricsCollector, logger *zap.Logger) *DescriptionClient {
	return &DescriptionClient{
		chat: newChat(cfg, cfg.DescribeTimeout, metrics, logger.Named("describe-client")),
	}
}

const describeSystemPrompt = `You write one-sentence menu descriptions. Respond with a single plain-text sentence under 160 characters. No markdown, no quotes, no lists.`

// Describe returns a short blurb for one solved meal.
func (c *DescriptionClient) Describe(ctx context.Context, req outbound.DescribeRequest) (string, error) {
	user := fmt.Sprintf("Describe this meal: %s. Ingredients: %s.",
		req.Title, strings.Join(req.Items, ", "))

	response, err := c.complete(ctx, describeSystemPrompt, user)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(response)
	text = strings.Trim(text, `"`)
	if text == "" {
		return "", apperrors.NewAppError(apperrors.CodeUpstream5xx,
			"Upstream service error",
			"llm returned an empty description")
	}

	c.logger.Debug("Meal description generated",
		zap.String("title", req.Title),
		zap.Int("length", len(text)))

	return text, nil
}
