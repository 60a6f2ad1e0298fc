package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/spendlens-go/internal/domain"
)

// insightRow maps the insights table columns.
type insightRow struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Type        string          `json:"type"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Severity    string          `json:"severity"`
	Data        json.RawMessage `json:"data,omitempty"`
	Period      string          `json:"period,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

func toInsightRow(i domain.Insight) insightRow {
	return insightRow{
		ID:          i.ID,
		UserID:      i.UserID,
		Type:        string(i.Type),
		Title:       i.Title,
		Description: i.Description,
		Severity:    string(i.Severity),
		Data:        i.Data,
		Period:      i.Period,
		CreatedAt:   i.CreatedAt.Format(time.RFC3339),
	}
}

func (r insightRow) toDomain() domain.Insight {
	createdAt, _ := time.Parse(time.RFC3339, r.CreatedAt)
	return domain.Insight{
		ID:          r.ID,
		UserID:      r.UserID,
		Type:        domain.InsightType(r.Type),
		Title:       r.Title,
		Description: r.Description,
		Severity:    domain.Severity(r.Severity),
		Data:        r.Data,
		Period:      r.Period,
		CreatedAt:   createdAt,
	}
}

// ReplaceInsights swaps the user's insight set in one transaction via
// the replace_insights database function, so readers never see a
// half-replaced set.
func (c *Client) ReplaceInsights(ctx context.Context, userID string, insights []domain.Insight) error {
	ctx, span := tracer.Start(ctx, "Supabase.ReplaceInsights")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.Int("count", len(insights)),
	)

	rows := make([]insightRow, 0, len(insights))
	for _, i := range insights {
		rows = append(rows, toInsightRow(i))
	}

	return c.execute(ctx, "insights", func() error {
		_, err := c.doPost(ctx, "rpc/replace_insights", map[string]any{
			"p_user_id":  userID,
			"p_insights": rows,
		})
		return err
	})
}

// ListInsights fetches the user's stored insights.
func (c *Client) ListInsights(ctx context.Context, userID string) ([]domain.Insight, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListInsights")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var out []domain.Insight
	err := c.execute(ctx, "insights", func() error {
		path := fmt.Sprintf("insights?user_id=eq.%s&order=created_at.desc", userID)
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			out = []domain.Insight{}
			return nil
		}

		var rows []insightRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode insights: %w", err)
		}
		out = make([]domain.Insight, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
