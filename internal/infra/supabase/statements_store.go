package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/spendlens-go/internal/domain"
	"github.com/boddenberg/spendlens-go/internal/infra/resilience"
)

// statementRow maps the statements table columns.
type statementRow struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	FileType     string `json:"file_type"`
	FileHash     string `json:"file_hash"`
	RowCount     int    `json:"row_count"`
	Status       string `json:"status"`
	UploadedAt   string `json:"uploaded_at"`
}

func toStatementRow(s *domain.Statement) statementRow {
	return statementRow{
		ID:           s.ID,
		UserID:       s.UserID,
		Filename:     s.Filename,
		OriginalName: s.OriginalName,
		FileType:     s.FileType,
		FileHash:     s.FileHash,
		RowCount:     s.RowCount,
		Status:       s.Status,
		UploadedAt:   s.UploadedAt.Format(time.RFC3339),
	}
}

func (r statementRow) toDomain() domain.Statement {
	uploadedAt, _ := time.Parse(time.RFC3339, r.UploadedAt)
	return domain.Statement{
		ID:           r.ID,
		UserID:       r.UserID,
		Filename:     r.Filename,
		OriginalName: r.OriginalName,
		FileType:     r.FileType,
		FileHash:     r.FileHash,
		RowCount:     r.RowCount,
		Status:       r.Status,
		UploadedAt:   uploadedAt,
	}
}

// CreateStatement inserts a statement record.
func (c *Client) CreateStatement(ctx context.Context, s *domain.Statement) error {
	ctx, span := tracer.Start(ctx, "Supabase.CreateStatement")
	defer span.End()
	span.SetAttributes(attribute.String("statement.id", s.ID))

	return c.execute(ctx, "statements", func() error {
		_, err := c.doPost(ctx, "statements", toStatementRow(s))
		return err
	})
}

// GetStatementByHash looks up a statement by its content hash.
func (c *Client) GetStatementByHash(ctx context.Context, userID, hash string) (*domain.Statement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetStatementByHash")
	defer span.End()

	var out *domain.Statement
	err := c.execute(ctx, "statements", func() error {
		path := fmt.Sprintf("statements?user_id=eq.%s&file_hash=eq.%s&limit=1", userID, hash)
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "statement", ID: hash})
		}

		var rows []statementRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode statements: %w", err)
		}
		if len(rows) == 0 {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "statement", ID: hash})
		}

		s := rows[0].toDomain()
		out = &s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetStatement fetches one statement by id.
func (c *Client) GetStatement(ctx context.Context, userID, statementID string) (*domain.Statement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetStatement")
	defer span.End()
	span.SetAttributes(attribute.String("statement.id", statementID))

	var out *domain.Statement
	err := c.execute(ctx, "statements", func() error {
		path := fmt.Sprintf("statements?user_id=eq.%s&id=eq.%s&limit=1", userID, statementID)
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "statement", ID: statementID})
		}

		var rows []statementRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode statements: %w", err)
		}
		if len(rows) == 0 {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "statement", ID: statementID})
		}

		s := rows[0].toDomain()
		out = &s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListStatements fetches the user's statements, newest first.
func (c *Client) ListStatements(ctx context.Context, userID string) ([]domain.Statement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListStatements")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var out []domain.Statement
	err := c.execute(ctx, "statements", func() error {
		path := fmt.Sprintf("statements?user_id=eq.%s&order=uploaded_at.desc", userID)
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			out = []domain.Statement{}
			return nil
		}

		var rows []statementRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode statements: %w", err)
		}
		out = make([]domain.Statement, 0, len(rows))
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

// DeleteStatement removes a statement record.
func (c *Client) DeleteStatement(ctx context.Context, userID, statementID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteStatement")
	defer span.End()
	span.SetAttributes(attribute.String("statement.id", statementID))

	return c.execute(ctx, "statements", func() error {
		path := fmt.Sprintf("statements?user_id=eq.%s&id=eq.%s", userID, statementID)
		return c.doDelete(ctx, path)
	})
}
