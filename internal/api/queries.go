package api

import (
	"context"
	"fmt"
	"net/http"

	"docqa-client/internal/model"
)

func (c *Client) SubmitQuery(ctx context.Context, text string) (*model.AnswerResult, error) {
	var out model.AnswerResult
	in := map[string]string{"query_text": text}
	if err := c.sendJSON(ctx, http.MethodPost, "/queries/", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListQueries(ctx context.Context) ([]model.QueryRecord, error) {
	var out []model.QueryRecord
	if err := c.getJSON(ctx, "/queries/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetQuery(ctx context.Context, id uint) (*model.QueryRecord, error) {
	var out model.QueryRecord
	if err := c.getJSON(ctx, fmt.Sprintf("/queries/%d", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
