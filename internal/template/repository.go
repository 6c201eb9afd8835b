package template

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

var ErrTemplateNotFound = errors.New("template not found")

type Page struct {
	Templates  []MessageTemplate `json:"templates"`
	Total      int               `json:"total"`
	TotalPages int               `json:"totalPages"`
	IsFirst    bool              `json:"isFirst"`
	IsLast     bool              `json:"isLast"`
}

// Repository is the external template CRUD collaborator.
type Repository interface {
	List(ctx context.Context, channel Channel, page, pageSize int) (Page, error)
	Get(ctx context.Context, id string) (MessageTemplate, error)
	Create(ctx context.Context, t MessageTemplate) (MessageTemplate, error)
	Update(ctx context.Context, t MessageTemplate) (MessageTemplate, error)
	Delete(ctx context.Context, id string) error
}

type HTTPRepository struct {
	baseURL string
	client  *http.Client
}

func NewHTTPRepository(baseURL string, timeout time.Duration) *HTTPRepository {
	return &HTTPRepository{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (r *HTTPRepository) List(ctx context.Context, channel Channel, page, pageSize int) (Page, error) {
	q := url.Values{}
	q.Set("channel", string(channel))
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))

	var out Page
	if err := r.do(ctx, http.MethodGet, "/templates?"+q.Encode(), nil, &out); err != nil {
		return Page{}, err
	}
	return out, nil
}

func (r *HTTPRepository) Get(ctx context.Context, id string) (MessageTemplate, error) {
	var out MessageTemplate
	if err := r.do(ctx, http.MethodGet, "/templates/"+url.PathEscape(id), nil, &out); err != nil {
		return MessageTemplate{}, err
	}
	return out, nil
}

func (r *HTTPRepository) Create(ctx context.Context, t MessageTemplate) (MessageTemplate, error) {
	t.RecomputeVariables()
	var out MessageTemplate
	if err := r.do(ctx, http.MethodPost, "/templates", t, &out); err != nil {
		return MessageTemplate{}, err
	}
	return out, nil
}

func (r *HTTPRepository) Update(ctx context.Context, t MessageTemplate) (MessageTemplate, error) {
	t.RecomputeVariables()
	var out MessageTemplate
	if err := r.do(ctx, http.MethodPut, "/templates/"+url.PathEscape(t.ID), t, &out); err != nil {
		return MessageTemplate{}, err
	}
	return out, nil
}

func (r *HTTPRepository) Delete(ctx context.Context, id string) error {
	return r.do(ctx, http.MethodDelete, "/templates/"+url.PathEscape(id), nil, nil)
}

func (r *HTTPRepository) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("template repository: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrTemplateNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Message == "" {
			e.Message = resp.Status
		}
		return fmt.Errorf("template repository: %s", e.Message)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
