package classroom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
)

const defaultAPITimeout = 15 * time.Second

// APIConfig configures the REST client.
type APIConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// API is the classroom REST client. It covers the document surface
// (chapters, sections) and discussion bootstrap; live traffic goes over the
// stream connection instead.
type API struct {
	base   *url.URL
	token  string
	client *http.Client
	logger *log.Logger
}

// NewAPI builds a REST client for the classroom backend.
func NewAPI(cfg APIConfig, logger *log.Logger) (*API, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("classroom: api base url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("classroom: parse base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultAPITimeout
	}
	if logger == nil {
		logger = log.Default()
	}
	return &API{
		base:   base,
		token:  cfg.Token,
		client: &http.Client{Timeout: timeout},
		logger: logger.With("component", "classroom-api"),
	}, nil
}

// Chapters lists the chapters of a document.
func (a *API) Chapters(ctx context.Context, docID string) ([]Chapter, error) {
	var chapters []Chapter
	path := fmt.Sprintf("/api/v1/docs/%s/chapters", url.PathEscape(docID))
	if err := a.get(ctx, path, nil, &chapters); err != nil {
		return nil, err
	}
	return chapters, nil
}

// Sections lists the sections of one chapter, in reading order.
func (a *API) Sections(ctx context.Context, docID string, chapter int) ([]Section, error) {
	var sections []Section
	path := fmt.Sprintf("/api/v1/docs/%s/sections", url.PathEscape(docID))
	query := url.Values{"chapter": {strconv.Itoa(chapter)}}
	if err := a.get(ctx, path, query, &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

// Discussion fetches or creates the discussion channel for a chapter. The
// backend returns the existing channel with history when one exists.
func (a *API) Discussion(ctx context.Context, docID string, chapter int) (*Discussion, error) {
	var discussion Discussion
	path := fmt.Sprintf("/api/v1/docs/%s/chapters/%d/discussion", url.PathEscape(docID), chapter)
	if err := a.post(ctx, path, nil, &discussion); err != nil {
		return nil, err
	}
	return &discussion, nil
}

// Personas lists the AI participants configured for a discussion.
func (a *API) Personas(ctx context.Context, discussionID string) ([]Persona, error) {
	var personas []Persona
	path := fmt.Sprintf("/api/v1/discussions/%s/personas", url.PathEscape(discussionID))
	if err := a.get(ctx, path, nil, &personas); err != nil {
		return nil, err
	}
	return personas, nil
}

// Voices lists the synthesis voice catalog.
func (a *API) Voices(ctx context.Context) ([]Voice, error) {
	var voices []Voice
	if err := a.get(ctx, "/api/v1/voices", nil, &voices); err != nil {
		return nil, err
	}
	return voices, nil
}

func (a *API) get(ctx context.Context, path string, query url.Values, out any) error {
	return a.do(ctx, http.MethodGet, path, query, nil, out)
}

func (a *API) post(ctx context.Context, path string, body, out any) error {
	return a.do(ctx, http.MethodPost, path, nil, body, out)
}

func (a *API) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *a.base
	u.Path, _ = url.JoinPath(u.Path, path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("classroom: encode request: %w", err)
		}
		payload = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), payload)
	if err != nil {
		return fmt.Errorf("classroom: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("classroom: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	a.logger.Debug("request", "method", method, "path", path,
		"status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("classroom: %s %s: unexpected status %d: %s",
			method, path, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("classroom: decode response: %w", err)
	}
	return nil
}
