package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmcsvoices/creative-ai-agents/internal/log"
)

// Research search types. Web search gathers sources plus an AI answer,
// qna returns just the answer, context packs sources for background use.
const (
	SearchTypeWeb     = "web_search"
	SearchTypeQnA     = "qna_search"
	SearchTypeContext = "context_search"
)

const (
	tavilyBaseURL = "https://api.tavily.com"
	tavilyTimeout = 30 * time.Second

	// maxSourceChars truncates per-source content so a research result
	// stays a digestible chat message.
	maxSourceChars = 300
)

// ResearchRequest is one research query from an agent.
type ResearchRequest struct {
	Query       string
	SearchType  string
	SearchDepth string // basic or advanced
	MaxResults  int
}

// Researcher answers research requests with formatted text an agent can
// fold into its writing.
type Researcher interface {
	Research(ctx context.Context, req ResearchRequest) (string, error)
}

// TavilyClient implements Researcher against the Tavily search API.
type TavilyClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

var _ Researcher = (*TavilyClient)(nil)

// NewTavilyClient returns a client using the given API key.
func NewTavilyClient(apiKey string) *TavilyClient {
	return &TavilyClient{
		apiKey:  apiKey,
		baseURL: tavilyBaseURL,
		client:  &http.Client{Timeout: tavilyTimeout},
	}
}

// tavilySearchRequest is the /search request body.
type tavilySearchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilyResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

type tavilySearchResponse struct {
	Answer  string         `json:"answer"`
	Results []tavilyResult `json:"results"`
}

// Research runs the requested search type and formats the outcome for the
// session transcript.
func (c *TavilyClient) Research(ctx context.Context, req ResearchRequest) (string, error) {
	switch req.SearchType {
	case SearchTypeWeb:
		return c.webSearch(ctx, req)
	case SearchTypeQnA:
		return c.qnaSearch(ctx, req)
	case SearchTypeContext:
		return c.contextSearch(ctx, req)
	default:
		return "", fmt.Errorf("invalid search_type %q: use %s, %s, or %s",
			req.SearchType, SearchTypeWeb, SearchTypeQnA, SearchTypeContext)
	}
}

func (c *TavilyClient) webSearch(ctx context.Context, req ResearchRequest) (string, error) {
	resp, err := c.search(ctx, req, true)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Research Results for: %s\n\n", req.Query)
	if resp.Answer != "" {
		fmt.Fprintf(&b, "Key Insight: %s\n\n", resp.Answer)
	}
	b.WriteString("Current Information:\n")
	results := resp.Results
	if len(results) > 3 {
		results = results[:3]
	}
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, title)
		if r.Content != "" {
			content := strings.TrimSpace(strings.ReplaceAll(r.Content, "\n", " "))
			if len(content) > maxSourceChars {
				content = content[:maxSourceChars] + "..."
			}
			fmt.Fprintf(&b, "   %s\n", content)
		}
		url := r.URL
		if url == "" {
			url = "Unknown"
		}
		fmt.Fprintf(&b, "   Source: %s\n\n", url)
	}
	return b.String(), nil
}

func (c *TavilyClient) qnaSearch(ctx context.Context, req ResearchRequest) (string, error) {
	resp, err := c.search(ctx, req, true)
	if err != nil {
		return "", err
	}
	if resp.Answer == "" {
		return "", fmt.Errorf("no answer returned for %q", req.Query)
	}
	return fmt.Sprintf("Research Question: %s\n\nAnswer: %s\n\n"+
		"This information is current and can be used as factual reference in your writing.",
		req.Query, resp.Answer), nil
}

// contextSource mirrors the shape RAG consumers expect for packed context.
type contextSource struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

func (c *TavilyClient) contextSearch(ctx context.Context, req ResearchRequest) (string, error) {
	resp, err := c.search(ctx, req, false)
	if err != nil {
		return "", err
	}
	sources := make([]contextSource, 0, len(resp.Results))
	for _, r := range resp.Results {
		sources = append(sources, contextSource{URL: r.URL, Content: r.Content})
	}
	packed, err := json.Marshal(sources)
	if err != nil {
		return "", fmt.Errorf("packing context: %w", err)
	}
	return fmt.Sprintf("Background Context: %s\n\n%s\n\n"+
		"This context provides comprehensive background information for creative writing purposes.",
		req.Query, packed), nil
}

func (c *TavilyClient) search(ctx context.Context, req ResearchRequest, includeAnswer bool) (*tavilySearchResponse, error) {
	maxResults := req.MaxResults
	if maxResults < 1 {
		maxResults = 1
	} else if maxResults > 10 {
		maxResults = 10
	}
	depth := req.SearchDepth
	if depth == "" {
		depth = "basic"
	}

	body, err := json.Marshal(tavilySearchRequest{
		APIKey:        c.apiKey,
		Query:         req.Query,
		SearchDepth:   depth,
		MaxResults:    maxResults,
		IncludeAnswer: includeAnswer,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	log.Debug(log.CatAgent, "tavily search", "query", req.Query, "depth", depth, "max_results", maxResults)
	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("search returned %d: %s", httpResp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var resp tavilySearchResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return &resp, nil
}
