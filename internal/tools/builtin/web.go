// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package builtin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/stratuscode/orchestrator/internal/tools"
)

const (
	webSearchMaxResults = 10
	webFetchMaxBytes    = 50 * 1024
	webUserAgent        = "Mozilla/5.0 (compatible; stratuscode-orchestrator/1.0)"
)

// searchResult is one DuckDuckGo lite hit.
type searchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// WebSearchTool searches the web by scraping DuckDuckGo's lite HTML
// endpoint, which needs no API key.
type WebSearchTool struct {
	httpClient *http.Client
}

func NewWebSearchTool(httpClient *http.Client) *WebSearchTool {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &WebSearchTool{httpClient: httpClient}
}

func (t *WebSearchTool) Name() string             { return "websearch" }
func (t *WebSearchTool) Category() tools.Category { return tools.CategoryWeb }
func (t *WebSearchTool) Description() string {
	return "Searches the web via DuckDuckGo and returns up to 10 results (title + URL)."
}

func (t *WebSearchTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("Parameters for websearch", map[string]*tools.JSONSchema{
		"query": tools.NewStringSchema("Search query"),
	}, []string{"query"})
}

func (t *WebSearchTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	query, _ := params["query"].(string)
	if query == "" {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "invalid_params", Message: "query is required"}}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://lite.duckduckgo.com/lite/?q="+url.QueryEscape(query), nil)
	if err != nil {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "request_failed", Message: err.Error()}}, nil
	}
	req.Header.Set("User-Agent", webUserAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "request_failed", Message: err.Error(), Retryable: true}}, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "search_failed", Message: fmt.Sprintf("duckduckgo returned %d", resp.StatusCode), Retryable: resp.StatusCode >= 500}}, nil
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "parse_failed", Message: err.Error()}}, nil
	}

	results := extractDDGResults(doc, webSearchMaxResults)
	return &tools.Result{Success: true, Data: map[string]interface{}{
		"query":   query,
		"results": results,
	}}, nil
}

// extractDDGResults walks the lite.duckduckgo.com result table, picking out
// the anchors tagged class="result-link".
func extractDDGResults(n *html.Node, max int) []searchResult {
	var results []searchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= max {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "result-link") {
			href := attr(n, "href")
			title := strings.TrimSpace(textContent(n))
			if href != "" && title != "" {
				results = append(results, searchResult{Title: title, URL: href})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return results
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}

// WebFetchTool retrieves a URL's text content, capped at 50KB.
type WebFetchTool struct {
	httpClient *http.Client
}

func NewWebFetchTool(httpClient *http.Client) *WebFetchTool {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &WebFetchTool{httpClient: httpClient}
}

func (t *WebFetchTool) Name() string             { return "webfetch" }
func (t *WebFetchTool) Category() tools.Category { return tools.CategoryWeb }
func (t *WebFetchTool) Description() string {
	return "Fetches a URL and returns its text content, capped at 50KB."
}

func (t *WebFetchTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("Parameters for webfetch", map[string]*tools.JSONSchema{
		"url": tools.NewStringSchema("URL to fetch"),
	}, []string{"url"})
}

func (t *WebFetchTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	target, _ := params["url"].(string)
	if target == "" {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "invalid_params", Message: "url is required"}}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "invalid_params", Message: err.Error()}}, nil
	}
	req.Header.Set("User-Agent", webUserAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "request_failed", Message: err.Error(), Retryable: true}}, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "fetch_failed", Message: fmt.Sprintf("%s returned %d", target, resp.StatusCode), Retryable: resp.StatusCode >= 500}}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, webFetchMaxBytes+1))
	if err != nil {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "fetch_failed", Message: err.Error()}}, nil
	}

	text := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		if doc, err := html.Parse(strings.NewReader(text)); err == nil {
			text = textContent(doc)
		}
	}
	truncated := false
	if len(text) > webFetchMaxBytes {
		text = text[:webFetchMaxBytes]
		truncated = true
	}

	return &tools.Result{Success: true, Data: map[string]interface{}{
		"url":       target,
		"content":   strings.TrimSpace(text),
		"truncated": truncated,
	}}, nil
}
