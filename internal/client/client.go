// Package client 通过 HTTP 访问 api，实现编辑器的持久化端口。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"phFolio/internal/block"
	"phFolio/internal/editor"
	"phFolio/internal/layout"
	"phFolio/internal/page"
)

const maxErrorBody = 8 * 1024

var _ editor.Persister = (*Client)(nil)

// StatusError 表示 api 返回了非 2xx 状态。
type StatusError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("api status %d (code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api status %d: %s", e.StatusCode, e.Message)
}

// EditorConfig 是 /v1/editor/config 的返回值。
type EditorConfig struct {
	HistoryLimit int             `json:"history_limit"`
	Defaults     layout.Profiles `json:"defaults"`
}

// Client 是带访问令牌的 api 客户端。
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// Option 配置 Client。
type Option func(*Client)

// WithHTTPClient 替换默认的 http.Client。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New 创建客户端。baseURL 形如 https://folio.example/api。
func New(baseURL, token string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("api base url missing")
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		token:   token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetToken 替换访问令牌，刷新令牌后调用。
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Load 读取当前账号的页面。
func (c *Client) Load(ctx context.Context) (page.Document, error) {
	var doc page.Document
	if err := c.do(ctx, http.MethodGet, "/v1/page", nil, &doc); err != nil {
		return page.Document{}, err
	}
	if doc.Layouts == nil {
		doc.Layouts = layout.NewLayouts()
	}
	if doc.GridSettings == nil {
		doc.GridSettings = layout.DefaultProfiles()
	}
	return doc, nil
}

// CreateBlock 创建块并返回带服务端 ID 的记录。
func (c *Client) CreateBlock(ctx context.Context, b block.Block) (block.Block, error) {
	var created block.Block
	if err := c.do(ctx, http.MethodPost, "/v1/page/blocks", b, &created); err != nil {
		return block.Block{}, err
	}
	return created, nil
}

// Save 提交完整页面。
func (c *Client) Save(ctx context.Context, doc page.Document) error {
	return c.do(ctx, http.MethodPut, "/v1/page", doc, nil)
}

// EditorConfig 读取历史栈容量与网格默认值。
func (c *Client) EditorConfig(ctx context.Context) (EditorConfig, error) {
	var cfg EditorConfig
	if err := c.do(ctx, http.MethodGet, "/v1/editor/config", nil, &cfg); err != nil {
		return EditorConfig{}, err
	}
	return cfg, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func statusError(resp *http.Response) *StatusError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	se := &StatusError{StatusCode: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
		Code  int    `json:"code"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		se.Message, se.Code = body.Error, body.Code
	} else {
		se.Message = strings.TrimSpace(string(raw))
	}
	return se
}
