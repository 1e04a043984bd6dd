// Package client talks to the remote catalog REST service.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/matst80/slask-catalog/pkg/types"
	"github.com/sirupsen/logrus"
)

type StatusError struct {
	StatusCode int
	Url        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.Url, e.StatusCode)
}

// Client implements types.CatalogService over http.
type Client struct {
	BaseUrl string
	Http    *http.Client
	Log     logrus.FieldLogger
}

func New(baseUrl string, timeout time.Duration) *Client {
	return &Client{
		BaseUrl: strings.TrimSuffix(baseUrl, "/"),
		Http:    &http.Client{Timeout: timeout},
		Log:     logrus.StandardLogger(),
	}
}

type listResponse[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	TotalCount int `json:"totalCount"`
}

func (r *listResponse[T]) total() int {
	if r.TotalCount > 0 {
		return r.TotalCount
	}
	return r.Total
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.BaseUrl + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	res, err := c.Http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		io.Copy(io.Discard, res.Body)
		return &StatusError{StatusCode: res.StatusCode, Url: u}
	}
	if err := sonic.ConfigDefault.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", u, err)
	}
	return nil
}

func (c *Client) ListCategories(ctx context.Context) ([]types.Category, error) {
	var res listResponse[types.Category]
	if err := c.get(ctx, "/categories", nil, &res); err != nil {
		return nil, err
	}
	c.Log.Debugf("fetched %d categories", len(res.Items))
	return res.Items, nil
}

func (c *Client) ListSubCategories(ctx context.Context, categoryId string) ([]types.SubCategory, error) {
	query := url.Values{}
	if categoryId != "" {
		query.Set("categoryId", categoryId)
	}
	var res listResponse[types.SubCategory]
	if err := c.get(ctx, "/subcategories", query, &res); err != nil {
		return nil, err
	}
	c.Log.Debugf("fetched %d subcategories for %q", len(res.Items), categoryId)
	return res.Items, nil
}

func (c *Client) ListProducts(ctx context.Context, req types.ProductListRequest) (types.ProductList, error) {
	query, err := req.Values()
	if err != nil {
		return types.ProductList{}, err
	}
	var res listResponse[types.Product]
	if err := c.get(ctx, "/products", query, &res); err != nil {
		return types.ProductList{}, err
	}
	return types.ProductList{Items: res.Items, Total: res.total()}, nil
}
