// Package client is the HTTP client for the document processing API. It
// satisfies the collaborator interfaces of the session, editor, product
// and suggest packages.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"invoiceflow/internal/editor"
	"invoiceflow/internal/product"
	"invoiceflow/internal/session"
	"invoiceflow/internal/suggest"
)

type Client struct {
	Base string
	HTTP *http.Client
}

// New returns a client against the given base URL, e.g.
// "http://localhost:8080".
func New(base string) *Client {
	return &Client{
		Base: strings.TrimRight(base, "/"),
		HTTP: http.DefaultClient,
	}
}

var (
	_ session.Uploader     = (*Client)(nil)
	_ session.Processor    = (*Client)(nil)
	_ session.StatusClient = (*Client)(nil)
	_ editor.Saver         = (*Client)(nil)
	_ product.ConfigLoader = (*Client)(nil)
	_ product.Client       = (*Client)(nil)
	_ suggest.Fetcher      = (*Client)(nil)
)

// Upload submits a document file as multipart form data.
func (c *Client) Upload(ctx context.Context, filename string, data []byte) (session.UploadResult, error) {
	var out session.UploadResult

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return out, err
	}
	if _, err := part.Write(data); err != nil {
		return out, err
	}
	if err := w.Close(); err != nil {
		return out, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+"/api/v1/upload", &body)
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	err = c.do(req, &out)
	return out, err
}

// StartProcessing kicks off extraction for an uploaded document.
func (c *Client) StartProcessing(ctx context.Context, documentID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.Base+"/api/v1/process/"+url.PathEscape(documentID), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// Status reads the current processing state of a document.
func (c *Client) Status(ctx context.Context, documentID string) (session.StatusResponse, error) {
	var out session.StatusResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.Base+"/api/v1/process/"+url.PathEscape(documentID)+"/status", nil)
	if err != nil {
		return out, err
	}
	err = c.do(req, &out)
	return out, err
}

// SaveFields submits the whole field map for a document. The response
// carries status and updated_fields alongside the confirmed field values,
// which are split back out here.
func (c *Client) SaveFields(ctx context.Context, documentID string, fields map[string]any) (editor.SaveResult, error) {
	var out editor.SaveResult

	req, err := c.jsonRequest(ctx, http.MethodPut,
		"/api/v1/update/"+url.PathEscape(documentID), fields)
	if err != nil {
		return out, err
	}

	var raw map[string]any
	if err := c.do(req, &raw); err != nil {
		return out, err
	}

	out.Fields = make(map[string]any, len(raw))
	for key, value := range raw {
		switch key {
		case "status":
			out.Status, _ = value.(string)
		case "updated_fields":
			if list, ok := value.([]any); ok {
				for _, v := range list {
					if s, ok := v.(string); ok {
						out.UpdatedFields = append(out.UpdatedFields, s)
					}
				}
			}
		default:
			out.Fields[key] = value
		}
	}
	return out, nil
}

// ProductConfig fetches the line-item schema configuration.
func (c *Client) ProductConfig(ctx context.Context) (product.SchemaConfig, error) {
	var out product.SchemaConfig
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+"/api/v1/products/config", nil)
	if err != nil {
		return out, err
	}
	err = c.do(req, &out)
	return out, err
}

// Products fetches the line items stored for a document.
func (c *Client) Products(ctx context.Context, documentID string) (product.LoadResult, error) {
	var out product.LoadResult
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.Base+"/api/v1/products/"+url.PathEscape(documentID), nil)
	if err != nil {
		return out, err
	}
	err = c.do(req, &out)
	return out, err
}

// SaveProducts submits a whole line-item batch. A validation rejection
// comes back as success=false with errors, not as a transport error.
func (c *Client) SaveProducts(ctx context.Context, r product.SaveRequest) (product.SaveResult, error) {
	var out product.SaveResult
	req, err := c.jsonRequest(ctx, http.MethodPut, "/api/v1/products/update", r)
	if err != nil {
		return out, err
	}
	err = c.do(req, &out)
	return out, err
}

// Suggestions fetches previously used values for a field.
func (c *Client) Suggestions(ctx context.Context, fieldName string, limit int) ([]string, error) {
	u := c.Base + "/api/v1/field-suggestions/" + url.PathEscape(fieldName) +
		"?limit=" + strconv.Itoa(limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Suggestions, nil
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do executes a request and decodes the JSON body into out when given.
// Unprocessable Entity still decodes: the body carries validation detail.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusUnprocessableEntity {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
