// Package remote is the HTTP client for the row-store server. Rows are
// opaque JSON blobs keyed by collection and id; the client does not
// interpret them.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/oapi-codegen/runtime"
	"github.com/warestage/loadsheet-client/pkg/appcontext"
)

// ErrNetworkUnavailable is returned whenever the request fails at the
// transport level. Callers route this to the offline queue; every other
// error means the server was reached and rejected the call.
var ErrNetworkUnavailable = errors.New("network unavailable")

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Body)
}

// Row is one record as returned by the server.
type Row struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Events is one batch from the change feed. Collections lists the cache
// keys invalidated by changes the server observed since the cursor.
type Events struct {
	Cursor      int64    `json:"cursor"`
	Collections []string `json:"collections"`
}

// RequestEditorFn is the function signature for the RequestEditor callback function.
type RequestEditorFn func(ctx context.Context, req *http.Request) error

// HttpRequestDoer performs HTTP requests.
//
// The standard http.Client implements this interface.
type HttpRequestDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to a single row-store server.
type Client struct {
	// Server is the endpoint of the server, with scheme.
	Server string

	// Doer for performing requests, typically a *http.Client with any
	// customized settings, such as certificate chains.
	Client HttpRequestDoer

	// A list of callbacks for modifying requests which are generated before
	// sending over the network.
	RequestEditors []RequestEditorFn
}

// ClientOption allows setting custom parameters during construction.
type ClientOption func(*Client) error

// NewClient creates a new Client with reasonable defaults.
func NewClient(server string, opts ...ClientOption) (*Client, error) {
	client := Client{
		Server: server,
	}
	for _, o := range opts {
		if err := o(&client); err != nil {
			return nil, err
		}
	}
	if !strings.HasSuffix(client.Server, "/") {
		client.Server += "/"
	}
	if client.Client == nil {
		client.Client = &http.Client{}
	}
	return &client, nil
}

// WithHTTPClient allows overriding the default Doer, which is
// automatically created using http.Client. This is useful for tests.
func WithHTTPClient(doer HttpRequestDoer) ClientOption {
	return func(c *Client) error {
		c.Client = doer
		return nil
	}
}

// WithRequestEditorFn allows setting up a callback function, which will be
// called right before sending the request. This can be used to mutate the request.
func WithRequestEditorFn(fn RequestEditorFn) ClientOption {
	return func(c *Client) error {
		c.RequestEditors = append(c.RequestEditors, fn)
		return nil
	}
}

// TokenEditor attaches the bearer token carried in the request context, if
// any. Wired in by the composition root.
func TokenEditor() RequestEditorFn {
	return func(ctx context.Context, req *http.Request) error {
		if token, ok := appcontext.Token(ctx); ok && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return nil
	}
}

func (c *Client) applyEditors(ctx context.Context, req *http.Request) error {
	for _, fn := range c.RequestEditors {
		if err := fn(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	serverURL, err := url.Parse(c.Server)
	if err != nil {
		return nil, err
	}
	queryURL, err := serverURL.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, queryURL.String(), bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do sends the request, mapping transport failures to ErrNetworkUnavailable
// and non-2xx responses to *StatusError. On success it returns the response
// body.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if err := c.applyEditors(req.Context(), req); err != nil {
		return nil, err
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, ErrNetworkUnavailable
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ErrNetworkUnavailable
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

func pathParam(name, value string) (string, error) {
	return runtime.StyleParamWithLocation("simple", false, name, runtime.ParamLocationPath, value)
}

// CreateRecord inserts a row.
func (c *Client) CreateRecord(ctx context.Context, collection, id string, data json.RawMessage) error {
	collectionParam, err := pathParam("collection", collection)
	if err != nil {
		return err
	}
	idParam, err := pathParam("id", id)
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPost, fmt.Sprintf("records/%s/%s", collectionParam, idParam), data)
	if err != nil {
		return err
	}
	_, err = c.do(req)
	return err
}

// UpdateRecord replaces a row.
func (c *Client) UpdateRecord(ctx context.Context, collection, id string, data json.RawMessage) error {
	collectionParam, err := pathParam("collection", collection)
	if err != nil {
		return err
	}
	idParam, err := pathParam("id", id)
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPut, fmt.Sprintf("records/%s/%s", collectionParam, idParam), data)
	if err != nil {
		return err
	}
	_, err = c.do(req)
	return err
}

// DeleteRecord removes a row.
func (c *Client) DeleteRecord(ctx context.Context, collection, id string) error {
	collectionParam, err := pathParam("collection", collection)
	if err != nil {
		return err
	}
	idParam, err := pathParam("id", id)
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodDelete, fmt.Sprintf("records/%s/%s", collectionParam, idParam), nil)
	if err != nil {
		return err
	}
	_, err = c.do(req)
	return err
}

// GetAllRecords fetches every row of a collection. Used for cache
// population after invalidation.
func (c *Client) GetAllRecords(ctx context.Context, collection string) ([]Row, error) {
	collectionParam, err := pathParam("collection", collection)
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodGet, "records/"+collectionParam, nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var rows []Row
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode rows: %w", err)
	}
	return rows, nil
}

// UpdateUser replaces a user row.
func (c *Client) UpdateUser(ctx context.Context, id string, data json.RawMessage) error {
	idParam, err := pathParam("id", id)
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPut, "users/"+idParam, data)
	if err != nil {
		return err
	}
	_, err = c.do(req)
	return err
}

// Ping checks that the server is reachable. The connectivity monitor calls
// this on its probe interval.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "ping", nil)
	if err != nil {
		return err
	}
	_, err = c.do(req)
	return err
}

// NextEvents long-polls the change feed from the given cursor. The server
// holds the request until it has changes or its own timeout elapses, then
// returns the collections to invalidate and the next cursor.
func (c *Client) NextEvents(ctx context.Context, cursor int64) (Events, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("events?cursor=%d", cursor), nil)
	if err != nil {
		return Events{}, err
	}
	body, err := c.do(req)
	if err != nil {
		return Events{}, err
	}

	var events Events
	if err := json.Unmarshal(body, &events); err != nil {
		return Events{}, fmt.Errorf("failed to decode events: %w", err)
	}
	return events, nil
}
