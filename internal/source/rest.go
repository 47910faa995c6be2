package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/JonMunkholm/gridkit/internal/grid"
)

// REST is a data source backed by an HTTP endpoint that speaks the grid
// query protocol: GET {base}/rows with page, limit, sort, search, and filter
// parameters, plus JSON mutation endpoints under the same base.
type REST struct {
	Base string
	HTTP *http.Client
	Caps grid.Capabilities
}

// NewREST returns a client for base, e.g. http://host/api/grids/products.
// Every capability is assumed until Caps is narrowed.
func NewREST(base string) *REST {
	return &REST{
		Base: strings.TrimRight(base, "/"),
		HTTP: http.DefaultClient,
		Caps: grid.Capabilities{Create: true, Update: true, Delete: true, BulkDelete: true, BatchUpdate: true},
	}
}

// errorBody is the JSON error envelope returned by the grid web backend.
type errorBody struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Code    string                 `json:"code"`
	Fields  []grid.ValidationError `json:"fields"`
}

func (c *REST) Capabilities() grid.Capabilities { return c.Caps }

// Fetch implements grid.DataSource.
func (c *REST) Fetch(ctx context.Context, p grid.Params) (*grid.Result, error) {
	u := c.Base + "/rows"
	if q := grid.EncodeQuery(p).Encode(); q != "" {
		u += "?" + q
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, statusError("fetch", http.MethodGet, u, resp)
	}
	return grid.DecodeResult(resp.Body, p)
}

// Columns implements grid.SchemaProvider from GET {base}/schema.
func (c *REST) Columns(ctx context.Context) ([]grid.ColumnDefinition, error) {
	var out struct {
		Columns []grid.ColumnDefinition `json:"columns"`
	}
	if err := c.do(ctx, "schema", http.MethodGet, "/schema", nil, &out); err != nil {
		return nil, err
	}
	return out.Columns, nil
}

func (c *REST) Create(ctx context.Context, row grid.Row) (grid.Row, error) {
	if !c.Caps.Create {
		return nil, &grid.UnsupportedError{Op: "create"}
	}
	var out grid.Row
	if err := c.do(ctx, "create", http.MethodPost, "/rows", row, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *REST) Update(ctx context.Context, id string, changes grid.Row) (grid.Row, error) {
	if !c.Caps.Update {
		return nil, &grid.UnsupportedError{Op: "update"}
	}
	var out grid.Row
	if err := c.do(ctx, "update", http.MethodPatch, "/rows/"+url.PathEscape(id), changes, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *REST) Delete(ctx context.Context, id string) error {
	if !c.Caps.Delete {
		return &grid.UnsupportedError{Op: "delete"}
	}
	return c.do(ctx, "delete", http.MethodDelete, "/rows/"+url.PathEscape(id), nil, nil)
}

func (c *REST) BulkDelete(ctx context.Context, ids []string) (grid.BulkResult, error) {
	if !c.Caps.BulkDelete {
		return grid.BulkResult{}, &grid.UnsupportedError{Op: "bulkDelete"}
	}
	var out grid.BulkResult
	in := struct {
		IDs []string `json:"ids"`
	}{IDs: ids}
	if err := c.do(ctx, "bulk delete", http.MethodPost, "/bulk-delete", in, &out); err != nil {
		return grid.BulkResult{}, err
	}
	return out, nil
}

func (c *REST) BatchUpdate(ctx context.Context, updates []grid.RowUpdate) (grid.BulkResult, error) {
	if !c.Caps.BatchUpdate {
		return grid.BulkResult{}, &grid.UnsupportedError{Op: "batchUpdate"}
	}
	var out grid.BulkResult
	in := struct {
		Updates []grid.RowUpdate `json:"updates"`
	}{Updates: updates}
	if err := c.do(ctx, "batch update", http.MethodPost, "/batch-update", in, &out); err != nil {
		return grid.BulkResult{}, err
	}
	return out, nil
}

func (c *REST) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return err
		}
		body = buf
	}
	u := c.Base + path
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return statusError(op, method, u, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return decodeJSON(resp.Body, out)
}

// decodeJSON matches grid.DecodeResult: numbers inside rows stay json.Number
// so fetched and mutated rows carry the same value types.
func decodeJSON(r io.Reader, out any) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return dec.Decode(out)
}

// statusError maps a non-2xx response to the engine's error taxonomy.
func statusError(op, method, u string, resp *http.Response) error {
	var body errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &body)

	detail := body.Error
	if detail == "" {
		detail = strings.TrimSpace(string(raw))
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, u, grid.ErrRowNotFound)
	case http.StatusNotImplemented:
		return &grid.UnsupportedError{Op: op}
	case http.StatusUnprocessableEntity:
		if len(body.Fields) > 0 {
			return grid.ValidationErrors(body.Fields)
		}
		return grid.ValidationErrors{{Message: detail}}
	case http.StatusConflict:
		return fmt.Errorf("%s %s: already exists: %s", method, u, detail)
	}
	if detail != "" {
		return fmt.Errorf("%s %s: unexpected status %s: %s", method, u, resp.Status, detail)
	}
	return fmt.Errorf("%s %s: unexpected status %s", method, u, resp.Status)
}
