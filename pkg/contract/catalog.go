// Package contract exposes the storefront backend's endpoint table. The table
// is described by an embedded OpenAPI document so method, path, query
// parameters and request encoding are declared in one place instead of being
// scattered across the client as string literals.
package contract

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

// Operation ids declared by the embedded document.
const (
	OpLogin         = "login"
	OpRegister      = "register"
	OpVerify        = "verify"
	OpListProvinces = "listProvinces"
	OpListCities    = "listCities"
)

// ErrUnknownOperation is returned when an operation id is not in the catalog.
var ErrUnknownOperation = errors.New("contract: unknown operation")

//go:embed storefront.yaml
var storefrontDocument []byte

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Endpoint describes one backend operation.
type Endpoint struct {
	OperationID string
	Method      string
	Path        string
	ContentType string
	Query       []string
	Required    []string
}

// Catalog indexes endpoints by operation id.
type Catalog struct {
	endpoints map[string]Endpoint
}

// Default parses the embedded storefront document once.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Load(context.Background(), storefrontDocument)
	})
	return defaultCatalog, defaultErr
}

// Load parses and validates an OpenAPI document and extracts its operations.
func Load(ctx context.Context, raw []byte) (*Catalog, error) {
	if len(raw) == 0 {
		return nil, errors.New("contract: document payload is empty")
	}
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("contract: load document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("contract: validate document: %w", err)
	}
	if doc.Paths == nil || doc.Paths.Len() == 0 {
		return nil, errors.New("contract: document does not contain any paths")
	}

	c := &Catalog{endpoints: make(map[string]Endpoint)}
	for path, item := range doc.Paths.Map() {
		if item == nil {
			continue
		}
		for method, op := range item.Operations() {
			if op == nil || strings.TrimSpace(op.OperationID) == "" {
				continue
			}
			if _, dup := c.endpoints[op.OperationID]; dup {
				return nil, fmt.Errorf("contract: duplicate operation id %q", op.OperationID)
			}
			c.endpoints[op.OperationID] = buildEndpoint(method, path, op)
		}
	}
	if len(c.endpoints) == 0 {
		return nil, errors.New("contract: no operations extracted")
	}
	return c, nil
}

func buildEndpoint(method, path string, op *openapi3.Operation) Endpoint {
	ep := Endpoint{
		OperationID: op.OperationID,
		Method:      strings.ToUpper(method),
		Path:        path,
	}
	for _, ref := range op.Parameters {
		if ref == nil || ref.Value == nil || ref.Value.In != openapi3.ParameterInQuery {
			continue
		}
		ep.Query = append(ep.Query, ref.Value.Name)
		if ref.Value.Required {
			ep.Required = append(ep.Required, ref.Value.Name)
		}
	}
	if op.RequestBody != nil && op.RequestBody.Value != nil {
		types := make([]string, 0, len(op.RequestBody.Value.Content))
		for ct := range op.RequestBody.Value.Content {
			types = append(types, ct)
		}
		sort.Strings(types)
		if len(types) > 0 {
			ep.ContentType = types[0]
		}
	}
	return ep
}

// Endpoint returns the endpoint for operation id.
func (c *Catalog) Endpoint(id string) (Endpoint, error) {
	if c == nil {
		return Endpoint{}, fmt.Errorf("%w: %q (nil catalog)", ErrUnknownOperation, id)
	}
	ep, ok := c.endpoints[id]
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrUnknownOperation, id)
	}
	return ep, nil
}

// Operations returns the sorted operation ids.
func (c *Catalog) Operations() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.endpoints))
	for id := range c.endpoints {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
