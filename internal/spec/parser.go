package spec

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"gatekeeper/internal/domain"
)

// Document is the in-memory policy table derived from a Swagger document:
// the declared security schemes, the global default requirement list, and
// one OperationPolicy per operation.
type Document struct {
	BasePath string
	Schemes  []domain.SecurityScheme
	Default  []domain.SecurityRequirement
	Policies map[domain.RouteKey]domain.OperationPolicy
}

// Scheme returns the named scheme declaration, if present.
func (d *Document) Scheme(name string) (domain.SecurityScheme, bool) {
	for _, s := range d.Schemes {
		if s.Name == name {
			return s, true
		}
	}
	return domain.SecurityScheme{}, false
}

// Parse reads a Swagger 2.0 YAML document and extracts its security
// semantics: securityDefinitions, the global security block, and per-operation
// security arrays. It models only the parts authorization needs; request and
// response schemas are left to the tools that consume them.
func Parse(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spec: %w", err)
	}
	return ParseBytes(data)
}

func ParseBytes(data []byte) (*Document, error) {
	var root swaggerRoot
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("unmarshal spec: %w", err)
	}

	schemes, err := parseSchemes(root.SecurityDefinitions)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		BasePath: root.BasePath,
		Schemes:  schemes,
		Policies: make(map[domain.RouteKey]domain.OperationPolicy),
	}

	doc.Default, err = toRequirements(root.Security, schemes)
	if err != nil {
		return nil, fmt.Errorf("global security: %w", err)
	}

	for rawPath, item := range root.Paths {
		if item == nil {
			continue
		}
		for method, op := range item.Operations() {
			if op == nil {
				continue
			}
			key := domain.RouteKey{Method: method, Path: rawPath}
			policy, err := derivePolicy(doc, op)
			if err != nil {
				return nil, fmt.Errorf("derive policy for %s %s: %w", method, rawPath, err)
			}
			doc.Policies[key] = policy
		}
	}
	return doc, nil
}

// derivePolicy applies the OpenAPI precedence rules: operation.security
// overrides the global block when present, and an explicit empty array means
// the operation is public.
func derivePolicy(doc *Document, op *operation) (domain.OperationPolicy, error) {
	if op.Security == nil {
		if len(doc.Default) == 0 {
			return domain.OperationPolicy{Public: true}, nil
		}
		return domain.OperationPolicy{Requirements: doc.Default}, nil
	}
	if len(*op.Security) == 0 {
		return domain.OperationPolicy{Public: true}, nil
	}
	reqs, err := toRequirements(*op.Security, doc.Schemes)
	if err != nil {
		return domain.OperationPolicy{}, err
	}
	return domain.OperationPolicy{Requirements: reqs}, nil
}

func toRequirements(raw []securityRequirement, schemes []domain.SecurityScheme) ([]domain.SecurityRequirement, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	known := make(map[string]struct{}, len(schemes))
	for _, s := range schemes {
		known[s.Name] = struct{}{}
	}
	reqs := make([]domain.SecurityRequirement, 0, len(raw))
	for _, entry := range raw {
		req := make(domain.SecurityRequirement, 0, len(entry))
		for _, clause := range entry {
			if _, ok := known[clause.Scheme]; !ok {
				return nil, fmt.Errorf("security requirement references undeclared scheme %q", clause.Scheme)
			}
			req = append(req, clause)
		}
		if len(req) == 0 {
			return nil, fmt.Errorf("empty security requirement entry")
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func parseSchemes(defs map[string]schemeDefinition) ([]domain.SecurityScheme, error) {
	schemes := make([]domain.SecurityScheme, 0, len(defs))
	for name, def := range defs {
		scheme := domain.SecurityScheme{Name: name}
		switch strings.ToLower(def.Type) {
		case "basic":
			scheme.Kind = domain.SchemeBasic
			scheme.In = domain.InHeader
			scheme.ParamName = "Authorization"
		case "apikey":
			scheme.Kind = domain.SchemeAPIKey
			switch def.In {
			case "header":
				scheme.In = domain.InHeader
			case "query":
				scheme.In = domain.InQuery
			default:
				return nil, fmt.Errorf("scheme %s: apiKey location %q not supported", name, def.In)
			}
			if def.Name == "" {
				return nil, fmt.Errorf("scheme %s: apiKey requires a parameter name", name)
			}
			scheme.ParamName = def.Name
		case "oauth2":
			// Declared flows are kept as metadata only; at request time this
			// is a scope-bearing bearer-token scheme.
			scheme.Kind = domain.SchemeBearer
			scheme.In = domain.InHeader
			scheme.ParamName = "Authorization"
			scheme.Flow = def.Flow
			scheme.AuthorizationURL = def.AuthorizationURL
			scheme.TokenURL = def.TokenURL
			scheme.DeclaredScopes = def.Scopes
		default:
			return nil, fmt.Errorf("scheme %s: type %q not supported", name, def.Type)
		}
		schemes = append(schemes, scheme)
	}
	return schemes, nil
}

// swaggerRoot is a minimal representation of the parts of a Swagger 2.0
// document authorization cares about.
type swaggerRoot struct {
	BasePath            string                      `yaml:"basePath"`
	SecurityDefinitions map[string]schemeDefinition `yaml:"securityDefinitions"`
	Security            []securityRequirement       `yaml:"security"`
	Paths               map[string]*pathItem        `yaml:"paths"`
}

type schemeDefinition struct {
	Type             string            `yaml:"type"`
	In               string            `yaml:"in"`
	Name             string            `yaml:"name"`
	Flow             string            `yaml:"flow"`
	AuthorizationURL string            `yaml:"authorizationUrl"`
	TokenURL         string            `yaml:"tokenUrl"`
	Scopes           map[string]string `yaml:"scopes"`
}

type pathItem struct {
	Get     *operation `yaml:"get"`
	Post    *operation `yaml:"post"`
	Put     *operation `yaml:"put"`
	Delete  *operation `yaml:"delete"`
	Patch   *operation `yaml:"patch"`
	Options *operation `yaml:"options"`
	Head    *operation `yaml:"head"`
}

func (p *pathItem) Operations() map[string]*operation {
	ops := make(map[string]*operation)
	if p.Get != nil {
		ops["GET"] = p.Get
	}
	if p.Post != nil {
		ops["POST"] = p.Post
	}
	if p.Put != nil {
		ops["PUT"] = p.Put
	}
	if p.Delete != nil {
		ops["DELETE"] = p.Delete
	}
	if p.Patch != nil {
		ops["PATCH"] = p.Patch
	}
	if p.Options != nil {
		ops["OPTIONS"] = p.Options
	}
	if p.Head != nil {
		ops["HEAD"] = p.Head
	}
	return ops
}

type operation struct {
	// Pointer so that an absent security key (inherit global) is
	// distinguishable from an explicit empty list (public).
	Security *[]securityRequirement `yaml:"security"`
}

// securityRequirement preserves the document's clause order, which a plain
// map would lose. Within a conjunction the first scheme's identity wins, so
// order is semantic, not cosmetic.
type securityRequirement []domain.SchemeClause

func (r *securityRequirement) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("security requirement must be a mapping, got %v", value.Kind)
	}
	clauses := make([]domain.SchemeClause, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		keyNode := value.Content[i]
		valNode := value.Content[i+1]
		var scopes []string
		if err := valNode.Decode(&scopes); err != nil {
			return fmt.Errorf("scopes for scheme %s: %w", keyNode.Value, err)
		}
		clauses = append(clauses, domain.SchemeClause{Scheme: keyNode.Value, Scopes: scopes})
	}
	*r = clauses
	return nil
}
