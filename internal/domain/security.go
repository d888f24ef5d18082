package domain

// SchemeKind is the credential mechanism a security scheme uses.
type SchemeKind string

const (
	SchemeBasic  SchemeKind = "basic"
	SchemeAPIKey SchemeKind = "apiKey"
	// SchemeBearer covers oauth2 declarations too: the document may describe
	// an authorization-code flow, but enforcement only ever sees a pre-issued
	// scope-bearing bearer token.
	SchemeBearer SchemeKind = "bearer"
)

// ParamLocation says where a credential travels on the request.
type ParamLocation string

const (
	InHeader ParamLocation = "header"
	InQuery  ParamLocation = "query"
)

// SecurityScheme is one named credential mechanism declared by the document.
// Loaded once at startup and immutable afterwards.
type SecurityScheme struct {
	Name      string
	Kind      SchemeKind
	In        ParamLocation
	ParamName string

	// oauth2 metadata carried through from the document. Descriptive only;
	// the engine never invokes these URLs.
	Flow             string
	AuthorizationURL string
	TokenURL         string
	DeclaredScopes   map[string]string
}

// SchemeClause is one leg of a conjunction: a scheme reference plus the
// scopes the operation requires from it.
type SchemeClause struct {
	Scheme string
	Scopes []string
}

// SecurityRequirement is a conjunction of clauses that must all validate
// together on the same request.
type SecurityRequirement []SchemeClause

// OperationPolicy is the authorization demand of one operation: a disjunction
// of requirements evaluated in declaration order. Public marks an explicit
// empty security list, which overrides any global default.
type OperationPolicy struct {
	Public       bool
	Requirements []SecurityRequirement
}

// RouteKey identifies an operation by HTTP method and path template.
type RouteKey struct {
	Method string
	Path   string
}
