package domain

// PolicyInput is the document handed to the optional policy gate after a
// request has been authorized.
type PolicyInput struct {
	Principal PolicyPrincipal `json:"principal"`
	Operation PolicyOperation `json:"operation"`
}

type PolicyPrincipal struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

type PolicyOperation struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PolicyResult struct {
	Allow bool         `json:"allow"`
	Deny  []PolicyDeny `json:"deny"`
}
