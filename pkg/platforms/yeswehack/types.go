package yeswehack

type programsResponse struct {
	Items      []programItem `json:"items"`
	Pagination pagination    `json:"pagination"`
}

type pagination struct {
	Page    int `json:"page"`
	NbPages int `json:"nb_pages"`
}

type programItem struct {
	Slug     string `json:"slug"`
	Title    string `json:"title"`
	Bounty   bool   `json:"bounty"`
	Disabled bool   `json:"disabled"`
}

type programDetail struct {
	Slug       string      `json:"slug"`
	Title      string      `json:"title"`
	Bounty     bool        `json:"bounty"`
	Scopes     []scopeItem `json:"scopes"`
	OutOfScope []string    `json:"out_of_scope"`
}

type scopeItem struct {
	Scope     string `json:"scope"`
	ScopeType string `json:"scope_type"`
}
