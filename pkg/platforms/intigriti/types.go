package intigriti

// Researcher API response types

type programsResponse struct {
	MaxCount int             `json:"maxCount"`
	Records  []programRecord `json:"records"`
}

type programRecord struct {
	ID        string     `json:"id"`
	Handle    string     `json:"handle"`
	Name      string     `json:"name"`
	Following bool       `json:"following"`
	Status    valueField `json:"status"` // Open, Suspended, Closed
	MaxBounty money      `json:"maxBounty"`
}

type programDetail struct {
	ID      string     `json:"id"`
	Handle  string     `json:"handle"`
	Name    string     `json:"name"`
	Domains domainList `json:"domains"`
}

type domainList struct {
	ID      string   `json:"id"`
	Content []domain `json:"content"`
}

type domain struct {
	ID          string     `json:"id"`
	Type        valueField `json:"type"` // Url, Wildcard, Android, iOS, IpRange, Device, Other
	Endpoint    string     `json:"endpoint"`
	Tier        valueField `json:"tier"` // Tier 1..5, Out Of Scope
	Description string     `json:"description"`
}

type valueField struct {
	ID    int    `json:"id"`
	Value string `json:"value"`
}

type money struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}
