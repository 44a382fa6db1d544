package bugcrowd

// API response types for Bugcrowd

type programsResponse struct {
	Programs []programData `json:"programs"`
	Meta     meta          `json:"meta"`
}

type meta struct {
	Count      int `json:"count"`
	TotalHits  int `json:"total_hits"`
	NextOffset int `json:"next_offset,omitempty"`
}

type programData struct {
	UUID      string       `json:"uuid"`
	Code      string       `json:"code"`
	Name      string       `json:"name"`
	State     string       `json:"state"` // active, paused, archived
	MaxPayout float64      `json:"max_payout"`
	Targets   []targetData `json:"targets,omitempty"`
}

type targetData struct {
	UUID     string `json:"uuid"`
	Name     string `json:"name"`
	Category string `json:"category"` // website, api, android, ios, network, ...
	InScope  bool   `json:"in_scope"`
}
