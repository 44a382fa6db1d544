package hackerone

// Hacker API response types. Only the fields the sync reads are decoded.

type programsResponse struct {
	Data  []programData `json:"data"`
	Links links         `json:"links"`
}

type programData struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Attributes programAttributes `json:"attributes"`
}

type programAttributes struct {
	Handle          string `json:"handle"`
	Name            string `json:"name"`
	SubmissionState string `json:"submission_state"` // open, paused, disabled
	State           string `json:"state"`
	OffersBounties  bool   `json:"offers_bounties"`
}

type scopesResponse struct {
	Data  []scopeData `json:"data"`
	Links links       `json:"links"`
}

type scopeData struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Attributes scopeAttributes `json:"attributes"`
}

type scopeAttributes struct {
	AssetType             string `json:"asset_type"`
	AssetIdentifier       string `json:"asset_identifier"`
	EligibleForBounty     bool   `json:"eligible_for_bounty"`
	EligibleForSubmission bool   `json:"eligible_for_submission"`
	MaxSeverity           string `json:"max_severity"`
}

type links struct {
	Next string `json:"next"`
}
