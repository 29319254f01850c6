package model

// Site is an embeddable resource that redeemed codes unlock. Families
// reference a site by its title.
type Site struct {
	Title        string `json:"title"`
	IframeURL    string `json:"iframe_url"`
	MerchantLink string `json:"link,omitempty"`
}
