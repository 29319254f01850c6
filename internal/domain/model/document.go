package model

// Document is the whole persisted state: the file-backed store rewrites
// it wholesale on every mutation, and the admin export endpoint dumps it
// verbatim.
type Document struct {
	Sites    []Site            `json:"sites"`
	Families []Family          `json:"families"`
	Logs     []RedemptionEntry `json:"logs"`
}

// Validate rejects documents whose shape cannot be trusted: every family
// needs an ID, every child an ID and a hash, and a used child must carry
// its binding IP and both timestamps while an unused one must carry none.
func (d *Document) Validate() bool {
	for i := range d.Families {
		f := &d.Families[i]
		if f.ID == "" {
			return false
		}
		for j := range f.Children {
			c := &f.Children[j]
			if c.ID == "" || c.Hash == "" {
				return false
			}
			if c.Used {
				if c.UsedIP == nil || c.ActivatedAt == nil || c.ExpiresAt == nil {
					return false
				}
			} else if c.UsedIP != nil || c.ActivatedAt != nil || c.ExpiresAt != nil {
				return false
			}
		}
	}
	return true
}
