package types

// Place is the structured result of a free-text place lookup.
type Place struct {
	Name          string `json:"name"`
	MainText      string `json:"mainText"`
	SecondaryText string `json:"secondaryText"`
	Country       string `json:"country"`
	State         string `json:"state,omitempty"`
}
