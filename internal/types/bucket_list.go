package types

import "github.com/google/uuid"

type BucketActivityType string

const (
	BucketActivityVisit    BucketActivityType = "visit"
	BucketActivityActivity BucketActivityType = "activity"
)

type BucketItemStatus string

const (
	BucketStatusPending   BucketItemStatus = "pending"
	BucketStatusCompleted BucketItemStatus = "completed"
)

// BucketPlace holds the place-level name fields used by the fallback match pass.
type BucketPlace struct {
	MainText      string `json:"mainText"`
	SecondaryText string `json:"secondaryText"`
}

type BucketListItem struct {
	ID           uuid.UUID          `json:"id"`
	LocationID   string             `json:"locationId"`
	ActivityName string             `json:"activityName"`
	ActivityType BucketActivityType `json:"activityType"`
	Status       BucketItemStatus   `json:"status"`
	Place        BucketPlace        `json:"place"`
	CountryName  string             `json:"countryName,omitempty"`
	StateName    string             `json:"stateName,omitempty"`
}

// BucketStateNode is a state under a country in the user's wishlist hierarchy.
type BucketStateNode struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ItemCount int       `json:"itemCount"`
}

type BucketCountryNode struct {
	ID              uuid.UUID         `json:"id"`
	Name            string            `json:"name"`
	DirectItemCount int               `json:"directItemCount"`
	States          []BucketStateNode `json:"states"`
}

type BucketStateDetail struct {
	ID    uuid.UUID        `json:"id"`
	Name  string           `json:"name"`
	Items []BucketListItem `json:"items"`
}

type BucketCountryDetail struct {
	ID          uuid.UUID           `json:"id"`
	Name        string              `json:"name"`
	DirectItems []BucketListItem    `json:"directItems"`
	States      []BucketStateDetail `json:"states"`
}

type BucketCountrySummary struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ItemCount int       `json:"itemCount"`
}

type BucketCountryCount struct {
	CountryName string `json:"countryName"`
	ItemCount   int    `json:"itemCount"`
}

// BucketListDetails is the matched wishlist attached to a trip config.
type BucketListDetails struct {
	TotalItems     int                  `json:"totalItems"`
	CountryDetails []BucketCountryCount `json:"countryDetails"`
	Items          []BucketListItem     `json:"items"`
}

func (b BucketListDetails) Clone() BucketListDetails {
	out := b
	if b.CountryDetails != nil {
		out.CountryDetails = append([]BucketCountryCount(nil), b.CountryDetails...)
	}
	if b.Items != nil {
		out.Items = append([]BucketListItem(nil), b.Items...)
	}
	return out
}
