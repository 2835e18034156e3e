// Package tracking issues tracking identifiers and builds the tracking
// links embedded in simulation emails.
//
// The tracking id is the sole correlation key between a dispatched email and
// a later click, so it must be unguessable: a predictable id would let
// anyone mark other people's records as clicked.
package tracking

import (
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// Query parameter names used in tracking links.
const (
	ParamClicked    = "clicked"
	ParamTrackingID = "tracking_id"
	ParamCategory   = "category"
)

// NewID returns a fresh tracking identifier: a random UUID, which is opaque,
// URL-safe, and globally unique with overwhelming probability.
func NewID() string {
	return uuid.New().String()
}

// BuildLink constructs the tracking URL for a simulation email.
// The category rides along so the training page can label the threat topic
// without a ledger lookup.
func BuildLink(baseURL, trackingID, category string) string {
	params := url.Values{}
	params.Set(ParamClicked, "true")
	params.Set(ParamTrackingID, trackingID)
	params.Set(ParamCategory, category)

	return baseURL + "/track?" + params.Encode()
}

// ExtractClick pulls the tracking id and category out of an incoming click
// request. A request without clicked=true or without a tracking id yields an
// empty id; callers treat that as a no-op, since a malformed link, a stale
// link, and a forged id are indistinguishable at this layer.
func ExtractClick(r *http.Request) (trackingID, category string) {
	q := r.URL.Query()
	if q.Get(ParamClicked) != "true" {
		return "", q.Get(ParamCategory)
	}
	return q.Get(ParamTrackingID), q.Get(ParamCategory)
}
