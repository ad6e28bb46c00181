package model

import (
	"encoding/json"
	"math"
)

// DisplayFlag labels a ranked post for the client.
type DisplayFlag string

const (
	FlagPopular DisplayFlag = "popular"
	FlagRising  DisplayFlag = "rising"
	FlagNew     DisplayFlag = "new"
)

// RankedPost is a post with its computed ranking fields. It is built per
// request and never persisted.
//
// Staff picks carry an infinite score and no flag: they always sort ahead of
// organically ranked posts.
type RankedPost struct {
	Post
	EngagementScore float64     `json:"-"`
	DisplayFlag     DisplayFlag `json:"displayFlag,omitempty"`
	StaffPick       bool        `json:"staffPick,omitempty"`
}

// Curated reports whether the post was included as a staff pick.
func (r RankedPost) Curated() bool {
	return math.IsInf(r.EngagementScore, 1)
}

// MarshalJSON renders the infinite staff pick score as null, since JSON has no
// representation for it.
func (r RankedPost) MarshalJSON() ([]byte, error) {
	type alias RankedPost
	var score *float64
	if !math.IsInf(r.EngagementScore, 0) && !math.IsNaN(r.EngagementScore) {
		s := r.EngagementScore
		score = &s
	}
	return json.Marshal(struct {
		alias
		EngagementScore *float64 `json:"engagementScore"`
	}{alias: alias(r), EngagementScore: score})
}
