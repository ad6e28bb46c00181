package ranking

import (
	"math"
	"time"

	"stories-service/model"
)

const (
	likeWeight    = 1.5
	commentWeight = 2.5
	recencyDays   = 7.0

	popularAbove = 10.0
	risingAbove  = 3.0

	backfillScore = 0.5
)

// Score computes the engagement score of p at now.
func Score(p *model.Post, now time.Time) float64 {
	likes := float64(len(p.Likes)) * likeWeight
	comments := float64(len(p.Comments)) * commentWeight

	daysOld := now.Sub(p.CreatedAt).Hours() / 24
	recency := math.Max(0, recencyDays-daysOld)

	return likes + comments + recency
}

// Flag maps a score to its display flag.
func Flag(score float64) model.DisplayFlag {
	switch {
	case score > popularAbove:
		return model.FlagPopular
	case score > risingAbove:
		return model.FlagRising
	default:
		return model.FlagNew
	}
}
