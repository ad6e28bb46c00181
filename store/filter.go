package store

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stories-service/model"
)

// PostFilter selects posts. Zero values mean "no constraint".
type PostFilter struct {
	// StaffPick restricts to staff picks (true) or excludes them (false).
	StaffPick *bool

	// Since keeps posts created at or after this instant.
	Since time.Time

	ExcludeIDs []primitive.ObjectID
	Category   model.Category
	Authors    []primitive.ObjectID

	// HasEngagement keeps posts with at least one like or one comment.
	HasEngagement bool

	SortNewest bool
	// SortInserted orders by _id ascending, i.e. insertion order. Ignored
	// when SortNewest is set.
	SortInserted bool
	Skip       int64
	Limit      int64
}

func (f PostFilter) query() bson.M {
	q := bson.M{}

	if !f.Since.IsZero() {
		q["createdAt"] = bson.M{"$gte": f.Since}
	}
	if f.StaffPick != nil {
		if *f.StaffPick {
			q["isStaffPick"] = true
		} else {
			q["isStaffPick"] = bson.M{"$ne": true}
		}
	}
	if len(f.ExcludeIDs) > 0 {
		q["_id"] = bson.M{"$nin": f.ExcludeIDs}
	}
	if f.Category != "" {
		q["category"] = f.Category
	}
	if len(f.Authors) == 1 {
		q["user"] = f.Authors[0]
	} else if len(f.Authors) > 1 {
		q["user"] = bson.M{"$in": f.Authors}
	}
	if f.HasEngagement {
		q["$or"] = bson.A{
			bson.M{"likes.0": bson.M{"$exists": true}},
			bson.M{"comments.0": bson.M{"$exists": true}},
		}
	}

	return q
}

func (f PostFilter) findOptions() *options.FindOptions {
	opts := options.Find()
	if f.SortNewest {
		// _id breaks createdAt ties so repeated queries return the same order
		opts.SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	} else if f.SortInserted {
		opts.SetSort(bson.D{{Key: "_id", Value: 1}})
	}
	if f.Skip > 0 {
		opts.SetSkip(f.Skip)
	}
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	return opts
}

// ParseID converts a hex string into an ObjectID.
func ParseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return oid, nil
}

func Bool(b bool) *bool {
	return &b
}
