package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// User represents a registered account in the users collection.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	Country      string             `bson:"country,omitempty" json:"country,omitempty"`
	City         string             `bson:"city,omitempty" json:"city,omitempty"`
	Bio          string             `bson:"bio,omitempty" json:"bio,omitempty"`
	ProfileImage string             `bson:"profileImage" json:"profileImage"`
	Languages    []string           `bson:"languages,omitempty" json:"languages,omitempty"`
	Role         Role               `bson:"role" json:"role"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// AsAuthor returns the public fields embedded into post responses.
func (u *User) AsAuthor() *Author {
	return &Author{
		ID:           u.ID,
		Name:         u.Name,
		ProfileImage: u.ProfileImage,
		Country:      u.Country,
	}
}

// CountryStats is one entry of the map view.
type CountryStats struct {
	Name   string              `json:"name"`
	Count  int64               `json:"count"`
	PostID *primitive.ObjectID `json:"postId"`
}

// UserStats are the public site totals.
type UserStats struct {
	TotalUsers      int64 `json:"totalUsers"`
	UniqueCountries int64 `json:"uniqueCountries"`
	TotalPosts      int64 `json:"totalPosts"`
}
