package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Category is the enumerated topic tag of a post.
type Category string

const (
	CategoryCulture  Category = "Culture"
	CategoryTech     Category = "Tech"
	CategoryPersonal Category = "Personal"
	CategoryLearning Category = "Learning"
	CategoryOther    Category = "Other"
)

var Categories = []Category{CategoryCulture, CategoryTech, CategoryPersonal, CategoryLearning, CategoryOther}

// ParseCategory returns the category matching s. An empty string maps to Other.
func ParseCategory(s string) (Category, bool) {
	if s == "" {
		return CategoryOther, true
	}
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Post represents a user post stored in the posts collection.
type Post struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	User        primitive.ObjectID `bson:"user" json:"user"`
	Author      *Author            `bson:"-" json:"author,omitempty"`
	Title       string             `bson:"title" json:"title"`
	Content     string             `bson:"content" json:"content"`
	Category    Category           `bson:"category" json:"category"`
	Images      []string           `bson:"images" json:"images"`
	Likes       []Like             `bson:"likes" json:"likes"`
	Comments    []Comment          `bson:"comments" json:"comments"`
	Language    string             `bson:"language" json:"language"`
	IsStaffPick bool               `bson:"isStaffPick" json:"isStaffPick"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Like is a single like; a post holds at most one per user.
type Like struct {
	User primitive.ObjectID `bson:"user" json:"user"`
}

// Comment is stored newest first on the post.
type Comment struct {
	ID           primitive.ObjectID `bson:"_id" json:"_id"`
	User         primitive.ObjectID `bson:"user" json:"user"`
	Text         string             `bson:"text" json:"text"`
	Name         string             `bson:"name,omitempty" json:"name,omitempty"`
	ProfileImage string             `bson:"profileImage,omitempty" json:"profileImage,omitempty"`
	Date         time.Time          `bson:"date" json:"date"`
}

// LikedBy reports whether userID already likes the post.
func (p *Post) LikedBy(userID primitive.ObjectID) bool {
	for _, l := range p.Likes {
		if l.User == userID {
			return true
		}
	}
	return false
}

// HasEngagement reports whether the post has at least one like or comment.
func (p *Post) HasEngagement() bool {
	return len(p.Likes) > 0 || len(p.Comments) > 0
}

// Author is the public subset of a user embedded into post responses.
type Author struct {
	ID           primitive.ObjectID `json:"_id"`
	Name         string             `json:"name"`
	ProfileImage string             `json:"profileImage,omitempty"`
	Country      string             `json:"country,omitempty"`
}
