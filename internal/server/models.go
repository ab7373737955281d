// models.go - Document types persisted in MongoDB.
//
// Field names follow the collections as deployed (camelCase keys), so the
// same tag serves both the wire format and the stored documents.
package server

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an account document. PasswordHash never leaves the server.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	DisplayName  string             `bson:"displayName,omitempty" json:"displayName,omitempty"`
	PasswordHash string             `bson:"passwordHash" json:"-"`
	IsAdmin      bool               `bson:"isAdmin" json:"isAdmin"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// BlogPost is a single post. Media holds public URLs returned by the
// media store; the binary data itself is never persisted here.
type BlogPost struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title     string             `bson:"title" json:"title"`
	Body      string             `bson:"body" json:"body"`
	AuthorID  primitive.ObjectID `bson:"authorId" json:"authorId"`
	Media     []string           `bson:"media" json:"media"`
	Published bool               `bson:"published" json:"published"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Reel is a short video entry on the landing page. IDs are generated
// server-side and are unique within the reels array.
type Reel struct {
	ID           string `bson:"id" json:"id"`
	VideoURL     string `bson:"videoUrl" json:"videoUrl"`
	ThumbnailURL string `bson:"thumbnailUrl,omitempty" json:"thumbnailUrl,omitempty"`
}

// LandingPage is a singleton document addressed by a fixed key.
// Reel order is insertion order unless replaced wholesale.
type LandingPage struct {
	Key          string    `bson:"key" json:"-"`
	HeroTitle    string    `bson:"heroTitle" json:"heroTitle"`
	HeroSubtitle string    `bson:"heroSubtitle" json:"heroSubtitle"`
	HeroMedia    []string  `bson:"heroMedia" json:"heroMedia"`
	Reels        []Reel    `bson:"reels" json:"reels"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// SiteSettings is a singleton key/value document of site-wide configuration.
type SiteSettings struct {
	Key          string            `bson:"key" json:"-"`
	ContactEmail string            `bson:"contactEmail" json:"contactEmail"`
	ContactPhone string            `bson:"contactPhone" json:"contactPhone"`
	SocialLinks  map[string]string `bson:"socialLinks" json:"socialLinks"`
	Features     map[string]bool   `bson:"features" json:"features"`
	UpdatedAt    time.Time         `bson:"updatedAt" json:"updatedAt"`
}

const (
	landingPageKey  = "landing-page"
	siteSettingsKey = "site-settings"
)

// defaultLandingPage is what a GET returns before any admin has touched the
// page. First read creates it.
func defaultLandingPage() *LandingPage {
	return &LandingPage{
		Key:       landingPageKey,
		HeroMedia: []string{},
		Reels:     []Reel{},
		UpdatedAt: time.Now().UTC(),
	}
}

func defaultSiteSettings() *SiteSettings {
	return &SiteSettings{
		Key:         siteSettingsKey,
		SocialLinks: map[string]string{},
		Features:    map[string]bool{},
		UpdatedAt:   time.Now().UTC(),
	}
}
