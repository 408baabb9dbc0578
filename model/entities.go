package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Account is the root entity of the graph.
type Account struct {
	ID             string    `json:"id"`
	ExternalID     string    `json:"externalId"`
	Email          string    `json:"email"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Username       string    `json:"username"`
	ProfilePicture string    `json:"profilePicture"`
	BannerImage    string    `json:"bannerImage"`
	Bio            string    `json:"bio"`
	Location       string    `json:"location"`
	Followers      []string  `json:"followers"`
	Following      []string  `json:"following"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Post is owned by exactly one Account.
type Post struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Content   string    `json:"content,omitempty"`
	Image     string    `json:"image"`
	Likes     []string  `json:"likes"`
	Comments  []string  `json:"comments"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Comment is owned by an Account and attached to a Post.
type Comment struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Post      string    `json:"post"`
	Content   string    `json:"content"`
	Likes     []string  `json:"likes"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Notification records a follow, like or comment directed at an Account.
type Notification struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Type      string    `json:"type"`
	Post      *string   `json:"post"`
	Comment   *string   `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Decode converts a document into its typed view.
func Decode[T any](doc Document) (T, error) {
	var out T
	b, err := json.Marshal(doc)
	if err != nil {
		return out, fmt.Errorf("encode document: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}

// AsAccount returns the typed view of an account document.
func AsAccount(doc Document) (Account, error) { return Decode[Account](doc) }

// AsPost returns the typed view of a post document.
func AsPost(doc Document) (Post, error) { return Decode[Post](doc) }

// AsComment returns the typed view of a comment document.
func AsComment(doc Document) (Comment, error) { return Decode[Comment](doc) }

// AsNotification returns the typed view of a notification document.
func AsNotification(doc Document) (Notification, error) { return Decode[Notification](doc) }
