// Package model defines the data structures used throughout the application.
package model

import "time"

// AuthType records how an account signs in.
type AuthType string

const (
	AuthCredentials AuthType = "credentials"
	AuthGitHub      AuthType = "github"
)

// UserStatus is the account lifecycle state. Credential accounts start out
// pending and become active once the email address is verified; GitHub
// accounts are active immediately.
type UserStatus string

const (
	UserPending UserStatus = "pending"
	UserActive  UserStatus = "active"
)

// User represents a registered user account.
//
// PasswordHash is never serialized. GitHubID is nil for credential accounts;
// the UNIQUE constraint on github_id maps one GitHub account to one user.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Img          string     `json:"img"`
	AuthType     AuthType   `json:"authType"`
	Status       UserStatus `json:"status"`
	GitHubID     *int64     `json:"-"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Profile is the public view of a user, with follow counts and the
// viewer-relative followedByMe flag.
type Profile struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Img          string    `json:"img"`
	CreatedAt    time.Time `json:"createdAt"`
	Followers    int       `json:"followers"`
	Following    int       `json:"following"`
	FollowedByMe bool      `json:"followedByMe"`
}
