package models

// Group is a named collection of people who share receipts.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Slug is the URL-safe public identifier (22-char base64url).
	// Clients address groups by slug so that internal IDs never leak
	// into shared links.
	Slug string

	// Name is the display name of the group (e.g., "Roommates").
	Name string

	// People are the participants owned by this group.
	People []Person

	// CreatedAt is the unix-nanosecond timestamp when the group was created.
	CreatedAt int64

	// UpdatedAt strictly increases whenever the group or anything it owns
	// changes. The version endpoint exposes it for cheap change detection.
	UpdatedAt int64
}

// Person is a participant owned by exactly one group.
//
// Membership is immutable: a person is created inside a group and stays
// there. Sharing a person across groups is modeled by creating a person with
// the same name in each group.
type Person struct {
	// ID is the unique identifier for the person (UUID format).
	ID string

	// GroupID is the owning group.
	GroupID string

	// Name is the display name, unique within the group.
	Name string

	// CreatedAt is the unix-nanosecond creation timestamp.
	CreatedAt int64

	// UpdatedAt is the unix-nanosecond timestamp of the last mutation.
	UpdatedAt int64
}
