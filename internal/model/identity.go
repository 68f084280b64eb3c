package model

import (
	"strconv"
)

// IdentityKind distinguishes registered users from anonymous session holders.
type IdentityKind string

const (
	IdentityUser      IdentityKind = "user"
	IdentityAnonymous IdentityKind = "anonymous"
)

// Identity is the owner of an exam: exactly one of a user id or an anonymous
// session token. The zero value is invalid and owns nothing.
type Identity struct {
	kind      IdentityKind
	userID    int64
	sessionID string
}

// UserIdentity returns the identity of an authenticated user.
func UserIdentity(userID int64) Identity {
	return Identity{kind: IdentityUser, userID: userID}
}

// AnonymousIdentity returns the identity of an anonymous session token.
func AnonymousIdentity(sessionID string) Identity {
	return Identity{kind: IdentityAnonymous, sessionID: sessionID}
}

func (i Identity) Kind() IdentityKind { return i.kind }

// UserID returns the user id and true for user identities.
func (i Identity) UserID() (int64, bool) {
	return i.userID, i.kind == IdentityUser
}

// SessionID returns the session token and true for anonymous identities.
func (i Identity) SessionID() (string, bool) {
	return i.sessionID, i.kind == IdentityAnonymous
}

// Valid reports whether the identity carries exactly one populated owner value.
func (i Identity) Valid() bool {
	switch i.kind {
	case IdentityUser:
		return i.userID > 0
	case IdentityAnonymous:
		return i.sessionID != ""
	default:
		return false
	}
}

// Equal reports an exact match on kind and value.
func (i Identity) Equal(other Identity) bool {
	if !i.Valid() || !other.Valid() || i.kind != other.kind {
		return false
	}
	if i.kind == IdentityUser {
		return i.userID == other.userID
	}
	return i.sessionID == other.sessionID
}

// Columns maps the identity onto the nullable owner columns of the exams table.
func (i Identity) Columns() (userID *int64, sessionID *string) {
	switch i.kind {
	case IdentityUser:
		id := i.userID
		return &id, nil
	case IdentityAnonymous:
		sid := i.sessionID
		return nil, &sid
	}
	return nil, nil
}

// IdentityFromColumns rebuilds an identity from the owner columns.
func IdentityFromColumns(userID *int64, sessionID *string) Identity {
	switch {
	case userID != nil && sessionID == nil:
		return UserIdentity(*userID)
	case sessionID != nil && userID == nil:
		return AnonymousIdentity(*sessionID)
	}
	return Identity{}
}

// String is used for logging only.
func (i Identity) String() string {
	switch i.kind {
	case IdentityUser:
		return "user:" + strconv.FormatInt(i.userID, 10)
	case IdentityAnonymous:
		return "anonymous:" + i.sessionID
	}
	return "invalid"
}
