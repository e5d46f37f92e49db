package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ID is a Directus primary key. Collections may use integer or UUID keys, so
// both JSON numbers and strings decode into an ID. A relation expanded into
// an object decodes to the object's id.
type ID string

// UnmarshalJSON accepts a JSON string, number, object with an id, or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			ID ID `json:"id"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*id = obj.ID
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("invalid id %s", data)
	}
	*id = ID(data)
	return nil
}

// String returns the id as a string.
func (id ID) String() string { return string(id) }

// IsZero reports whether the id is empty.
func (id ID) IsZero() bool { return id == "" }

// User is a Directus user as returned by /users/me.
type User struct {
	ID          ID     `json:"id"`
	Email       string `json:"email,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Avatar      ID     `json:"avatar,omitempty"`
	Role        string `json:"role,omitempty"`
	DateCreated string `json:"date_created,omitempty"`
	DateUpdated string `json:"date_updated,omitempty"`
}

// DisplayName returns the best human-readable name for the user.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Email != "":
		return u.Email
	default:
		return DefaultSenderName
	}
}

// UserRef is a relational field that Directus returns either as a bare id or
// as an expanded user object, depending on the requested fields.
type UserRef struct {
	ID   ID
	User *User
}

// UnmarshalJSON decodes either form of the relation.
func (r *UserRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var u User
		if err := json.Unmarshal(data, &u); err != nil {
			return err
		}
		r.ID = u.ID
		r.User = &u
		return nil
	}
	r.User = nil
	return r.ID.UnmarshalJSON(data)
}

// MarshalJSON writes the relation back as a bare id.
func (r UserRef) MarshalJSON() ([]byte, error) {
	if r.ID.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(string(r.ID))
}

// Name returns the related user's display name when expanded.
func (r UserRef) Name() string {
	if r.User == nil {
		return ""
	}
	return r.User.DisplayName()
}

// Tag is a row of the "tags" collection.
type Tag struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// TagRef is the tags_id side of the memes/tags junction, either an id or an
// expanded tag.
type TagRef struct {
	ID  ID
	Tag *Tag
}

// UnmarshalJSON decodes either form of the relation.
func (r *TagRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var t Tag
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		r.ID = t.ID
		r.Tag = &t
		return nil
	}
	r.Tag = nil
	return r.ID.UnmarshalJSON(data)
}

// MarshalJSON writes the relation back as a bare id.
func (r TagRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(r.ID))
}

// MemeTag is a row of the memes_tags junction collection.
type MemeTag struct {
	ID     ID     `json:"id,omitempty"`
	MemeID ID     `json:"memes_id,omitempty"`
	TagID  TagRef `json:"tags_id"`
}

// MemeStatus is the publication state of a meme.
type MemeStatus string

const (
	MemePublished MemeStatus = "published"
	MemeDraft     MemeStatus = "draft"
	MemeArchived  MemeStatus = "archived"
)

// Meme is a row of the "memes" collection.
type Meme struct {
	ID          ID         `json:"id"`
	Title       string     `json:"title"`
	Image       ID         `json:"image"`
	Views       int        `json:"views"`
	Likes       int        `json:"likes"`
	UserCreated UserRef    `json:"user_created"`
	DateCreated time.Time  `json:"date_created"`
	DateUpdated *time.Time `json:"date_updated,omitempty"`
	Tags        []MemeTag  `json:"tags,omitempty"`
	Status      MemeStatus `json:"status"`
}

// TagNames returns the names of expanded tags in junction order.
func (m Meme) TagNames() []string {
	names := make([]string, 0, len(m.Tags))
	for _, t := range m.Tags {
		if t.TagID.Tag != nil && t.TagID.Tag.Name != "" {
			names = append(names, t.TagID.Tag.Name)
		}
	}
	return names
}

// File is a Directus file record returned by the upload endpoint.
type File struct {
	ID               ID     `json:"id"`
	FilenameDownload string `json:"filename_download,omitempty"`
	Type             string `json:"type,omitempty"`
	Filesize         int64  `json:"filesize,omitempty"`
}

// AuthTokens is the payload of /auth/login and /auth/refresh.
type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// Expires is the access token lifetime in milliseconds.
	Expires int64 `json:"expires"`
}
