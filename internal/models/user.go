package models

import "time"

// User is a chat profile. Username is case-sensitive, unique and immutable
// once created. The profile picture is an inline blob served as a data URL.
type User struct {
	ID             int       `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	ProfilePicData string    `db:"profile_pic_data" json:"-"`
	ProfilePicType string    `db:"profile_pic_type" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// ProfilePictureURL renders the stored picture as a data URL, matching what
// clients embed directly in an <img> tag.
func (u User) ProfilePictureURL() string {
	return "data:" + u.ProfilePicType + ";base64," + u.ProfilePicData
}
