package models

// MediaType classifies an attached media item.
type MediaType string

const (
	MediaPhoto       MediaType = "photo"
	MediaVideo       MediaType = "video"
	MediaAnimatedGIF MediaType = "animated_gif"
)

// Valid reports whether t is a known media type.
func (t MediaType) Valid() bool {
	switch t {
	case MediaPhoto, MediaVideo, MediaAnimatedGIF:
		return true
	}
	return false
}

// Media is an attached photo/video/gif. URL is the selected variant, the
// file it points to is LocalFileHash.
type Media struct {
	ID            string    `db:"id" json:"id"`
	Type          MediaType `db:"type" json:"type"`
	URL           string    `db:"url" json:"url"`
	LocalFileHash Hash      `db:"local_file_hash" json:"local_file_hash"`
	CreatedAt     int64     `db:"created_at" json:"created_at"`
}

// TableName returns the table name for Media.
func (Media) TableName() string {
	return "media"
}
