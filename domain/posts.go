package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Post is a local content item. Content is stored as entered and only
// HTML-escaped when rendered into a page or an activity.
type Post struct {
	Id       uuid.UUID
	AuthorId uuid.UUID
	Author   string // screen name, joined in on read
	Content  string
	PostedAt time.Time
}

func (p *Post) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tAuthor: %s \n\tPostedAt: %s", p.Id, p.Author, p.PostedAt)
}
