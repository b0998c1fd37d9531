package posts

import (
	"bytes"
	"encoding/json"
	"time"
)

// Post is a blog post as stored and returned by the API.
type Post struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Contents  string    `json:"contents"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Comment belongs to exactly one post.
type Comment struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	PostID    int64     `json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PostInput is the request body for creating and replacing a post.
// Both fields must be present and non-empty. Any JSON value is accepted; see
// presentText.
type PostInput struct {
	Title    string `json:"title" binding:"required"`
	Contents string `json:"contents" binding:"required"`
}

func (in *PostInput) UnmarshalJSON(data []byte) error {
	var raw struct {
		Title    json.RawMessage `json:"title"`
		Contents json.RawMessage `json:"contents"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var err error
	if in.Title, err = presentText(raw.Title); err != nil {
		return err
	}
	in.Contents, err = presentText(raw.Contents)
	return err
}

// CommentInput is the request body for adding a comment to a post.
type CommentInput struct {
	Text string `json:"text" binding:"required"`
}

func (in *CommentInput) UnmarshalJSON(data []byte) error {
	var raw struct {
		Text json.RawMessage `json:"text"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var err error
	in.Text, err = presentText(raw.Text)
	return err
}

// presentText turns a body field into stored text. Only presence is checked:
// absent, null, false, 0 and "" become the empty string and fail the
// required binding. Strings are kept as is; any other value keeps its JSON
// text, so {"title":5} stores "5".
func presentText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}

	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case bool:
		if !x {
			return "", nil
		}
	case float64:
		if x == 0 {
			return "", nil
		}
	}
	return string(raw), nil
}

// QueryOptions carries the raw listing query parameters. The handler
// forwards them untouched; the store decides what they mean.
type QueryOptions struct {
	SortBy string
	Limit  string
}

// MessageResponse is the body of every error and of delete confirmations.
type MessageResponse struct {
	Message string `json:"message"`
}
