package posts

import "context"

// Store is the data-access contract the HTTP handlers depend on.
//
// "Not found" is reported through zero values, never through errors:
// a nil *Post, a nil comment slice or a zero removal count. A non-nil
// error always means the store itself failed.
type Store interface {
	Find(ctx context.Context, opts QueryOptions) ([]Post, error)
	FindByID(ctx context.Context, id int64) (*Post, error)

	// FindCommentsByPostID returns nil when the post does not exist and a
	// non-nil, possibly empty, slice when it does.
	FindCommentsByPostID(ctx context.Context, postID int64) ([]Comment, error)

	Update(ctx context.Context, id int64, changes PostInput) (*Post, error)
	Insert(ctx context.Context, post PostInput) (*Post, error)
	Remove(ctx context.Context, id int64) (int64, error)

	// InsertComment returns nil when the parent post is gone.
	InsertComment(ctx context.Context, postID int64, comment CommentInput) (*Comment, error)
}
