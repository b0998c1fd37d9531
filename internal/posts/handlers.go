package posts

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Client-facing messages. Store failures are never described in more detail.
const (
	msgListFailed = "The posts information could not be retrieved."

	msgPostNotFound  = "The post does not exist"
	msgGetPostFailed = "The post information could not be retrieved."

	msgCommentsPostNotFound = "The post with the specified id does not exist."
	msgGetCommentsFailed    = "The comment information could not be retrieved."

	msgUpdateInvalid  = "Please provide a title and contents for post."
	msgUpdateNotFound = "The post with the specified ID does not exist."
	msgUpdateFailed   = "The post information could not be modified."

	msgCreateInvalid = "Please provide a title and content for the post."
	msgCreateFailed  = "There was an error while saving the post to the database"

	msgDeleted        = "Post has been deleted"
	msgDeleteNotFound = "The post with the specified ID does not exist"
	msgDeleteFailed   = "the post could not be removed."

	msgCommentInvalid  = "Please provide text for the comment."
	msgCommentNotFound = "The post with the specified ID does not exist."
	msgCommentFailed   = "There was an error while saving the comment to the database"
)

// Handler handles HTTP requests for posts and their comments
type Handler struct {
	store  Store
	logger *slog.Logger
}

// NewHandler creates a new posts handler
func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// ListPosts handles GET /api/posts?sortBy=&limit=
func (h *Handler) ListPosts(c *gin.Context) {
	opts := QueryOptions{
		SortBy: c.Query("sortBy"),
		Limit:  c.Query("limit"),
	}

	posts, err := h.store.Find(c.Request.Context(), opts)
	if err != nil {
		h.fail(c, "list posts", err, msgListFailed)
		return
	}
	if posts == nil {
		posts = []Post{}
	}

	c.JSON(http.StatusOK, posts)
}

// GetPost handles GET /api/posts/:id
func (h *Handler) GetPost(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		respond(c, http.StatusNotFound, msgPostNotFound)
		return
	}

	post, err := h.store.FindByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get post", err, msgGetPostFailed)
		return
	}
	if post == nil {
		respond(c, http.StatusNotFound, msgPostNotFound)
		return
	}

	c.JSON(http.StatusOK, post)
}

// GetPostComments handles GET /api/posts/:id/comments.
// An existing post without comments yields 200 and an empty array.
func (h *Handler) GetPostComments(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		respond(c, http.StatusNotFound, msgCommentsPostNotFound)
		return
	}

	comments, err := h.store.FindCommentsByPostID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get comments", err, msgGetCommentsFailed)
		return
	}
	if comments == nil {
		respond(c, http.StatusNotFound, msgCommentsPostNotFound)
		return
	}

	c.JSON(http.StatusOK, comments)
}

// UpdatePost handles PUT /api/posts/:id.
// A body without title or contents is answered with 404, not 400, and is
// checked before the id.
func (h *Handler) UpdatePost(c *gin.Context) {
	var req PostInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusNotFound, msgUpdateInvalid)
		return
	}

	id, ok := postID(c)
	if !ok {
		respond(c, http.StatusNotFound, msgUpdateNotFound)
		return
	}

	post, err := h.store.Update(c.Request.Context(), id, req)
	if err != nil {
		h.fail(c, "update post", err, msgUpdateFailed)
		return
	}
	if post == nil {
		respond(c, http.StatusNotFound, msgUpdateNotFound)
		return
	}

	c.JSON(http.StatusOK, post)
}

// CreatePost handles POST /api/posts
func (h *Handler) CreatePost(c *gin.Context) {
	var req PostInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, msgCreateInvalid)
		return
	}

	post, err := h.store.Insert(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "create post", err, msgCreateFailed)
		return
	}

	c.JSON(http.StatusCreated, post)
}

// DeletePost handles DELETE /api/posts/:id
func (h *Handler) DeletePost(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		respond(c, http.StatusNotFound, msgDeleteNotFound)
		return
	}

	removed, err := h.store.Remove(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "delete post", err, msgDeleteFailed)
		return
	}
	if removed <= 0 {
		respond(c, http.StatusNotFound, msgDeleteNotFound)
		return
	}

	respond(c, http.StatusOK, msgDeleted)
}

// CreateComment handles POST /api/posts/:id/comments.
// The parent is looked up first; the lookup and the insert are not atomic,
// the comments foreign key catches a post deleted in between.
func (h *Handler) CreateComment(c *gin.Context) {
	var req CommentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, msgCommentInvalid)
		return
	}

	id, ok := postID(c)
	if !ok {
		respond(c, http.StatusNotFound, msgCommentNotFound)
		return
	}

	ctx := c.Request.Context()

	post, err := h.store.FindByID(ctx, id)
	if err != nil {
		h.fail(c, "create comment", err, msgCommentFailed)
		return
	}
	if post == nil {
		respond(c, http.StatusNotFound, msgCommentNotFound)
		return
	}

	comment, err := h.store.InsertComment(ctx, id, req)
	if err != nil {
		h.fail(c, "create comment", err, msgCommentFailed)
		return
	}
	if comment == nil {
		respond(c, http.StatusNotFound, msgCommentNotFound)
		return
	}

	c.JSON(http.StatusCreated, comment)
}

// fail logs the store error and answers 500 with the route's fixed message.
func (h *Handler) fail(c *gin.Context, op string, err error, message string) {
	h.logger.Error("Store operation failed",
		"op", op,
		"path", c.FullPath(),
		"post_id", c.Param("id"),
		"request_id", c.GetString("request_id"),
		"error", err)
	_ = c.Error(err)
	respond(c, http.StatusInternalServerError, message)
}

func respond(c *gin.Context, status int, message string) {
	c.JSON(status, MessageResponse{Message: message})
}

// postID parses the :id path parameter. Anything but a positive integer
// cannot name a stored post.
func postID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
