package posts

import "github.com/gin-gonic/gin"

// RegisterRoutes binds the post and comment routes onto rg, normally the
// /api/posts group of the server's engine.
func RegisterRoutes(rg *gin.RouterGroup, h *Handler) {
	rg.GET("", h.ListPosts)      // GET /api/posts?sortBy=title&limit=10
	rg.POST("", h.CreatePost)    // POST /api/posts
	rg.GET("/:id", h.GetPost)    // GET /api/posts/:id
	rg.PUT("/:id", h.UpdatePost) // PUT /api/posts/:id
	rg.DELETE("/:id", h.DeletePost)

	rg.GET("/:id/comments", h.GetPostComments)
	rg.POST("/:id/comments", h.CreateComment)
}
