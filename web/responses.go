package web

import "github.com/gin-gonic/gin"

// JSON error kinds of the federation surface.

func NotFound(c *gin.Context) {
	c.JSON(404, gin.H{"error": "not_found"})
}

func InvalidObject(c *gin.Context) {
	c.JSON(400, gin.H{"error": "invalid_object"})
}

func InvalidType(c *gin.Context) {
	c.JSON(400, gin.H{"error": "invalid_type"})
}

func InternalError(c *gin.Context) {
	c.JSON(500, gin.H{"error": "internal_error"})
}

func Success(c *gin.Context) {
	c.JSON(200, gin.H{})
}
