package web

import (
	"errors"
	"log"

	"github.com/gin-gonic/gin"

	"minipub/activitypub"
	"minipub/util"
)

// HandleInbox accepts federated activities POSTed to the local actor's inbox
// and maps dispatch errors onto stable JSON error kinds.
func HandleInbox(c *gin.Context, conf *util.AppConfig, ap *activitypub.Service) {
	if c.Param("name") != conf.Conf.Username {
		NotFound(c)
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		InvalidObject(c)
		return
	}

	err = ap.ProcessInbox(c.Request.Context(), body)
	switch {
	case err == nil:
		Success(c)
	case errors.Is(err, activitypub.ErrInvalidObject):
		InvalidObject(c)
	case errors.Is(err, activitypub.ErrInvalidType):
		InvalidType(c)
	case errors.Is(err, activitypub.ErrNotFound):
		NotFound(c)
	default:
		log.Println("Inbox: processing failed:", err)
		InternalError(c)
	}
}
