package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-idempotent-contests/internal/auth"
	"github.com/imrishuroy/go-idempotent-contests/internal/photos"
	"github.com/imrishuroy/go-idempotent-contests/internal/validation"
)

func (a *API) uploadURL(c *gin.Context) {
	var req validation.UploadURLRequest
	if err := validation.BindAndValidate(c, &req, a.validate); err != nil {
		return
	}
	grant, err := a.Photos.RequestGrant(c.Request.Context(), req.EventID, auth.UserID(c), req.ThemeChosen)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, grant)
}

func (a *API) confirmUpload(c *gin.Context) {
	var req validation.ConfirmUploadRequest
	if err := validation.BindAndValidate(c, &req, a.validate); err != nil {
		return
	}
	p, err := a.Photos.ConfirmUpload(c.Request.Context(), photos.Confirmation{
		Key:         req.Key,
		EventID:     req.EventID,
		UploadedBy:  req.UploadedBy,
		ThemeChosen: req.ThemeChosen,
	}, auth.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (a *API) listEventPhotos(c *gin.Context) {
	list, err := a.Photos.ListByEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []photos.Photo{}
	}
	c.JSON(http.StatusOK, gin.H{"photos": list})
}

func (a *API) getPhoto(c *gin.Context) {
	p, err := a.Photos.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (a *API) likePhoto(c *gin.Context) {
	if err := a.Photos.Like(c.Request.Context(), c.Param("id"), auth.UserID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "liked", "photoId": c.Param("id")})
}

func (a *API) unlikePhoto(c *gin.Context) {
	if err := a.Photos.Unlike(c.Request.Context(), c.Param("id"), auth.UserID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unliked", "photoId": c.Param("id")})
}
