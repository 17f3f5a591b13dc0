package api

import (
	"github.com/gin-gonic/gin"

	"github.com/andcoolsystems/eldraxis/internal/handlers"
)

func registerSkinRoutes(router gin.IRouter, handler *handlers.SkinHandler) {
	router.GET("/", handler.Root)
	router.GET("/skin/:nickname", handler.Skin)
	router.GET("/head/:nickname", handler.Head)
	router.GET("/cape/:nickname", handler.Cape)
	router.GET("/head3d/:nickname", handler.Head3D)
	router.GET("/profile/:nickname", handler.Profile)
	router.GET("/search/:nickname", handler.Search)
}
