package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/suPer8Hu/kinfolk/internal/common"
	"github.com/suPer8Hu/kinfolk/internal/httpapi/handlers"
	"github.com/suPer8Hu/kinfolk/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(h.Log))
	r.Use(middleware.Recovery(h.Log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// people and marriages
	r.GET("/people", h.ListPeople)
	r.POST("/people", h.CreatePerson)
	r.GET("/people/:id", h.GetPerson)
	r.PATCH("/people/:id", h.UpdatePerson)
	r.DELETE("/people/:id", h.DeletePerson)
	r.POST("/people/:id/home", h.SetHomePerson)

	r.GET("/marriages", h.ListMarriages)
	r.POST("/marriages", h.CreateMarriage)
	r.GET("/marriages/:id", h.GetMarriage)
	r.PATCH("/marriages/:id", h.UpdateMarriage)
	r.DELETE("/marriages/:id", h.DeleteMarriage)

	// derived views
	r.GET("/relations", h.Relations)
	r.GET("/tree", h.Tree)

	// tools
	r.GET("/tools", h.ListTools)
	r.POST("/tools/:name", h.ExecuteTool)

	// chat
	r.POST("/chat/sessions", h.CreateChatSession)
	r.GET("/chat/sessions/:session_id", h.GetChatSession)
	r.GET("/chat/sessions/:session_id/messages", h.ListChatMessages)
	r.POST("/chat/messages", h.SendChatMessage)
	r.POST("/chat/messages/async", h.SendChatMessageAsync)
	r.GET("/chat/jobs/:job_id", h.GetChatJob)
	r.POST("/chat/feedback", h.SendFeedback)
	r.GET("/chat/feedback", h.ListFeedback)

	// ai profiles
	r.GET("/ai/profiles", h.ListProfiles)
	r.GET("/ai/profiles/:name/models", h.ListModels)
	r.POST("/ai/profiles/:name/test", h.TestConnection)
	return r
}
