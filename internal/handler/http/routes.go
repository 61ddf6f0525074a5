package http

import (
	"github.com/gin-gonic/gin"

	"stop-game/internal/middleware"
)

// RegisterRoutes 挂载 /api 下的 REST 路由
func RegisterRoutes(router gin.IRouter, rooms *RoomHandler, topics *TopicHandler, tokens middleware.TokenParser) {
	RegisterValidators()
	auth := middleware.PlayerAuth(tokens)

	api := router.Group("/api")

	roomRoutes := api.Group("/rooms")
	{
		roomRoutes.POST("", rooms.CreateRoom)
		roomRoutes.GET("", rooms.ListActiveRooms)
		roomRoutes.GET("/:code", rooms.GetRoom)
		roomRoutes.POST("/:code/join", rooms.JoinRoom)
	}
	playerRoutes := api.Group("/rooms/:code").Use(auth, middleware.RequireRoomMatch())
	{
		playerRoutes.PATCH("/settings", rooms.UpdateSettings)
		playerRoutes.POST("/rounds", rooms.StartRound)
		playerRoutes.POST("/rounds/stop", rooms.StopRound)
		playerRoutes.POST("/answers", rooms.SubmitAnswers)
		playerRoutes.GET("/votes", rooms.VotingData)
		playerRoutes.POST("/votes", rooms.CastVotes)
		playerRoutes.POST("/votes/finish", rooms.FinishVoting)
		playerRoutes.POST("/chat", rooms.SendChat)
		playerRoutes.POST("/leave", rooms.LeaveRoom)
	}

	if topics == nil {
		return
	}
	topicRoutes := api.Group("/topics")
	{
		topicRoutes.GET("/defaults", topics.ListDefaults)
		topicRoutes.GET("/mine", auth, topics.ListMine)
		topicRoutes.GET("/:id", topics.Get)
		topicRoutes.POST("", auth, topics.Create)
		topicRoutes.DELETE("/:id", auth, topics.Delete)
	}
}
