package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) registerRoutes(r gin.IRouter) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	r.POST("/organizations", s.handleRegisterOrganization)
	r.POST("/elections", s.handleCreateElection)

	org := r.Group("/organizations/:org/elections")
	org.GET("", s.handleListElections)
	org.GET("/count", s.handleElectionsCount)
	org.GET("/:id", s.handleGetElection)
	org.GET("/:id/audit", s.handleAuditElection)
	org.GET("/:id/voters/:voter", s.handleHaveVoted)
	org.POST("/:id/votes", s.handleVote)

	r.GET("/chain", s.handleChainBlocks)
	r.GET("/chain/verify", s.handleVerifyChain)
	r.GET("/metrics", s.handleMetrics)
}
