package httpserver

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", s.metricsEndpoint)

	api := s.echo.Group("/api/v1")

	// Ingestion surface: authenticated per request by the client secret
	// carried in the X-Client-Secret header; the admission gate inside the
	// workflow does the actual verification.
	assets := api.Group("/assets")
	assets.POST("", s.uploadAsset)
	assets.GET("", s.listAssets)
	assets.DELETE("/:id", s.deleteAsset)

	// Provisioning surface, guarded by the static admin token.
	admin := api.Group("/admin", s.middleware.AdminAuth.RequireAdminToken())
	clients := admin.Group("/clients")
	clients.POST("", s.createClient)
	clients.GET("", s.listClients)
	clients.GET("/:id", s.getClient)
	clients.POST("/:id/rotate", s.rotateClientCredentials)
	clients.PUT("/:id/activate", s.activateClient)
	clients.PUT("/:id/deactivate", s.deactivateClient)
}
