package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"slr-manager/apperr"
	"slr-manager/correlation"
	"slr-manager/httpapi"
	"slr-manager/models"
	"slr-manager/providers/searchservice"
	"slr-manager/services"
)

func setupRouter(searches *services.SearchService, instances *services.FormInstanceService, apiKey string, importLimit int, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(correlation.Middleware())
	router.Use(httpapi.APIKeyAuth(apiKey))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupSearchRoutes(router, searches, importLimit, log)
	setupFormInstanceRoutes(router, searches, instances, log)
	return router
}

func setupSearchRoutes(router *gin.Engine, searches *services.SearchService, importLimit int, log *zap.Logger) {
	rg := router.Group("/search")

	rg.POST("/:id/create-search", func(c *gin.Context) {
		dataSourceID, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		var req searchservice.CreateSearchRequest
		if !httpapi.BindJSON(c, &req) {
			return
		}
		search, err := searches.Create(c.Request.Context(), dataSourceID, req)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, search)
	})

	rg.GET("/:id", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		search, err := searches.Get(c.Request.Context(), id)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, search)
	})

	rg.GET("/:id/selection-criteria", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		criteria, err := searches.SelectionCriteria(c.Request.Context(), id)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, criteria)
	})

	rg.POST("/:id/studies", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		var req services.StudyInput
		if !httpapi.BindJSON(c, &req) {
			return
		}
		study, err := searches.AddStudy(c.Request.Context(), id, req)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, study)
	})

	// ?limit= überschreibt IMPORT_LIMIT.
	rg.POST("/:id/import", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		limit := importLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				httpapi.RespondError(c, log, apperr.InvalidInput("invalid limit %q", raw))
				return
			}
			limit = n
		}
		studies, err := searches.ImportStudies(c.Request.Context(), id, limit)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, studies)
	})
}

func setupFormInstanceRoutes(router *gin.Engine, searches *services.SearchService, instances *services.FormInstanceService, log *zap.Logger) {
	router.GET("/study/:id", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		study, err := searches.GetStudy(c.Request.Context(), id)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, study)
	})

	router.POST("/study/:id/form-instance/:formType", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		role, ok := models.ParseFormRole(c.Param("formType"))
		if !ok {
			httpapi.RespondError(c, log, apperr.InvalidInput("unknown form type %q", c.Param("formType")))
			return
		}
		instance, err := instances.Instantiate(c.Request.Context(), id, role)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, instance)
	})

	router.PUT("/form-field-instance/:id", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		var req struct {
			Value string `json:"value"`
		}
		if !httpapi.BindJSON(c, &req) {
			return
		}
		field, err := instances.SetFieldValue(c.Request.Context(), id, req.Value)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, field)
	})

	// Vom Review-Service bei Formular-, Protokoll- und SLR-Löschung aufgerufen.
	// 200 auch ohne Instanzen, damit eine Wiederholung konvergiert.
	router.DELETE("/form-instance/full-delete/:formId", func(c *gin.Context) {
		formID, ok := httpapi.ParamID(c, "formId")
		if !ok {
			return
		}
		deleted, err := instances.FullDelete(c.Request.Context(), formID)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, searchservice.FullDeleteResponse{FormID: formID, Deleted: deleted})
	})
}
