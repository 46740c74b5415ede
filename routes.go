package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"slr-manager/apperr"
	"slr-manager/config"
	"slr-manager/correlation"
	"slr-manager/httpapi"
	"slr-manager/models"
	"slr-manager/providers"
	"slr-manager/services"
	"slr-manager/storage"
)

// reviewServices bündelt die Services des Review-Service.
type reviewServices struct {
	SLRs        *services.SLRService
	Researchers *services.ResearcherService
	Protocols   *services.ProtocolService
	Keywords    *services.KeywordService
	Criteria    *services.SelectionCriteriaService
	DataSources *services.DataSourceRegistry
	Reports     *services.ReportService
	Searches    *services.SearchRequestService
}

func newReviewServices(db *gorm.DB, remote providers.SearchService, uploader services.ReportUploader, cfg *config.Config, log *zap.Logger) *reviewServices {
	links := services.NewLinkManager(log)
	cascade := services.NewCascadeOrchestrator(remote, log)
	dataSources := services.NewDataSourceRegistry(db, links, log)
	protocols := services.NewProtocolService(db, links, dataSources, cascade, log)
	return &reviewServices{
		SLRs:        services.NewSLRService(db, links, protocols, cascade, log),
		Researchers: services.NewResearcherService(db, log),
		Protocols:   protocols,
		Keywords:    services.NewKeywordService(db, links, log),
		Criteria:    services.NewSelectionCriteriaService(db, links, log),
		DataSources: dataSources,
		Reports:     services.NewReportService(db, uploader, log),
		Searches:    services.NewSearchRequestService(db, links, cfg.SearchJobMaxRetries, log),
	}
}

func setupRouter(svc *reviewServices, cfg *config.Config, deny storage.DenyList, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(correlation.Middleware())
	router.Use(httpapi.APIKeyAuth(cfg.APISecretKey))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Vom Search-Service aufgerufen, nur API-Key.
	setupCrossServiceRoutes(router, svc, log)

	user := router.Group("/", httpapi.BearerAuth(cfg.JWTSecret, deny, log))
	user.POST("/auth/revoke", httpapi.RevokeHandler(deny, log))
	setupResearcherRoutes(user, svc, log)
	setupSLRRoutes(user, svc, log)
	setupProtocolRoutes(user, svc, log)
	setupCatalogRoutes(user, svc, log)
	return router
}

func setupResearcherRoutes(rg *gin.RouterGroup, svc *reviewServices, log *zap.Logger) {
	rg.POST("/researchers", func(c *gin.Context) {
		var req services.RegisterResearcherInput
		if !httpapi.BindJSON(c, &req) {
			return
		}
		r, err := svc.Researchers.Register(c.Request.Context(), req)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, r)
	})
	rg.GET("/researchers/:id", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		r, err := svc.Researchers.Get(c.Request.Context(), id)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, r)
	})
	rg.GET("/users/:userId/slrs", func(c *gin.Context) {
		userID, ok := httpapi.ParamID(c, "userId")
		if !ok {
			return
		}
		slrs, err := svc.SLRs.FindByResearcherUserID(c.Request.Context(), userID)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, slrs)
	})
}

func setupSLRRoutes(rg *gin.RouterGroup, svc *reviewServices, log *zap.Logger) {
	g := rg.Group("/slr")

	g.POST("", func(c *gin.Context) {
		var req struct {
			services.SLRInput
			PrincipalResearcherID uint `json:"principal_researcher_id"`
		}
		if !httpapi.BindJSON(c, &req) {
			return
		}
		if req.PrincipalResearcherID == 0 {
			httpapi.RespondError(c, log, apperr.InvalidInput("principal_researcher_id is required"))
			return
		}
		slr, err := svc.SLRs.Create(c.Request.Context(), req.SLRInput, req.PrincipalResearcherID)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, slr)
	})

	g.GET("/:id", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		slr, err := svc.SLRs.Get(c.Request.Context(), id)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, slr)
	})

	g.PUT("/:id", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		var req services.SLRInput
		if !httpapi.BindJSON(c, &req) {
			return
		}
		slr, err := svc.SLRs.Update(c.Request.Context(), id, req)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, slr)
	})

	g.DELETE("/:id", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		if err := svc.SLRs.Delete(c.Request.Context(), id); err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	g.POST("/:id/researchers", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		var req struct {
			services.ResearcherInput
			UserID uint `json:"user_id"`
		}
		if !httpapi.BindJSON(c, &req) {
			return
		}
		r, err := svc.SLRs.AddResearcher(c.Request.Context(), id, req.ResearcherInput, req.UserID)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, r)
	})

	g.DELETE("/:id/researchers/:researcherId", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		researcherID, ok := httpapi.ParamID(c, "researcherId")
		if !ok {
			return
		}
		if err := svc.SLRs.RemoveResearcher(c.Request.Context(), id, researcherID); err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	g.POST("/:id/protocol", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		var req services.ProtocolInput
		if !httpapi.BindJSON(c, &req) {
			return
		}
		p, err := svc.Protocols.Create(c.Request.Context(), id, req)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	})

	g.GET("/:id/report", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		report, err := svc.Reports.Get(c.Request.Context(), id)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, report)
	})

	g.PUT("/:id/report", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		var req services.ReportInput
		if !httpapi.BindJSON(c, &req) {
			return
		}
		report, err := svc.Reports.Save(c.Request.Context(), id, req)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, report)
	})

	g.POST("/:id/report/export", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		report, err := svc.Reports.Export(c.Request.Context(), id)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, report)
	})
}

func setupProtocolRoutes(rg *gin.RouterGroup, svc *reviewServices, log *zap.Logger) {
	g := rg.Group("/protocol")

	g.GET("/:id", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		p, err := svc.Protocols.Get(c.Request.Context(), id)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, p)
	})

	g.PUT("/:id", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		var req services.ProtocolInput
		if !httpapi.BindJSON(c, &req) {
			return
		}
		p, err := svc.Protocols.Update(c.Request.Context(), id, req)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, p)
	})

	g.DELETE("/:id", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		if err := svc.Protocols.Delete(c.Request.Context(), id); err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	g.POST("/:id/keywords", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		var req struct {
			Word string `json:"word"`
		}
		if !httpapi.BindJSON(c, &req) {
			return
		}
		kw, err := svc.Keywords.CreateAndLink(c.Request.Context(), id, req.Word)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, kw)
	})

	g.DELETE("/:id/keywords/:keywordId", func(c *gin.Context) {
		linkRoute(c, log, "keywordId", svc.Keywords.Unlink)
	})

	g.POST("/:id/selection-criteria", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		var req services.CriteriaInput
		if !httpapi.BindJSON(c, &req) {
			return
		}
		criteria, err := svc.Criteria.CreateAndLink(c.Request.Context(), id, req)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, criteria)
	})

	g.PUT("/:id/selection-criteria/:criteriaId", func(c *gin.Context) {
		linkRoute(c, log, "criteriaId", svc.Criteria.Link)
	})

	g.DELETE("/:id/selection-criteria/:criteriaId", func(c *gin.Context) {
		linkRoute(c, log, "criteriaId", svc.Criteria.Unlink)
	})

	g.POST("/:id/data-sources", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		var req services.CreateDataSourceInput
		if !httpapi.BindJSON(c, &req) {
			return
		}
		ds, err := svc.DataSources.Create(c.Request.Context(), id, req)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, ds)
	})

	g.PUT("/:id/data-sources/:dataSourceId", func(c *gin.Context) {
		linkRoute(c, log, "dataSourceId", svc.DataSources.Link)
	})

	g.DELETE("/:id/data-sources/:dataSourceId", func(c *gin.Context) {
		linkRoute(c, log, "dataSourceId", svc.DataSources.Unlink)
	})

	g.POST("/:id/forms/:formType", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		role, ok := models.ParseFormRole(c.Param("formType"))
		if !ok {
			httpapi.RespondError(c, log, apperr.InvalidInput("unknown form type %q", c.Param("formType")))
			return
		}
		var req struct {
			Fields []services.FormFieldInput `json:"fields"`
		}
		if !httpapi.BindJSON(c, &req) {
			return
		}
		form, err := svc.Protocols.AddForm(c.Request.Context(), id, role, req.Fields)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, form)
	})

	g.POST("/:id/searches", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		var req struct {
			DataSourceID uint   `json:"data_source_id"`
			Query        string `json:"query"`
		}
		if !httpapi.BindJSON(c, &req) {
			return
		}
		job, err := svc.Searches.Enqueue(c.Request.Context(), id, req.DataSourceID, req.Query)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusAccepted, job)
	})

	rg.GET("/search-jobs/:id", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		job, err := svc.Searches.Get(c.Request.Context(), id)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, job)
	})

	forms := rg.Group("/forms")
	forms.POST("/:id/fields", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		var req services.FormFieldInput
		if !httpapi.BindJSON(c, &req) {
			return
		}
		field, err := svc.Protocols.AddFormField(c.Request.Context(), id, req)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, field)
	})
	forms.DELETE("/:id", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		if err := svc.Protocols.DeleteForm(c.Request.Context(), id); err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

// setupCatalogRoutes registriert die Endpunkte für geteilte Entitäten (Keywords,
// Kriterien, Datenquellen) unabhängig von einem Protokoll.
func setupCatalogRoutes(rg *gin.RouterGroup, svc *reviewServices, log *zap.Logger) {
	rg.GET("/keywords/:id", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		kw, err := svc.Keywords.Get(c.Request.Context(), id)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, kw)
	})
	rg.DELETE("/keywords/:id", func(c *gin.Context) {
		remove(c, log, svc.Keywords.Delete)
	})

	rg.GET("/selection-criteria/:id", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		criteria, err := svc.Criteria.Get(c.Request.Context(), id)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, criteria)
	})
	rg.PUT("/selection-criteria/:id", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		var req services.CriteriaInput
		if !httpapi.BindJSON(c, &req) {
			return
		}
		criteria, err := svc.Criteria.Update(c.Request.Context(), id, req)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, criteria)
	})
	rg.DELETE("/selection-criteria/:id", func(c *gin.Context) {
		remove(c, log, svc.Criteria.Delete)
	})

	rg.GET("/data-sources/:id", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		ds, err := svc.DataSources.Get(c.Request.Context(), id)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, ds)
	})
	rg.DELETE("/data-sources/:id", func(c *gin.Context) {
		remove(c, log, svc.DataSources.Delete)
	})
}

func setupCrossServiceRoutes(router *gin.Engine, svc *reviewServices, log *zap.Logger) {
	router.GET("/protocol/:id/get-selection-criteria", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		criteria, err := svc.Protocols.SelectionCriteriaOf(c.Request.Context(), id)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, criteria)
	})

	router.GET("/protocol/:id/get-form-data/:formType", func(c *gin.Context) {
		id, ok := httpapi.ParamID(c, "id")
		if !ok {
			return
		}
		role, ok := models.ParseFormRole(c.Param("formType"))
		if !ok {
			httpapi.RespondError(c, log, apperr.InvalidInput("unknown form type %q", c.Param("formType")))
			return
		}
		form, err := svc.Protocols.FormData(c.Request.Context(), id, role)
		if err != nil {
			httpapi.RespondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, form)
	})
}

// linkRoute bedient die Routen /protocol/:id/<art>/:<param> für Link und Unlink.
func linkRoute(c *gin.Context, log *zap.Logger, param string, op func(ctx context.Context, protocolID, targetID uint) error) {
	protocolID, ok := httpapi.ParamID(c, "id")
	if !ok {
		return
	}
	targetID, ok := httpapi.ParamID(c, param)
	if !ok {
		return
	}
	if err := op(c.Request.Context(), protocolID, targetID); err != nil {
		httpapi.RespondError(c, log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func remove(c *gin.Context, log *zap.Logger, op func(ctx context.Context, id uint) error) {
	id, ok := httpapi.ParamID(c, "id")
	if !ok {
		return
	}
	if err := op(c.Request.Context(), id); err != nil {
		httpapi.RespondError(c, log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
