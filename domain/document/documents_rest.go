package document

import (
	"docflow/bizerror"
	"docflow/config"
	"docflow/session"
	"net/http"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var (
	PathDocuments = "/v1/documents"
)

type documentHandler struct {
	catalog *config.Catalog
}

func RegisterDocumentsRestAPI(r *gin.Engine, catalog *config.Catalog, middleWares ...gin.HandlerFunc) {
	h := &documentHandler{catalog: catalog}
	g := r.Group(PathDocuments, middleWares...)
	g.POST("", h.handleCreate)
	g.GET("", handleQuery)
	g.GET("/:id", handleDetail)
	g.POST("/:id/versions", handleAddVersion)
	g.GET("/:id/versions", handleListVersions)
	g.POST("/:id/executed", handleMarkExecuted)
}

func (h *documentHandler) handleCreate(c *gin.Context) {
	creation := DocumentCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	doc, err := CreateDocumentFunc(&creation, h.catalog, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, doc)
}

func handleQuery(c *gin.Context) {
	q := DocumentQuery{}
	if err := c.ShouldBindWith(&q, binding.Query); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	documents, err := QueryDocumentsFunc(&q, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, documents)
}

func handleDetail(c *gin.Context) {
	id := documentID(c)
	doc, err := DetailDocumentFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, doc)
}

func handleAddVersion(c *gin.Context) {
	id := documentID(c)
	creation := VersionCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	v, err := AddVersionFunc(id, &creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, v)
}

func handleListVersions(c *gin.Context) {
	versions, err := ListVersionsFunc(documentID(c), session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, versions)
}

func handleMarkExecuted(c *gin.Context) {
	doc, err := MarkExecutedFunc(documentID(c), session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, doc)
}

func documentID(c *gin.Context) types.ID {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	return id
}
