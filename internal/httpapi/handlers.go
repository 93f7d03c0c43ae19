package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

const headerDocumentFresh = "X-Document-Fresh"

func (h *handler) accept(c *gin.Context) {
	offerID := c.Param("id")

	var req acceptRequest
	if c.ContentType() == gin.MIMEJSON {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "email is required and must be valid"})
			return
		}
	} else if err := c.ShouldBindQuery(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "email is required and must be valid"})
		return
	}
	if req.Token == "" {
		req.Token = c.Query("token")
	}

	result, err := h.acceptor.Accept(c.Request.Context(), offerID, req.Token, req.Email)
	if err != nil {
		h.logger.WithFields(log.Fields{"offer_id": offerID, "kind": domain.Kind(err)}).
			WithError(err).Info("public acceptance rejected")
		h.failPublic(c, err)
		return
	}

	c.JSON(http.StatusOK, acceptResponse{
		OfferID:     result.OfferID,
		OfferNumber: result.OfferNumber,
		Status:      string(domain.OfferStatusAccepted),
		AcceptedAt:  result.AcceptedAt,
	})
}

// pdf отдаёт документ; с ?check=1 только сообщает, есть ли он в кэше.
func (h *handler) pdf(c *gin.Context) {
	offerID := c.Param("id")
	if check := c.Query("check"); check == "1" || strings.EqualFold(check, "true") {
		h.pdfCheck(c, offerID)
		return
	}

	doc, err := h.documents.GetOrGenerate(c.Request.Context(), offerID)
	if err != nil {
		h.fail(c, "get pdf", err)
		return
	}

	contentType := doc.ContentType
	if contentType == "" {
		contentType = domain.DocumentContentType
	}
	c.Header("Last-Modified", doc.GeneratedAt.UTC().Format(http.TimeFormat))
	c.Header("Content-Disposition", `inline; filename="offer-`+offerID+`.pdf"`)
	c.Data(http.StatusOK, contentType, doc.Content)
}

func (h *handler) pdfCheck(c *gin.Context, offerID string) {
	info, err := h.documents.Stat(c.Request.Context(), offerID)
	if err != nil {
		h.fail(c, "stat pdf", err)
		return
	}
	resp := documentInfoResponse{
		OfferID: info.OfferID,
		Exists:  info.Exists,
		Fresh:   info.Fresh,
		Size:    info.Size,
	}
	if info.Exists {
		lm := info.LastModified.UTC()
		resp.LastModified = &lm
	}
	c.JSON(http.StatusOK, resp)
}

// pdfHead сообщает метаданные закэшированного документа без тела.
func (h *handler) pdfHead(c *gin.Context) {
	info, err := h.documents.Stat(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Status(kindStatus[domain.Kind(err)])
		return
	}
	if !info.Exists {
		c.Status(http.StatusNotFound)
		return
	}
	c.Header("Content-Type", domain.DocumentContentType)
	c.Header("Content-Length", strconv.Itoa(info.Size))
	c.Header("Last-Modified", info.LastModified.UTC().Format(http.TimeFormat))
	c.Header(headerDocumentFresh, strconv.FormatBool(info.Fresh))
	c.Status(http.StatusOK)
}

func (h *handler) getOffer(c *gin.Context) {
	offer, err := h.offers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get offer", err)
		return
	}
	c.JSON(http.StatusOK, toOfferResponse(offer))
}

func (h *handler) listOffers(c *gin.Context) {
	filter := domain.OfferFilter{Status: domain.OfferStatus(c.Query("status"))}
	var err error
	if filter.Limit, err = intQuery(c, "limit"); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "limit must be an integer", Code: string(domain.KindValidation)})
		return
	}
	if filter.Offset, err = intQuery(c, "offset"); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "offset must be an integer", Code: string(domain.KindValidation)})
		return
	}

	offers, total, err := h.offers.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, "list offers", err)
		return
	}
	filter = filter.Normalize()
	resp := offerListResponse{
		Data:   make([]offerResponse, 0, len(offers)),
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	for _, o := range offers {
		resp.Data = append(resp.Data, toOfferResponse(o))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) history(c *gin.Context) {
	entries, err := h.offers.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "list history", err)
		return
	}
	resp := make([]historyResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toHistoryResponse(e))
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

