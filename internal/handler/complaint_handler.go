package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campusdesk/complaint-api/internal/models"
	"github.com/campusdesk/complaint-api/internal/service"
	appErrors "github.com/campusdesk/complaint-api/pkg/errors"
	"github.com/campusdesk/complaint-api/pkg/response"
)

// ComplaintHandler exposes the complaint lifecycle endpoints.
type ComplaintHandler struct {
	complaints *service.ComplaintService
	exports    *service.ExportService
}

// NewComplaintHandler constructs ComplaintHandler.
func NewComplaintHandler(complaints *service.ComplaintService, exports *service.ExportService) *ComplaintHandler {
	return &ComplaintHandler{complaints: complaints, exports: exports}
}

// Create godoc
// @Summary Submit a complaint
// @Tags Complaints
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Success 201 {object} response.Envelope
// @Router /complaints [post]
func (h *ComplaintHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateComplaintRequest
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		req.Title = c.PostForm("title")
		req.Description = c.PostForm("description")
		req.Category = c.PostForm("category")
		req.Priority = c.PostForm("priority")
		req.Anonymous = c.PostForm("anonymous") == "true"
		uploads, err := parseUploads(c)
		if err != nil {
			response.Error(c, err)
			return
		}
		req.Attachments = uploads
	} else if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	detail, err := h.complaints.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// List godoc
// @Summary List complaints visible to the caller
// @Tags Complaints
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param category query string false "Filter by category"
// @Param priority query string false "Filter by priority"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /complaints [get]
func (h *ComplaintHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.ComplaintFilter
	filter.Status = c.Query("status")
	filter.Category = c.Query("category")
	filter.Priority = c.Query("priority")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	summaries, pagination, err := h.complaints.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, pagination)
}

// Get godoc
// @Summary Complaint detail
// @Tags Complaints
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Success 200 {object} response.Envelope
// @Router /complaints/{id} [get]
func (h *ComplaintHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	detail, err := h.complaints.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// UpdateStatus godoc
// @Summary Move a complaint along the status graph
// @Tags Complaints
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Param payload body service.UpdateStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /complaints/{id}/status [patch]
func (h *ComplaintHandler) UpdateStatus(c *gin.Context) {
	h.mutate(c, func(actor models.Actor, id string) (interface{}, error) {
		var req service.UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload")
		}
		return h.complaints.UpdateStatus(c.Request.Context(), actor, id, req)
	})
}

// UpdatePriority godoc
// @Summary Change complaint priority
// @Tags Complaints
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Param payload body service.UpdatePriorityRequest true "Priority payload"
// @Success 200 {object} response.Envelope
// @Router /complaints/{id}/priority [patch]
func (h *ComplaintHandler) UpdatePriority(c *gin.Context) {
	h.mutate(c, func(actor models.Actor, id string) (interface{}, error) {
		var req service.UpdatePriorityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload")
		}
		return h.complaints.UpdatePriority(c.Request.Context(), actor, id, req)
	})
}

// Assign godoc
// @Summary Assign a complaint to an admin
// @Tags Complaints
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Param payload body service.AssignComplaintRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Router /complaints/{id}/assign [patch]
func (h *ComplaintHandler) Assign(c *gin.Context) {
	h.mutate(c, func(actor models.Actor, id string) (interface{}, error) {
		var req service.AssignComplaintRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload")
		}
		return h.complaints.Assign(c.Request.Context(), actor, id, req)
	})
}

// Reject godoc
// @Summary Reject a complaint with a reason
// @Tags Complaints
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Param payload body service.RejectComplaintRequest true "Rejection payload"
// @Success 200 {object} response.Envelope
// @Router /complaints/{id}/reject [patch]
func (h *ComplaintHandler) Reject(c *gin.Context) {
	h.mutate(c, func(actor models.Actor, id string) (interface{}, error) {
		var req service.RejectComplaintRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload")
		}
		return h.complaints.Reject(c.Request.Context(), actor, id, req)
	})
}

// RequestInfo godoc
// @Summary Ask the submitter for more information
// @Tags Complaints
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Param payload body service.RequestInfoRequest true "Question payload"
// @Success 200 {object} response.Envelope
// @Router /complaints/{id}/request-info [patch]
func (h *ComplaintHandler) RequestInfo(c *gin.Context) {
	h.mutate(c, func(actor models.Actor, id string) (interface{}, error) {
		var req service.RequestInfoRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload")
		}
		return h.complaints.RequestInfo(c.Request.Context(), actor, id, req)
	})
}

// SubmitInfo godoc
// @Summary Answer the pending information request
// @Tags Complaints
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Success 200 {object} response.Envelope
// @Router /complaints/{id}/submit-info [patch]
func (h *ComplaintHandler) SubmitInfo(c *gin.Context) {
	h.mutate(c, func(actor models.Actor, id string) (interface{}, error) {
		var req service.SubmitInfoRequest
		if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
			req.Response = c.PostForm("response")
			uploads, err := parseUploads(c)
			if err != nil {
				return nil, err
			}
			req.Attachments = uploads
		} else if err := c.ShouldBindJSON(&req); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload")
		}
		return h.complaints.SubmitInfo(c.Request.Context(), actor, id, req)
	})
}

// Reply godoc
// @Summary Post an admin reply
// @Tags Complaints
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Param payload body service.ReplyRequest true "Reply payload"
// @Success 200 {object} response.Envelope
// @Router /complaints/{id}/reply [patch]
func (h *ComplaintHandler) Reply(c *gin.Context) {
	h.mutate(c, func(actor models.Actor, id string) (interface{}, error) {
		var req service.ReplyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload")
		}
		return h.complaints.AddReply(c.Request.Context(), actor, id, req)
	})
}

// Feedback godoc
// @Summary Rate a resolved complaint
// @Tags Complaints
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Param payload body service.FeedbackRequest true "Feedback payload"
// @Success 200 {object} response.Envelope
// @Router /complaints/{id}/feedback [patch]
func (h *ComplaintHandler) Feedback(c *gin.Context) {
	h.mutate(c, func(actor models.Actor, id string) (interface{}, error) {
		var req service.FeedbackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload")
		}
		return h.complaints.AddFeedback(c.Request.Context(), actor, id, req)
	})
}

// Delete godoc
// @Summary Delete a complaint
// @Tags Complaints
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Success 204
// @Router /complaints/{id} [delete]
func (h *ComplaintHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.complaints.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Admins godoc
// @Summary List assignable admins
// @Tags Complaints
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /complaints/admins [get]
func (h *ComplaintHandler) Admins(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	admins, err := h.complaints.ListAdmins(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admins, nil)
}

// Export godoc
// @Summary Export the complaint register
// @Tags Complaints
// @Produce octet-stream
// @Security BearerAuth
// @Param format query string false "csv or pdf"
// @Success 200
// @Router /complaints/export [get]
func (h *ComplaintHandler) Export(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	result, err := h.exports.Generate(c.Request.Context(), actor, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}

// DownloadAttachment godoc
// @Summary Download an attachment via a signed token
// @Tags Complaints
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200
// @Router /attachments/download [get]
func (h *ComplaintHandler) DownloadAttachment(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "download token is required"))
		return
	}
	attachment, file, err := h.complaints.OpenAttachment(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", `attachment; filename="`+attachment.Name+`"`)
	c.Header("Content-Type", attachment.MIMEType)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}

func (h *ComplaintHandler) mutate(c *gin.Context, fn func(actor models.Actor, id string) (interface{}, error)) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := fn(actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// parseUploads decodes multipart files sent under the attachments field.
func parseUploads(c *gin.Context) ([]service.AttachmentUpload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart payload")
	}
	files := form.File["attachments"]
	uploads := make([]service.AttachmentUpload, 0, len(files))
	for _, fh := range files {
		data, err := readUpload(fh)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read uploaded file")
		}
		uploads = append(uploads, service.AttachmentUpload{
			Name:     fh.Filename,
			MIMEType: fh.Header.Get("Content-Type"),
			Data:     data,
		})
	}
	return uploads, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
