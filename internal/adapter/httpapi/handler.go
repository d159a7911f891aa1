package httpapi

import (
	"context"
	"io"
	"mime/multipart"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"docrag/internal/domain"
	"docrag/internal/usecase"
)

// Service is the part of the store manager exposed over HTTP.
type Service interface {
	AddDocuments(ctx context.Context, uploads []usecase.Upload, progress func(done, total int)) (*usecase.BatchResult, error)
	ListDocuments() ([]domain.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	Query(ctx context.Context, text string, k int) (*usecase.QueryResult, error)
	Status() (usecase.Status, error)
}

type DocumentHandler struct {
	svc Service
}

func NewDocumentHandler(svc Service) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

func (h *DocumentHandler) HandleHealthy(c *fiber.Ctx) error {
	status, err := h.svc.Status()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"result": "ok", "index": status})
}

func (h *DocumentHandler) HandleList(c *fiber.Ctx) error {
	docs, err := h.svc.ListDocuments()
	if err != nil {
		return err
	}
	return c.JSON(DocumentsResponse{Documents: docs})
}

func (h *DocumentHandler) HandleUpload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return NewError(fiber.StatusBadRequest, "multipart form with files expected")
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return NewError(fiber.StatusBadRequest, "no files uploaded")
	}

	uploads := make([]usecase.Upload, 0, len(headers))
	for _, fh := range headers {
		data, err := readFormFile(fh)
		if err != nil {
			return err
		}
		uploads = append(uploads, usecase.Upload{Name: fh.Filename, Data: data})
	}

	res, err := h.svc.AddDocuments(c.UserContext(), uploads, nil)
	if err != nil {
		return err
	}

	resp := UploadResponse{
		Message: res.Summary(),
		Indexed: res.Indexed,
		Skipped: res.Skipped,
		Chunks:  res.Chunks,
		Results: res.Results,
	}
	for _, e := range res.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}
	return c.JSON(resp)
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h *DocumentHandler) HandleDelete(c *fiber.Ctx) error {
	name, err := url.PathUnescape(c.Params("name"))
	if err != nil || name == "" {
		return NewError(fiber.StatusBadRequest, "document name required")
	}
	if err := h.svc.DeleteDocument(c.UserContext(), name); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": name})
}

func (h *DocumentHandler) HandleQuery(c *fiber.Ctx) error {
	var params QueryParams
	if err := c.BodyParser(&params); err != nil {
		return ErrBadRequest()
	}
	if errs := params.Validate(); len(errs) > 0 {
		return NewValidationError(errs)
	}

	res, err := h.svc.Query(c.UserContext(), params.Query, params.K)
	if err != nil {
		return err
	}

	resp := QueryResponse{NothingIndexed: res.NothingIndexed, Results: res.Results}
	if res.NothingIndexed {
		resp.Message = "nothing indexed yet"
	}
	return c.JSON(resp)
}
