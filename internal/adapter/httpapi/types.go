package httpapi

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"docrag/internal/domain"
	"docrag/internal/usecase"
)

var validate = validator.New()

type QueryParams struct {
	Query string `json:"query" validate:"required"`
	K     int    `json:"k" validate:"omitempty,min=1,max=100"`
}

// Validate returns field errors keyed by field name, or nil.
func (p *QueryParams) Validate() map[string]string {
	if err := validate.Struct(p); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return map[string]string{"request": err.Error()}
		}
		out := make(map[string]string, len(errs))
		for _, e := range errs {
			out[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return out
	}
	return nil
}

type QueryResponse struct {
	NothingIndexed bool                 `json:"nothing_indexed"`
	Message        string               `json:"message,omitempty"`
	Results        []domain.ScoredChunk `json:"results"`
}

type UploadResponse struct {
	Message string              `json:"message"`
	Indexed int                 `json:"indexed"`
	Skipped int                 `json:"skipped"`
	Chunks  int                 `json:"chunks"`
	Results []usecase.AddResult `json:"results"`
	Errors  []string            `json:"errors,omitempty"`
}

type DocumentsResponse struct {
	Documents []domain.Document `json:"documents"`
}
