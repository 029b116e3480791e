package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/visa-interview/backend/internal/catalog"
	"github.com/zhouzirui/visa-interview/backend/internal/model/interview"
	"github.com/zhouzirui/visa-interview/backend/pkg/utils"
)

// Handler serves the read-only question catalog.
type Handler struct {
	catalog *catalog.Catalog
}

// New creates a catalog handler.
func New(cat *catalog.Catalog) *Handler {
	return &Handler{catalog: cat}
}

// RegisterRoutes attaches catalog endpoints to the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/catalog", h.get)
	r.Get("/catalog/questions/{key}", h.question)
}

type catalogResponse struct {
	Categories []interview.CategoryInfo `json:"categories"`
	Questions  []*catalog.Question      `json:"questions"`
	Paths      int                      `json:"paths"`
	Ambiguous  []catalog.AmbiguousLeaf  `json:"ambiguous"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	report := h.catalog.Report()
	ambiguous := report.Ambiguous
	if ambiguous == nil {
		ambiguous = []catalog.AmbiguousLeaf{}
	}
	utils.RespondJSON(w, http.StatusOK, catalogResponse{
		Categories: h.catalog.Categories(),
		Questions:  h.catalog.Questions(),
		Paths:      report.Paths,
		Ambiguous:  ambiguous,
	})
}

func (h *Handler) question(w http.ResponseWriter, r *http.Request) {
	key := interview.QuestionKey(chi.URLParam(r, "key"))
	q, ok := h.catalog.Lookup(key)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "question not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, q)
}
