package tags

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"recipebox/utils"
)

const defaultTagColor = "#9E9E9E"

type Handlers struct {
	svc *Service
}

func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// GetTags lists the global tags and the caller's own tags.
func (h *Handlers) GetTags(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID := utils.GetUserIDFromRequest(r)
	utils.RespondWithJSON(w, http.StatusOK, h.svc.GetAllTags(r.Context(), userID))
}

func (h *Handlers) GetTag(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tag, ok := h.svc.GetTagByID(r.Context(), ps.ByName("id"))
	if !ok {
		utils.RespondWithError(w, http.StatusNotFound, "Tag not found")
		return
	}
	userID := utils.GetUserIDFromRequest(r)
	if !tag.IsGlobal && tag.UserID != userID {
		utils.RespondWithError(w, http.StatusNotFound, "Tag not found")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, tag)
}

type createTagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (h *Handlers) CreateTag(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req createTagRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Tag name is required")
		return
	}
	if req.Color == "" {
		req.Color = defaultTagColor
	}

	tag, err := h.svc.CreateTag(r.Context(), req.Name, req.Color, userID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create tag")
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, tag)
}
