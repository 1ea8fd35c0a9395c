package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"phishguard-backend/internal/models"
	"phishguard-backend/internal/repository"
)

// TemplateHandler is the authoring boundary. Templates are validated at load
// time, including substitution tokens; a template that passes creation never
// produces a runtime substitution error.
type TemplateHandler struct {
	repo *repository.TemplateRepo
}

func NewTemplateHandler(repo *repository.TemplateRepo) *TemplateHandler {
	return &TemplateHandler{repo: repo}
}

var substitutionToken = regexp.MustCompile(`\{\{([a-zA-Z_]+)\}\}`)

// Tokens the generation layer substitutes. Anything else in a template is an
// authoring mistake.
var knownTokens = map[string]bool{
	"platform": true,
	"details":  true,
}

func validateTemplate(t *models.SimulationTemplate) error {
	if t.Title == "" {
		return fmt.Errorf("%w: title is required", models.ErrValidation)
	}
	if !t.Channel.Valid() {
		return fmt.Errorf("%w: invalid channel %q", models.ErrValidation, string(t.Channel))
	}
	if !t.Difficulty.Valid() {
		return fmt.Errorf("%w: invalid difficulty %q", models.ErrValidation, string(t.Difficulty))
	}
	if len(t.Steps) == 0 {
		return fmt.Errorf("%w: at least one step is required", models.ErrValidation)
	}

	for i, step := range t.Steps {
		if step.Prompt == "" {
			return fmt.Errorf("%w: step %d has no prompt", models.ErrValidation, i)
		}
		if err := validateTokens(step.Prompt); err != nil {
			return fmt.Errorf("%w in step %d prompt", err, i)
		}
		if len(step.Options) > 0 && step.CorrectOption() == nil {
			return fmt.Errorf("%w: step %d has options but none is marked correct", models.ErrValidation, i)
		}
		seen := make(map[string]bool, len(step.Options))
		for _, option := range step.Options {
			if option.ID == "" {
				return fmt.Errorf("%w: step %d has an option without an id", models.ErrValidation, i)
			}
			if seen[option.ID] {
				return fmt.Errorf("%w: step %d has duplicate option id %q", models.ErrValidation, i, option.ID)
			}
			seen[option.ID] = true
			if err := validateTokens(option.Text); err != nil {
				return fmt.Errorf("%w in step %d option %q", err, i, option.ID)
			}
		}
	}
	return nil
}

func validateTokens(s string) error {
	for _, match := range substitutionToken.FindAllStringSubmatch(s, -1) {
		if !knownTokens[match[1]] {
			return fmt.Errorf("%w: unknown substitution token {{%s}}", models.ErrValidation, match[1])
		}
	}
	return nil
}

func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var template models.SimulationTemplate
	if err := json.NewDecoder(r.Body).Decode(&template); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if err := validateTemplate(&template); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.repo.Create(r.Context(), &template); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, template)
}

func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	templates, err := h.repo.List(r.Context(), activeOnly)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"templates": templates})
}

func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid template ID", r))
		return
	}

	template, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, template)
}
