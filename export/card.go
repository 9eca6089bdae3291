// Package export renders a printable recipe card.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"recipebox/models"
	"recipebox/utils"
)

var ErrUnknownServing = errors.New("unknown serving size")

type RecipeSource interface {
	GetRecipeByID(ctx context.Context, id string) (models.RecipeWithTags, bool)
}

type Handlers struct {
	recipes   RecipeSource
	publicURL string
	log       *zap.Logger
}

func NewHandlers(recipes RecipeSource, publicURL string, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{
		recipes:   recipes,
		publicURL: strings.TrimRight(publicURL, "/"),
		log:       log.With(zap.String("component", "export")),
	}
}

// RecipeLink is the address the card's QR code points at.
func (h *Handlers) RecipeLink(id string) string {
	return h.publicURL + "/recipes/" + id
}

// Card serves the caller's recipe as a PDF. ?servings=N picks the ingredient
// list; the recipe's base serving count is used when it is absent.
func (h *Handlers) Card(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	recipe, ok := h.recipes.GetRecipeByID(r.Context(), id)
	if !ok || recipe.UserID != utils.GetUserIDFromRequest(r) {
		utils.RespondWithError(w, http.StatusNotFound, "Recipe not found")
		return
	}

	servings, err := pickServing(recipe, r.URL.Query().Get("servings"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Unknown serving size")
		return
	}

	var buf bytes.Buffer
	if err := RenderCard(&buf, recipe, servings, h.RecipeLink(id)); err != nil {
		h.log.Error("failed to render recipe card", zap.String("recipeId", id), zap.Error(err))
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate PDF")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename=recipe-"+id+".pdf")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func pickServing(recipe models.RecipeWithTags, raw string) (int, error) {
	if raw == "" {
		if _, ok := recipe.Ingredients[recipe.Servings]; ok {
			return recipe.Servings, nil
		}
		if keys := recipe.Ingredients.Servings(); len(keys) == 1 {
			return keys[0], nil
		}
		return 0, ErrUnknownServing
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownServing, raw)
	}
	if _, ok := recipe.Ingredients[n]; !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownServing, n)
	}
	return n, nil
}

// RenderCard writes a one-page A4 card for recipe with the ingredient list
// for servings and a QR code encoding link.
func RenderCard(w io.Writer, recipe models.RecipeWithTags, servings int, link string) error {
	list, ok := recipe.Ingredients[servings]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownServing, servings)
	}

	qrPNG, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("encode qr code: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(recipe.Title, true)
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	// QR code top right, text column to its left
	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 160, 12, 35, 35, false, imageOpts, 0, link)

	pdf.SetFont("Helvetica", "B", 20)
	pdf.MultiCell(140, 9, tr(recipe.Title), "", "L", false)
	pdf.Ln(2)

	if recipe.Description != "" {
		pdf.SetFont("Helvetica", "I", 11)
		pdf.MultiCell(140, 6, tr(recipe.Description), "", "L", false)
		pdf.Ln(2)
	}

	pdf.SetFont("Helvetica", "", 10)
	var facts []string
	if recipe.PrepTime != "" {
		facts = append(facts, "Prep: "+recipe.PrepTime)
	}
	if recipe.CookTime != "" {
		facts = append(facts, "Cook: "+recipe.CookTime)
	}
	facts = append(facts, fmt.Sprintf("Serves: %d", servings))
	pdf.MultiCell(140, 6, tr(strings.Join(facts, "   ")), "", "L", false)

	if len(recipe.Tags) > 0 {
		names := make([]string, 0, len(recipe.Tags))
		for _, t := range recipe.Tags {
			names = append(names, t.Name)
		}
		pdf.MultiCell(140, 6, tr("Tags: "+strings.Join(names, ", ")), "", "L", false)
	}

	// keep clear of the QR code before full-width sections
	if pdf.GetY() < 52 {
		pdf.SetY(52)
	}

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 10, "Ingredients")
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 11)
	for _, ing := range list {
		line := strings.TrimSpace(ing.Amount + " " + ing.Name)
		if line == "" {
			continue
		}
		pdf.MultiCell(0, 6, tr("- "+line), "", "L", false)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 10, "Instructions")
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 11)
	n := 0
	for _, step := range recipe.Steps {
		if strings.TrimSpace(step) == "" {
			continue
		}
		n++
		pdf.MultiCell(0, 6, tr(fmt.Sprintf("%d. %s", n, step)), "", "L", false)
		pdf.Ln(1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
