package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/grp-2-projet-elective/cesieats-back/internal/apperr"
	"github.com/grp-2-projet-elective/cesieats-back/internal/middleware"
	"github.com/grp-2-projet-elective/cesieats-back/internal/model"
	"github.com/grp-2-projet-elective/cesieats-back/internal/repository"
)

// DocumentsHandler serves the CRUD routes of one document kind (orders,
// menus, products or deliveries).
type DocumentsHandler struct {
	Repo *repository.DocumentRepo
	Kind model.Kind
	// Owner returns the user a document belongs to. Only that user may
	// update or delete it. Nil when ownership goes through a restaurant.
	Owner func(d model.Document) uint64
	// Stamp fills the caller's id into a new document.
	Stamp func(d *model.Document, userID uint64)
}

// NewDocumentsHandler wires the per-kind ownership rules: orders belong
// to their customer, deliveries to their delivery man, menus and products
// to the owners of their restaurant.
func NewDocumentsHandler(repo *repository.DocumentRepo, kind model.Kind) *DocumentsHandler {
	h := &DocumentsHandler{Repo: repo, Kind: kind}
	switch kind {
	case model.KindOrder:
		h.Owner = func(d model.Document) uint64 { return d.CustomerID }
		h.Stamp = func(d *model.Document, id uint64) { d.CustomerID = id }
	case model.KindDelivery:
		h.Owner = func(d model.Document) uint64 { return d.DeliveryManID }
		h.Stamp = func(d *model.Document, id uint64) { d.DeliveryManID = id }
	}
	return h
}

type documentInput struct {
	RestaurantID  uint64 `json:"restaurantId"`
	CustomerID    uint64 `json:"customerId"`
	DeliveryManID uint64 `json:"deliveryManId"`
	State         string `json:"state"`
}

// readDocument decodes the indexed fields and keeps the whole body as the
// document payload.
func readDocument(c echo.Context) (model.Document, error) {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return model.Document{}, apperr.BadRequest("Invalid request body")
	}
	var in documentInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return model.Document{}, apperr.BadRequest("Invalid request body")
	}
	return model.Document{
		RestaurantID:  in.RestaurantID,
		CustomerID:    in.CustomerID,
		DeliveryManID: in.DeliveryManID,
		State:         in.State,
		Body:          raw,
	}, nil
}

func (h *DocumentsHandler) List(c echo.Context) error {
	docs, err := h.Repo.List(c.Request().Context(), h.Kind)
	if err != nil {
		return repoErr(err)
	}
	return c.JSON(http.StatusOK, docs)
}

func (h *DocumentsHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.Repo.GetByID(c.Request().Context(), h.Kind, id)
	if err != nil {
		return repoErr(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *DocumentsHandler) Create(c echo.Context) error {
	d, err := readDocument(c)
	if err != nil {
		return err
	}
	d.Kind = h.Kind
	if h.Stamp != nil && !middleware.IsInternal(c) {
		cl, err := claims(c)
		if err != nil {
			return err
		}
		h.Stamp(&d, cl.ID)
	}
	created, err := h.Repo.Create(c.Request().Context(), d)
	if err != nil {
		return repoErr(err)
	}
	return c.JSON(http.StatusCreated, created)
}

// owned loads the document and checks the per-kind owner.
func (h *DocumentsHandler) owned(c echo.Context, id uint64) (model.Document, error) {
	d, err := h.Repo.GetByID(c.Request().Context(), h.Kind, id)
	if err != nil {
		return model.Document{}, repoErr(err)
	}
	if h.Owner == nil || middleware.IsInternal(c) {
		return d, nil
	}
	cl, err := claims(c)
	if err != nil {
		return model.Document{}, err
	}
	if h.Owner(d) != cl.ID {
		return model.Document{}, apperr.Forbidden("Unauthorized")
	}
	return d, nil
}

func (h *DocumentsHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	current, err := h.owned(c, id)
	if err != nil {
		return err
	}
	d, err := readDocument(c)
	if err != nil {
		return err
	}
	// the owning column cannot be reassigned through an update
	if h.Stamp != nil {
		h.Stamp(&d, h.Owner(current))
	}
	if d.RestaurantID == 0 {
		d.RestaurantID = current.RestaurantID
	}
	updated, err := h.Repo.Update(c.Request().Context(), h.Kind, id, d)
	if err != nil {
		return repoErr(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *DocumentsHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if _, err := h.owned(c, id); err != nil {
		return err
	}
	if err := h.Repo.Delete(c.Request().Context(), h.Kind, id); err != nil {
		return repoErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *DocumentsHandler) Stats(c echo.Context) error {
	n, err := h.Repo.Count(c.Request().Context(), h.Kind)
	if err != nil {
		return repoErr(err)
	}
	return c.JSON(http.StatusOK, model.Stats{Count: n})
}

// RestaurantOf resolves the restaurant of the document in the :id path
// parameter, for ownership checks on menu and product mutations.
func (h *DocumentsHandler) RestaurantOf(c echo.Context) (uint64, error) {
	id, err := parseID(c, "id")
	if err != nil {
		return 0, err
	}
	d, err := h.Repo.GetByID(c.Request().Context(), h.Kind, id)
	if err != nil {
		return 0, repoErr(err)
	}
	return d.RestaurantID, nil
}
