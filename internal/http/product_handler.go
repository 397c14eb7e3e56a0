package http

import (
	"context"
	"net/http"
	"time"

	"github.com/jinto-ag/emart/internal/domain"
	"github.com/rs/zerolog"
)

type ProductLister interface {
	ListProducts(ctx context.Context) ([]*domain.Product, error)
}

type ProductHandler struct {
	products ProductLister
	timeout  time.Duration
	log      zerolog.Logger
}

func NewProductHandler(products ProductLister, timeout time.Duration, log zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		products: products,
		timeout:  timeout,
		log:      log,
	}
}

type ProductResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	ImageURL    string `json:"image_url"`
}

type ProductsResponse struct {
	Products []ProductResponse `json:"products"`
}

// GET /api/v1/products
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.products.ListProducts(ctx)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	products := make([]ProductResponse, len(res))
	for i, p := range res {
		products[i] = ProductResponse{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price.StringFixed(2),
			ImageURL:    p.ImageURL,
		}
	}

	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products})
}
