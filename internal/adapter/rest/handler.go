package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/adapter/storage/s3"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/platform/logger"
)

type ListingService interface {
	Get(ctx context.Context, permalink string) (*domain.Listing, error)
	Save(ctx context.Context, l *domain.Listing) (*domain.Listing, error)
	Publish(ctx context.Context, permalink string) (*domain.Listing, error)
	Delete(ctx context.Context, permalink string) error
}

type SearchService interface {
	Search(ctx context.Context, query string) ([]*domain.Listing, error)
}

// PhotoService resolves stored photo names and issues upload slots.
type PhotoService interface {
	PublicURL(name string) (string, error)
	NewUpload(ctx context.Context, size string, now time.Time) (*s3.PhotoUpload, error)
}

type ListingHandler struct {
	listings ListingService
	search   SearchService
	photos   PhotoService
	logger   *logger.Logger
}

// NewListingHandler builds the handler. photos may be nil, in which case
// responses carry no photo URLs and uploads are unavailable.
func NewListingHandler(listings ListingService, search SearchService, photos PhotoService, log *logger.Logger) *ListingHandler {
	return &ListingHandler{listings: listings, search: search, photos: photos, logger: log}
}

// listingRequest is the writable part of a listing. Keywords are derived,
// and clients always write the current schema, so neither is accepted.
type listingRequest struct {
	Seller      string   `json:"seller"`
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	Price       int64    `json:"price"`
	PostingTime float64  `json:"posting_time"`
	Categories  []string `json:"categories"`
	Photos      []string `json:"photos"`
	Thumbnails  []string `json:"thumbnails"`
}

func (r *listingRequest) toListing(permalink string) *domain.Listing {
	return &domain.Listing{
		Permalink:   permalink,
		Seller:      r.Seller,
		Title:       r.Title,
		Body:        r.Body,
		Price:       r.Price,
		PostingTime: r.PostingTime,
		Categories:  r.Categories,
		Photos:      r.Photos,
		Thumbnails:  r.Thumbnails,
		Version:     domain.SchemaVersion,
	}
}

type listingResponse struct {
	*domain.Listing
	// Extra hides legacy stored attributes.
	Extra           map[string]interface{} `json:"extra,omitempty"`
	PrimaryCategory string                 `json:"primary_category"`
	CategoryLabel   string                 `json:"primary_category_label"`
	Published       bool                   `json:"published"`
	PostedAt        *time.Time             `json:"posted_at,omitempty"`
	PhotoURLs       []string               `json:"photo_urls,omitempty"`
	ThumbnailURLs   []string               `json:"thumbnail_urls,omitempty"`
}

func (h *ListingHandler) toListingResponse(l *domain.Listing) listingResponse {
	resp := listingResponse{Listing: l, PrimaryCategory: l.PrimaryCategory(), Published: l.IsPublished()}
	resp.CategoryLabel, _ = domain.CategoryLabel(resp.PrimaryCategory)
	if resp.Published {
		at := l.PostedAt()
		resp.PostedAt = &at
	}
	if h.photos != nil {
		resp.PhotoURLs = h.publicURLs(l.Permalink, l.Photos)
		resp.ThumbnailURLs = h.publicURLs(l.Permalink, l.Thumbnails)
	}
	return resp
}

// publicURLs resolves names in order. Names the store rejects are logged and
// left out.
func (h *ListingHandler) publicURLs(permalink string, names []string) []string {
	urls := make([]string, 0, len(names))
	for _, name := range names {
		u, err := h.photos.PublicURL(name)
		if err != nil {
			h.logger.Warn("Skipping unresolvable photo", "permalink", permalink, "photo", name, "error", err)
			continue
		}
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

type searchResponse struct {
	Query   string            `json:"query"`
	Count   int               `json:"count"`
	Results []listingResponse `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *ListingHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	listings, err := h.search.Search(r.Context(), query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := searchResponse{Query: query, Count: len(listings), Results: make([]listingResponse, 0, len(listings))}
	for _, l := range listings {
		resp.Results = append(resp.Results, h.toListingResponse(l))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *ListingHandler) HandleGetListing(w http.ResponseWriter, r *http.Request) {
	l, err := h.listings.Get(r.Context(), chi.URLParam(r, "permalink"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.toListingResponse(l))
}

func (h *ListingHandler) HandleSaveListing(w http.ResponseWriter, r *http.Request) {
	permalink := chi.URLParam(r, "permalink")
	var req listingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for SaveListing", "permalink", permalink, "error", err)
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	l, err := h.listings.Save(r.Context(), req.toListing(permalink))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.toListingResponse(l))
}

func (h *ListingHandler) HandlePublishListing(w http.ResponseWriter, r *http.Request) {
	l, err := h.listings.Publish(r.Context(), chi.URLParam(r, "permalink"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.toListingResponse(l))
}

func (h *ListingHandler) HandleDeleteListing(w http.ResponseWriter, r *http.Request) {
	if err := h.listings.Delete(r.Context(), chi.URLParam(r, "permalink")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleNewPhotoUpload issues a presigned upload slot. The size query
// parameter defaults to medium.
func (h *ListingHandler) HandleNewPhotoUpload(w http.ResponseWriter, r *http.Request) {
	if h.photos == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "photo storage is not configured"})
		return
	}
	size := r.URL.Query().Get("size")
	if size == "" {
		size = "medium"
	}
	up, err := h.photos.NewUpload(r.Context(), size, time.Now())
	if err != nil {
		if errors.Is(err, s3.ErrInvalidPhotoSize) {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, up)
}

func (h *ListingHandler) HandleCategories(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, domain.Categories)
}

func (h *ListingHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrListingNotFound):
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: domain.ErrListingNotFound.Error()})
	case errors.Is(err, domain.ErrInvalidListingData):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		h.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func (h *ListingHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}
