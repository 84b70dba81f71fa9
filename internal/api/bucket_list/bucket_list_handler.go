package bucketList

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-trip-planner-ai/internal/api"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/api/auth"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	GetSummaryHandler(w http.ResponseWriter, r *http.Request)
	GetHierarchyHandler(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	logger *slog.Logger
	repo   Repository
}

func NewHandler(repo Repository, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{logger: logger, repo: repo}
}

// GetSummaryHandler godoc
// @Summary      Bucket list summary
// @Description  Countries holding at least one wishlist item, with item counts
// @Tags         bucket-list
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} types.BucketCountrySummary
// @Failure      401 {object} map[string]interface{}
// @Router       /bucket-list/summary [get]
func (h *HandlerImpl) GetSummaryHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("BucketListHandler").Start(r.Context(), "GetSummary")
	defer span.End()
	l := h.logger.With(slog.String("handler", "GetSummaryHandler"))

	userID, ok := auth.GetUserIDFromContext(ctx)
	if !ok || userID == "" {
		span.SetStatus(codes.Error, "Unauthorized - User ID missing")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	span.SetAttributes(attribute.String("user.id", userID))

	summary, err := h.repo.GetCountriesSummary(ctx, userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to fetch bucket list summary", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Summary failed")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to fetch bucket list summary")
		return
	}
	if summary == nil {
		summary = []types.BucketCountrySummary{}
	}

	span.SetStatus(codes.Ok, "Summary returned")
	api.WriteJSONResponse(w, r, http.StatusOK, summary)
}

// GetHierarchyHandler godoc
// @Summary      Bucket list hierarchy
// @Tags         bucket-list
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} types.BucketCountryNode
// @Router       /bucket-list/hierarchy [get]
func (h *HandlerImpl) GetHierarchyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("BucketListHandler").Start(r.Context(), "GetHierarchy")
	defer span.End()

	userID, ok := auth.GetUserIDFromContext(ctx)
	if !ok || userID == "" {
		span.SetStatus(codes.Error, "Unauthorized - User ID missing")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	hierarchy, err := h.repo.GetHierarchy(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to fetch bucket list hierarchy", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Hierarchy failed")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to fetch bucket list")
		return
	}
	if hierarchy == nil {
		hierarchy = []types.BucketCountryNode{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, hierarchy)
}
