// Package handlers contains the HTTP handlers for the plan API
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/macrocart/v2/internal/application/planner"
	"github.com/macrocart/v2/internal/domain/contract"
	"github.com/macrocart/v2/internal/infrastructure/http/middleware"
	"github.com/macrocart/v2/internal/infrastructure/monitoring"
	"github.com/macrocart/v2/internal/ports/inbound"
	apperrors "github.com/macrocart/v2/pkg/errors"
	"github.com/macrocart/v2/pkg/logger"
)

// PlanHandlers serves the plan generation endpoints
type PlanHandlers struct {
	service  inbound.PlannerService
	validate *validator.Validate
	metrics  *monitoring.MetricsCollector
	logger   *zap.Logger
}

// NewPlanHandlers creates the plan handlers. A nil metrics collector
// disables run instrumentation.
func NewPlanHandlers(service inbound.PlannerService, metrics *monitoring.MetricsCollector, logger *zap.Logger) *PlanHandlers {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &PlanHandlers{
		service:  service,
		validate: v,
		metrics:  metrics,
		logger:   logger.Named("plan-handlers"),
	}
}

// PlanRequest is the wire form of one plan run request. The ranges mirror
// the domain profile validation so bad input is rejected at the edge.
type PlanRequest struct {
	HeightCm        float64           `json:"height_cm" validate:"required,gte=100,lte=250"`
	WeightKg        float64           `json:"weight_kg" validate:"required,gte=30,lte=300"`
	Age             int               `json:"age" validate:"required,gte=13,lte=100"`
	Sex             contract.Sex      `json:"sex" validate:"required,oneof=male female"`
	Activity        contract.Activity `json:"activity" validate:"required,oneof=sedentary light moderate active very_active"`
	Goal            contract.Goal     `json:"goal" validate:"required,oneof=cut_aggressive cut_moderate maintain bulk_lean bulk_aggressive"`
	DietaryTags     []string          `json:"dietary_tags"`
	CuisinePrompt   string            `json:"cuisine_prompt"`
	Days            int               `json:"days" validate:"required,gte=1,lte=7"`
	EatingOccasions int               `json:"eating_occasions" validate:"required,oneof=3 4 5"`
	Store           string            `json:"store" validate:"required"`
	PreferredStores []string          `json:"preferred_stores"`
}

// Command converts the request into the planner command
func (r *PlanRequest) Command() inbound.GeneratePlanCommand {
	return inbound.GeneratePlanCommand{
		HeightCm:        r.HeightCm,
		WeightKg:        r.WeightKg,
		Age:             r.Age,
		Sex:             r.Sex,
		Activity:        r.Activity,
		Goal:            r.Goal,
		DietaryTags:     r.DietaryTags,
		CuisinePrompt:   r.CuisinePrompt,
		Days:            r.Days,
		EatingOccasions: r.EatingOccasions,
		Store:           r.Store,
		PreferredStores: r.PreferredStores,
	}
}

// HandleGeneratePlan runs the full pipeline and returns the assembled
// plan, or the failure payload with the captured log stream.
func (h *PlanHandlers) HandleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	req, appErr := h.decodeRequest(r)
	if appErr != nil {
		h.writeAppError(w, r, appErr)
		return
	}

	start := time.Now()
	resp, err := h.service.GeneratePlan(r.Context(), req.Command())
	duration := time.Since(start)

	if err != nil {
		h.observeFailure(err, duration)
		failure := planner.FailurePayload(err)
		h.logger.Warn("Plan run failed",
			zap.String("error", failure.Error),
			zap.String("reason", failure.Reason),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
		)
		h.writeJSON(w, apperrors.Wrap(err, "plan generation failed").StatusCode(), failure)
		return
	}

	if h.metrics != nil {
		h.metrics.ObservePlan(resp, duration)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleStreamPlan runs the pipeline while streaming every progress entry
// as one NDJSON object per line. The final line carries the "finalData"
// tag with the success payload, or an error entry with the failure body.
func (h *PlanHandlers) HandleStreamPlan(w http.ResponseWriter, r *http.Request) {
	req, appErr := h.decodeRequest(r)
	if appErr != nil {
		h.writeAppError(w, r, appErr)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeAppError(w, r, apperrors.NewInternalError("Streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	var final *inbound.PlanResponse

	start := time.Now()
	err := h.service.StreamPlan(r.Context(), req.Command(), func(entry logger.Entry) error {
		if entry.Tag == "finalData" {
			if resp, ok := entry.Data.(*inbound.PlanResponse); ok {
				final = resp
			}
		}
		if encodeErr := enc.Encode(entry); encodeErr != nil {
			return encodeErr
		}
		flusher.Flush()
		return nil
	})
	duration := time.Since(start)

	if err != nil {
		h.observeFailure(err, duration)
		h.logger.Warn("Streamed plan run failed",
			zap.String("error", string(apperrors.GetCode(err))),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
		)
		return
	}

	if h.metrics != nil && final != nil {
		h.metrics.ObservePlan(final, duration)
	}
}

// decodeRequest parses and validates the JSON body
func (h *PlanHandlers) decodeRequest(r *http.Request) (*PlanRequest, *apperrors.AppError) {
	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, apperrors.NewBadRequestError("Invalid JSON body")
	}

	if err := h.validate.Struct(&req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, apperrors.NewInternalError("Request validation failed")
		}

		fieldErrors := make([]apperrors.ValidationError, 0, len(verrs))
		for _, fe := range verrs {
			fieldErrors = append(fieldErrors, apperrors.ValidationError{
				Field:   fe.Field(),
				Value:   fe.Value(),
				Tag:     fe.Tag(),
				Message: validationMessage(fe),
			})
		}
		return nil, apperrors.NewValidationErrors(fieldErrors)
	}

	return &req, nil
}

func (h *PlanHandlers) observeFailure(err error, duration time.Duration) {
	if h.metrics == nil {
		return
	}
	appErr := apperrors.Wrap(err, "plan generation failed")
	var entries []logger.Entry
	if logs, ok := appErr.Metadata["logs"].([]logger.Entry); ok {
		entries = logs
	}
	h.metrics.ObservePlanFailure(appErr.Code, entries, duration)
}

func (h *PlanHandlers) writeAppError(w http.ResponseWriter, r *http.Request, appErr *apperrors.AppError) {
	h.writeJSON(w, appErr.StatusCode(), apperrors.ToErrorResponse(appErr, middleware.GetRequestID(r.Context())))
}

func (h *PlanHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
