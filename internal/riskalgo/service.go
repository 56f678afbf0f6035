// Package riskalgo implements the demo insulin dosage provider the
// generated contracts are verified against.
//
// This is a demonstration service only. Not for medical use.
package riskalgo

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Simplified medical constants.
const (
	insulinSensitivityFactor = 50.0  // mg/dL drop per unit of insulin
	targetGlucose            = 100.0 // mg/dL
	carbRatio                = 10.0  // grams of carbs per unit of insulin

	hypoglycemiaThreshold = 70.0
)

const (
	// ServiceName is reported by the health endpoint and used as the
	// provider name in contracts.
	ServiceName = "RiskAlgoService"
	version     = "1.0.0"
)

// Service exposes the dosage endpoints.
type Service struct{}

// New creates the service.
func New() *Service { return &Service{} }

// Routes mounts the endpoints on the router.
func (s *Service) Routes(r chi.Router) {
	r.Get("/health", s.handleHealth)
	r.Post("/calculate/bolus", s.handleBolus)
	r.Post("/calculate/basal-adjustment", s.handleBasalAdjustment)
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "healthy",
		Service: ServiceName,
		Version: version,
	})
}

// BolusRequest is the dosage calculation input.
type BolusRequest struct {
	PatientID           *string  `json:"patient_id"`
	CurrentGlucoseMgDl  *float64 `json:"current_glucose_mg_dl"`
	CarbsGrams          *float64 `json:"carbs_grams"`
	InsulinOnBoardUnits *float64 `json:"insulin_on_board_units"`
}

// BolusResponse is the recommended dosage.
type BolusResponse struct {
	PatientID             string   `json:"patient_id"`
	RecommendedBolusUnits float64  `json:"recommended_bolus_units"`
	CorrectionUnits       float64  `json:"correction_units"`
	CarbCoverageUnits     float64  `json:"carb_coverage_units"`
	RiskLevel             string   `json:"risk_level"`
	Warnings              []string `json:"warnings"`
}

func (s *Service) handleBolus(w http.ResponseWriter, r *http.Request) {
	var req BolusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	// Every field is required; report the first missing one by name.
	switch {
	case req.PatientID == nil:
		writeError(w, http.StatusBadRequest, "Missing required field: patient_id")
		return
	case req.CurrentGlucoseMgDl == nil:
		writeError(w, http.StatusBadRequest, "Missing required field: current_glucose_mg_dl")
		return
	case req.CarbsGrams == nil:
		writeError(w, http.StatusBadRequest, "Missing required field: carbs_grams")
		return
	case req.InsulinOnBoardUnits == nil:
		writeError(w, http.StatusBadRequest, "Missing required field: insulin_on_board_units")
		return
	}

	glucose := *req.CurrentGlucoseMgDl

	// Correction dose brings glucose back to target.
	correction := math.Max(0, (glucose-targetGlucose)/insulinSensitivityFactor)
	carbCoverage := *req.CarbsGrams / carbRatio

	// Total bolus minus insulin already active.
	recommended := math.Max(0, round2(correction+carbCoverage-*req.InsulinOnBoardUnits))

	warnings := []string{}
	var riskLevel string
	switch {
	case recommended > 15:
		riskLevel = "high"
		warnings = append(warnings, "Unusually high dose - please verify inputs")
	case recommended > 8:
		riskLevel = "medium"
		warnings = append(warnings, "Moderate dose - monitor closely")
	default:
		riskLevel = "low"
	}

	// Never recommend insulin during hypoglycemia.
	if glucose < hypoglycemiaThreshold {
		riskLevel = "high"
		warnings = append(warnings, "Hypoglycemia detected - do not administer insulin")
		recommended = 0
	}

	writeJSON(w, http.StatusOK, BolusResponse{
		PatientID:             *req.PatientID,
		RecommendedBolusUnits: recommended,
		CorrectionUnits:       round2(correction),
		CarbCoverageUnits:     round2(carbCoverage),
		RiskLevel:             riskLevel,
		Warnings:              warnings,
	})
}

// BasalRequest is the basal adjustment input.
type BasalRequest struct {
	PatientID        *string   `json:"patient_id"`
	GlucoseReadings  []float64 `json:"glucose_readings"`
	CurrentBasalRate *float64  `json:"current_basal_rate"`
}

// BasalResponse is the adjusted basal rate.
type BasalResponse struct {
	PatientID            string  `json:"patient_id"`
	AdjustedBasalRate    float64 `json:"adjusted_basal_rate"`
	AdjustmentPercentage float64 `json:"adjustment_percentage"`
	Trend                string  `json:"trend"`
	Action               string  `json:"action"`
}

func (s *Service) handleBasalAdjustment(w http.ResponseWriter, r *http.Request) {
	var req BasalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.PatientID == nil || req.CurrentBasalRate == nil {
		writeError(w, http.StatusBadRequest, "Missing required field")
		return
	}

	// Trend analysis needs at least two readings.
	if len(req.GlucoseReadings) < 2 {
		writeError(w, http.StatusBadRequest, "Need at least 2 glucose readings")
		return
	}

	delta := req.GlucoseReadings[len(req.GlucoseReadings)-1] - req.GlucoseReadings[0]

	var trend, action string
	var adjustment float64
	switch {
	case delta > 30:
		trend, action = "rising", "increase"
		adjustment = math.Min(0.3, delta/100) // max 30% increase
	case delta < -30:
		trend, action = "falling", "decrease"
		adjustment = math.Max(-0.5, delta/100) // max 50% decrease
	default:
		trend, action = "stable", "maintain"
	}

	writeJSON(w, http.StatusOK, BasalResponse{
		PatientID:            *req.PatientID,
		AdjustedBasalRate:    round2(*req.CurrentBasalRate * (1 + adjustment)),
		AdjustmentPercentage: round1(adjustment * 100),
		Trend:                trend,
		Action:               action,
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
func round1(f float64) float64 { return math.Round(f*10) / 10 }
