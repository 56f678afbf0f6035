package riskalgo

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	New().Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	health := decode[healthResponse](t, resp)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, ServiceName, health.Service)
}

func TestBolusCalculation(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/calculate/bolus", map[string]any{
		"patient_id":             "patient-123",
		"current_glucose_mg_dl":  180,
		"carbs_grams":            45,
		"insulin_on_board_units": 0.5,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[BolusResponse](t, resp)
	// correction (180-100)/50 = 1.6, carbs 45/10 = 4.5, minus 0.5 on board.
	assert.Equal(t, 1.6, body.CorrectionUnits)
	assert.Equal(t, 4.5, body.CarbCoverageUnits)
	assert.Equal(t, 5.6, body.RecommendedBolusUnits)
	assert.Equal(t, "low", body.RiskLevel)
	assert.Equal(t, "patient-123", body.PatientID)
}

func TestBolusRiskLevels(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name     string
		carbs    float64
		glucose  float64
		want     string
		warnings int
	}{
		{"low dose", 30, 120, "low", 0},
		{"medium dose", 90, 150, "medium", 1},
		{"high dose", 160, 200, "high", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/calculate/bolus", map[string]any{
				"patient_id":             "p",
				"current_glucose_mg_dl":  tt.glucose,
				"carbs_grams":            tt.carbs,
				"insulin_on_board_units": 0,
			})
			require.Equal(t, http.StatusOK, resp.StatusCode)

			body := decode[BolusResponse](t, resp)
			assert.Equal(t, tt.want, body.RiskLevel)
			assert.Len(t, body.Warnings, tt.warnings)
		})
	}
}

func TestBolusHypoglycemiaForcesZeroDose(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/calculate/bolus", map[string]any{
		"patient_id":             "p",
		"current_glucose_mg_dl":  55,
		"carbs_grams":            60,
		"insulin_on_board_units": 0,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[BolusResponse](t, resp)
	assert.Equal(t, 0.0, body.RecommendedBolusUnits)
	assert.Equal(t, "high", body.RiskLevel)
	require.NotEmpty(t, body.Warnings)
	assert.Contains(t, body.Warnings[len(body.Warnings)-1], "Hypoglycemia detected")
}

func TestBolusMissingFields(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
		want string
	}{
		{
			"missing patient_id",
			map[string]any{"current_glucose_mg_dl": 120, "carbs_grams": 30, "insulin_on_board_units": 0},
			"patient_id",
		},
		{
			"missing glucose",
			map[string]any{"patient_id": "p", "carbs_grams": 30, "insulin_on_board_units": 0},
			"current_glucose_mg_dl",
		},
		{
			"missing carbs",
			map[string]any{"patient_id": "p", "current_glucose_mg_dl": 120, "insulin_on_board_units": 0},
			"carbs_grams",
		},
		{
			"missing insulin on board",
			map[string]any{"patient_id": "p", "current_glucose_mg_dl": 120, "carbs_grams": 30},
			"insulin_on_board_units",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/calculate/bolus", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			errBody := decode[errorResponse](t, resp)
			assert.Contains(t, errBody.Error, tt.want)
		})
	}
}

func TestBolusInvalidJSON(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/calculate/bolus", "application/json", bytes.NewReader([]byte("{broken")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBasalAdjustmentTrends(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name     string
		readings []float64
		trend    string
		action   string
	}{
		{"rising", []float64{140, 155, 178}, "rising", "increase"},
		{"falling", []float64{180, 160, 140}, "falling", "decrease"},
		{"stable", []float64{120, 118, 125}, "stable", "maintain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/calculate/basal-adjustment", map[string]any{
				"patient_id":         "p",
				"glucose_readings":   tt.readings,
				"current_basal_rate": 1.2,
			})
			require.Equal(t, http.StatusOK, resp.StatusCode)

			body := decode[BasalResponse](t, resp)
			assert.Equal(t, tt.trend, body.Trend)
			assert.Equal(t, tt.action, body.Action)
		})
	}
}

func TestBasalAdjustmentStableKeepsRate(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/calculate/basal-adjustment", map[string]any{
		"patient_id":         "p",
		"glucose_readings":   []float64{120, 118, 125},
		"current_basal_rate": 1.2,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[BasalResponse](t, resp)
	assert.Equal(t, 1.2, body.AdjustedBasalRate)
	assert.Equal(t, 0.0, body.AdjustmentPercentage)
}

func TestBasalAdjustmentCapsIncrease(t *testing.T) {
	srv := newTestServer(t)

	// A 90 mg/dL rise would be 90% uncapped; the increase caps at 30%.
	resp := postJSON(t, srv.URL+"/calculate/basal-adjustment", map[string]any{
		"patient_id":         "p",
		"glucose_readings":   []float64{100, 190},
		"current_basal_rate": 1.0,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[BasalResponse](t, resp)
	assert.Equal(t, 1.3, body.AdjustedBasalRate)
	assert.Equal(t, 30.0, body.AdjustmentPercentage)
}

func TestBasalAdjustmentNeedsTwoReadings(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/calculate/basal-adjustment", map[string]any{
		"patient_id":         "p",
		"glucose_readings":   []float64{120},
		"current_basal_rate": 1.2,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	errBody := decode[errorResponse](t, resp)
	assert.Equal(t, "Need at least 2 glucose readings", errBody.Error)
}
