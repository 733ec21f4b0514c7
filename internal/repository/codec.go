package repository

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"SpinPull/internal/domain/models"
	"SpinPull/internal/domain/wheel"
)

// Values cross the store boundary as text. Everything in this file turns
// typed records into hash fields and back.

func itoa(n int) string { return strconv.Itoa(n) }

func i64(n int64) string { return strconv.FormatInt(n, 10) }

func boolText(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", models.ErrMalformedRecord, s)
	}
	return n, nil
}

func parseInt64(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", models.ErrMalformedRecord, s)
	}
	return n, nil
}

// int64Field reads an optional counter field, treating absence as zero.
func int64Field(m map[string]string, field string) (int64, error) {
	raw, ok := m[field]
	if !ok || raw == "" {
		return 0, nil
	}
	return parseInt64(raw)
}

// parseSpin decodes a history element.
func parseSpin(s string) (int, error) {
	n, err := parseInt(s)
	if err != nil {
		return 0, err
	}
	if !wheel.Valid(n) {
		return 0, fmt.Errorf("%w: spin %d out of range", models.ErrMalformedRecord, n)
	}
	return n, nil
}

// timelineMember encodes a timeline member. The sequence suffix keeps repeated
// numbers from collapsing into one sorted-set member.
func timelineMember(n int, seq int64) string { return itoa(n) + ":" + i64(seq) }

// parseTimelineMember accepts "n:seq" and bare "n".
func parseTimelineMember(member string, score float64) (models.TimelineEntry, error) {
	e := models.TimelineEntry{Timestamp: int64(score)}
	num, seq, hasSeq := strings.Cut(member, ":")
	n, err := parseSpin(num)
	if err != nil {
		return e, err
	}
	e.Number = n
	if hasSeq {
		if e.Seq, err = parseInt64(seq); err != nil {
			return e, err
		}
	}
	return e, nil
}

func encodeSession(s models.Session) map[string]string {
	return map[string]string{
		"session_id":  s.ID,
		"start_time":  i64(s.StartTime),
		"count":       i64(s.Count),
		"status":      s.Status,
		"last_update": i64(s.LastUpdate),
	}
}

func decodeSession(m map[string]string) (*models.Session, error) {
	s := &models.Session{ID: m["session_id"], Status: m["status"]}
	var err error
	if s.StartTime, err = int64Field(m, "start_time"); err != nil {
		return nil, err
	}
	if s.Count, err = int64Field(m, "count"); err != nil {
		return nil, err
	}
	if s.LastUpdate, err = int64Field(m, "last_update"); err != nil {
		return nil, err
	}
	return s, nil
}

func encodeRolling(w models.RollingWindow) map[string]string {
	return map[string]string{
		"total":       i64(w.Total),
		"red":         i64(w.Red),
		"black":       i64(w.Black),
		"green":       i64(w.Green),
		"last_update": i64(w.LastUpdate),
	}
}

func decodeRolling(w models.RollingWindow, m map[string]string) (models.RollingWindow, error) {
	fields := []struct {
		name string
		dst  *int64
	}{
		{"total", &w.Total}, {"red", &w.Red}, {"black", &w.Black}, {"green", &w.Green}, {"last_update", &w.LastUpdate},
	}
	for _, f := range fields {
		v, err := int64Field(m, f.name)
		if err != nil {
			return w, err
		}
		*f.dst = v
	}
	return w, nil
}

func encodePrediction(p *models.Prediction) (map[string]string, error) {
	groups, err := json.Marshal(p.Groups)
	if err != nil {
		return nil, err
	}
	main, err := json.Marshal(p.PredictedMain)
	if err != nil {
		return nil, err
	}
	m := map[string]string{
		"prediction_id":   p.ID,
		"created_at":      i64(p.CreatedAt),
		"last_number":     itoa(p.LastNumber),
		"groups":          string(groups),
		"predicted_main":  string(main),
		"type":            string(p.Type),
		"mode":            string(p.Mode),
		"confidence":      strconv.FormatFloat(p.Confidence, 'f', -1, 64),
		"reasoning":       p.Reasoning,
		"status":          string(p.Status),
		"zero_protection": boolText(p.ZeroProtection),
	}
	if p.ActualNumber != nil {
		m["actual_number"] = itoa(*p.ActualNumber)
		m["verified_at"] = i64(p.VerifiedAt)
	}
	return m, nil
}

func decodePrediction(m map[string]string) (*models.Prediction, error) {
	p := &models.Prediction{
		ID:             m["prediction_id"],
		Type:           models.PredictorType(m["type"]),
		Mode:           models.PredictionMode(m["mode"]),
		Reasoning:      m["reasoning"],
		Status:         models.Status(m["status"]),
		ZeroProtection: m["zero_protection"] == "1",
	}
	if p.ID == "" {
		return nil, fmt.Errorf("%w: prediction_id missing", models.ErrMalformedRecord)
	}
	var err error
	if p.CreatedAt, err = int64Field(m, "created_at"); err != nil {
		return nil, err
	}
	if p.LastNumber, err = parseInt(m["last_number"]); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(m["groups"]), &p.Groups); err != nil {
		return nil, fmt.Errorf("%w: groups: %v", models.ErrMalformedRecord, err)
	}
	if raw := m["predicted_main"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.PredictedMain); err != nil {
			return nil, fmt.Errorf("%w: predicted_main: %v", models.ErrMalformedRecord, err)
		}
	}
	if raw := m["confidence"]; raw != "" {
		if p.Confidence, err = strconv.ParseFloat(raw, 64); err != nil {
			return nil, fmt.Errorf("%w: confidence: %v", models.ErrMalformedRecord, err)
		}
	}
	if raw, ok := m["actual_number"]; ok {
		n, err := parseSpin(raw)
		if err != nil {
			return nil, err
		}
		p.ActualNumber = &n
		if p.VerifiedAt, err = int64Field(m, "verified_at"); err != nil {
			return nil, err
		}
	}
	if p.Status == "" {
		p.Status = models.StatusPending
	}
	return p, nil
}

func encodeResult(r models.VerificationResult) (map[string]string, error) {
	per, err := json.Marshal(r.PerGroup)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"prediction_id":  r.PredictionID,
		"actual_number":  itoa(r.ActualNumber),
		"is_winner":      boolText(r.OverallWinner),
		"winning_groups": itoa(r.WinningGroupCount),
		"total_groups":   itoa(r.TotalGroups),
		"per_group":      string(per),
		"timestamp":      i64(r.VerifiedAt),
		"verified":       "1",
	}, nil
}

func decodeResult(m map[string]string) (*models.VerificationResult, error) {
	r := &models.VerificationResult{
		PredictionID:  m["prediction_id"],
		OverallWinner: m["is_winner"] == "1",
	}
	var err error
	if r.ActualNumber, err = parseSpin(m["actual_number"]); err != nil {
		return nil, err
	}
	if r.WinningGroupCount, err = parseInt(m["winning_groups"]); err != nil {
		return nil, err
	}
	if r.TotalGroups, err = parseInt(m["total_groups"]); err != nil {
		return nil, err
	}
	if r.VerifiedAt, err = int64Field(m, "timestamp"); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(m["per_group"]), &r.PerGroup); err != nil {
		return nil, fmt.Errorf("%w: per_group: %v", models.ErrMalformedRecord, err)
	}
	return r, nil
}
