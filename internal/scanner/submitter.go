package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Kind classifies what the operator is shown.
type Kind string

const (
	KindSuccess         Kind = "success"
	KindAlreadyRecorded Kind = "already_recorded"
	KindRejected        Kind = "rejected"
	KindError           Kind = "error"
)

// Outcome is the displayable result of one scan.
type Outcome struct {
	Kind      Kind
	Message   string
	PesertaID string
}

// Submitter forwards a participant id to the check-in engine.
type Submitter interface {
	Submit(ctx context.Context, pesertaID string) (Outcome, error)
}

// HTTPSubmitter posts scans to the attendance endpoint. Failures are not retried.
type HTTPSubmitter struct {
	BaseURL   string
	BusID     string
	Direction string
	HTTP      *http.Client
}

// NewHTTPSubmitter creates a submitter for one bus and direction.
func NewHTTPSubmitter(baseURL, busID, direction string) *HTTPSubmitter {
	return &HTTPSubmitter{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		BusID:     busID,
		Direction: direction,
		HTTP:      &http.Client{Timeout: 10 * time.Second},
	}
}

type attendanceRequest struct {
	PesertaID string `json:"pesertaId"`
	Type      string `json:"type"`
	BusID     string `json:"busId"`
}

type attendanceResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	Error           string `json:"error"`
	AlreadyRecorded bool   `json:"alreadyRecorded"`
}

// Submit returns a rejection for structured failures and an error for
// transport failures or responses without the expected envelope.
func (s *HTTPSubmitter) Submit(ctx context.Context, pesertaID string) (Outcome, error) {
	body, _ := json.Marshal(attendanceRequest{PesertaID: pesertaID, Type: s.Direction, BusID: s.BusID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/api/attendance/update", bytes.NewReader(body))
	if err != nil {
		return Outcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("attendance request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var out attendanceResponse
	if err := json.Unmarshal(raw, &out); err != nil || (out.Message == "" && out.Error == "") {
		return Outcome{}, fmt.Errorf("attendance request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	msg := out.Message
	if msg == "" {
		msg = out.Error
	}

	switch {
	case resp.StatusCode >= 500:
		return Outcome{}, fmt.Errorf("attendance request failed (%d): %s", resp.StatusCode, msg)
	case out.Success && out.AlreadyRecorded:
		return Outcome{Kind: KindAlreadyRecorded, Message: msg, PesertaID: pesertaID}, nil
	case out.Success:
		return Outcome{Kind: KindSuccess, Message: msg, PesertaID: pesertaID}, nil
	}
	return Outcome{Kind: KindRejected, Message: msg, PesertaID: pesertaID}, nil
}
