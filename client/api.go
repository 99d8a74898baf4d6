package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yeremiapane/restaurant-table-cart/models"
	"github.com/yeremiapane/restaurant-table-cart/services"
)

// ErrSessionMismatch means the session used for a write is no longer the
// current one. Re-read the state and retry.
var ErrSessionMismatch = errors.New("session mismatch")

// ApprovalError reports that a write waits on the other guests' approval.
type ApprovalError struct {
	RequestID string
	TimeLeft  int
	Pending   bool
}

func (e *ApprovalError) Error() string {
	if e.Pending {
		return fmt.Sprintf("waiting for approval (%ds left)", e.TimeLeft)
	}
	return fmt.Sprintf("approval requested (%ds left)", e.TimeLeft)
}

// TableClosedError is terminal until the guest scans the table again.
type TableClosedError struct {
	Message        string
	RestaurantName string
}

func (e *TableClosedError) Error() string { return e.Message }

// StatusError is any other non-2xx reply.
type StatusError struct {
	Code      int
	Message   string
	Retryable bool
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// State is the decoded reply of a read or a cart write.
type State struct {
	Order     *models.TableOrder  `json:"order"`
	SessionID string              `json:"sessionId"`
	Guest     *services.GuestView `json:"guest,omitempty"`
}

type SubmitRequest struct {
	RestaurantID        uint                 `json:"restaurantId"`
	Items               []services.ItemInput `json:"items"`
	CustomerToken       string               `json:"customerToken"`
	SessionID           string               `json:"sessionId"`
	CustomerFingerprint string               `json:"customerFingerprint,omitempty"`
}

// API talks to the guest endpoints of the table cart server.
type API struct {
	BaseURL string
	HTTP    *http.Client
}

func NewAPI(baseURL string, timeout time.Duration) *API {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &API{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (a *API) State(ctx context.Context, table, session, customerToken string) (*State, error) {
	q := url.Values{}
	if session != "" {
		q.Set("session", session)
	}
	if customerToken != "" {
		q.Set("customerToken", customerToken)
	}
	path := "/order-state/" + url.PathEscape(table)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var raw struct {
		State
		TableClosed    bool   `json:"tableClosed"`
		Message        string `json:"message"`
		RestaurantName string `json:"restaurantName"`
	}
	if err := a.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	if raw.TableClosed {
		return nil, &TableClosedError{Message: raw.Message, RestaurantName: raw.RestaurantName}
	}
	return &raw.State, nil
}

func (a *API) Submit(ctx context.Context, table string, req SubmitRequest) (*State, error) {
	var state State
	if err := a.do(ctx, http.MethodPost, "/order-state/"+url.PathEscape(table), req, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (a *API) RequestAccess(ctx context.Context, table, customerToken, fingerprint string) (*services.AccessStatus, error) {
	body := map[string]string{"customerToken": customerToken, "customerFingerprint": fingerprint}
	var status services.AccessStatus
	if err := a.do(ctx, http.MethodPost, "/approval/"+url.PathEscape(table), body, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (a *API) Pending(ctx context.Context, table, customerToken string) ([]services.PendingRequest, error) {
	path := "/approval/" + url.PathEscape(table) + "?customerToken=" + url.QueryEscape(customerToken)
	var reply struct {
		Requests []services.PendingRequest `json:"requests"`
	}
	if err := a.do(ctx, http.MethodGet, path, nil, &reply); err != nil {
		return nil, err
	}
	return reply.Requests, nil
}

func (a *API) Resolve(ctx context.Context, table, requestID, action, approverToken string) error {
	body := map[string]string{"requestId": requestID, "action": action, "approverToken": approverToken}
	return a.do(ctx, http.MethodPatch, "/approval/"+url.PathEscape(table), body, nil)
}

func (a *API) Place(ctx context.Context, table, session string) error {
	body := map[string]string{"sessionId": session}
	return a.do(ctx, http.MethodPost, "/place/"+url.PathEscape(table), body, nil)
}

type errorReply struct {
	Error            string `json:"error"`
	Retryable        bool   `json:"retryable"`
	SessionMismatch  bool   `json:"sessionMismatch"`
	RequiresApproval bool   `json:"requiresApproval"`
	ApprovalPending  bool   `json:"approvalPending"`
	RequestID        string `json:"requestId"`
	TimeLeft         int    `json:"timeLeft"`
	TableClosed      bool   `json:"tableClosed"`
	Message          string `json:"message"`
	RestaurantName   string `json:"restaurantName"`
}

func (a *API) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode reply: %w", err)
		}
		return nil
	}
	return decodeError(resp.StatusCode, data)
}

func decodeError(code int, data []byte) error {
	var reply errorReply
	_ = json.Unmarshal(data, &reply)

	switch {
	case reply.TableClosed:
		return &TableClosedError{Message: reply.Message, RestaurantName: reply.RestaurantName}
	case reply.RequiresApproval:
		return &ApprovalError{RequestID: reply.RequestID, TimeLeft: reply.TimeLeft, Pending: reply.ApprovalPending}
	case reply.SessionMismatch:
		return ErrSessionMismatch
	}

	msg := reply.Error
	if msg == "" {
		msg = reply.Message
	}
	if msg == "" {
		msg = http.StatusText(code)
	}
	return &StatusError{Code: code, Message: msg, Retryable: reply.Retryable || code >= 500}
}
