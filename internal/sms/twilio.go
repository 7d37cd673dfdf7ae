package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const defaultTwilioBaseURL = "https://api.twilio.com"

// Client calls the Twilio Messages REST API.
type Client struct {
	AccountSID string
	AuthToken  string
	HTTP       *http.Client

	MessagingServiceSID string
	FromNumber          string
	BaseURL             string
}

type SendRequest struct {
	To   string
	Body string
}

type SendResponse struct {
	Sid       string `json:"sid"`
	Status    string `json:"status"`
	ErrorCode *int   `json:"error_code"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
}

// APIError is a non-2xx answer from Twilio.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("twilio: %s (code %d, http %d)", e.Message, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("twilio: %s (http %d)", e.Message, e.StatusCode)
}

// SendSMS posts one message. It returns the HTTP status alongside the response.
func (c *Client) SendSMS(ctx context.Context, req SendRequest) (SendResponse, int, error) {
	if c.AccountSID == "" || c.AuthToken == "" {
		return SendResponse{}, 0, errors.New("twilio: credentials not configured")
	}
	form := url.Values{}
	form.Set("To", req.To)
	form.Set("Body", req.Body)
	if c.MessagingServiceSID != "" {
		form.Set("MessagingServiceSid", c.MessagingServiceSID)
	} else {
		form.Set("From", c.FromNumber)
	}

	baseURL := strings.TrimRight(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultTwilioBaseURL
	}
	endpoint := baseURL + "/2010-04-01/Accounts/" + url.PathEscape(c.AccountSID) + "/Messages.json"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return SendResponse{}, 0, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(c.AccountSID, c.AuthToken)

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(httpReq)
	if err != nil {
		return SendResponse{}, 0, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var out SendResponse
	_ = json.Unmarshal(b, &out)

	// Twilio returns 201 for created; treat 2xx as success
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := out.Message
		if msg == "" {
			msg = "send failed"
		}
		return out, resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Code: out.Code, Message: msg}
	}
	return out, resp.StatusCode, nil
}
