package wasilahsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Wasilah HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Submission represents the API submission model (partial).
type Submission struct {
	ID              string `json:"id"`
	Kind            string `json:"kind"`
	Status          string `json:"status"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	Location        string `json:"location"`
	ContactEmail    string `json:"contact_email"`
	SubmitterName   string `json:"submitter_name"`
	SubmitterEmail  string `json:"submitter_email"`
	SubmittedBy     string `json:"submitted_by"`
	SubmittedAt     string `json:"submitted_at"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
	ReviewedAt      string `json:"reviewed_at,omitempty"`
	ReviewedBy      string `json:"reviewed_by,omitempty"`
	AdminComments   string `json:"admin_comments,omitempty"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	Version         int64  `json:"version"`
}

// SubmissionDraft holds the fields accepted when creating a submission.
// Kind-specific fields are ignored for the other kind.
type SubmissionDraft struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status,omitempty"`

	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Location    string `json:"location"`

	StartDate        string   `json:"start_date,omitempty"`
	EndDate          string   `json:"end_date,omitempty"`
	Timeline         string   `json:"timeline,omitempty"`
	VolunteersNeeded *int     `json:"volunteers_needed,omitempty"`
	Requirements     []string `json:"requirements,omitempty"`
	Objectives       []string `json:"objectives,omitempty"`

	EventDate            string   `json:"event_date,omitempty"`
	EventTime            string   `json:"event_time,omitempty"`
	RegistrationDeadline string   `json:"registration_deadline,omitempty"`
	MaxAttendees         *int     `json:"max_attendees,omitempty"`
	Agenda               []string `json:"agenda,omitempty"`

	ContactEmail   string `json:"contact_email"`
	ContactPhone   string `json:"contact_phone,omitempty"`
	SubmitterName  string `json:"submitter_name"`
	SubmitterEmail string `json:"submitter_email"`
}

// Review represents a moderation decision record.
type Review struct {
	ID              string `json:"id"`
	Kind            string `json:"kind"`
	SubmissionID    string `json:"submission_id"`
	Decision        string `json:"decision"`
	Comments        string `json:"comments,omitempty"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	ReviewerID      string `json:"reviewer_id"`
	CreatedAt       string `json:"created_at"`
}

// Event represents a log entry.
type Event struct {
	ID           int64          `json:"id"`
	TS           string         `json:"ts"`
	Type         string         `json:"type"`
	Kind         string         `json:"kind,omitempty"`
	SubmissionID string         `json:"submission_id,omitempty"`
	ActorID      string         `json:"actor_id,omitempty"`
	Payload      map[string]any `json:"payload"`
}

// StatusCounts summarizes a moderation queue.
type StatusCounts struct {
	Kind   string         `json:"kind"`
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

// Identity describes the authenticated caller.
type Identity struct {
	ActorID string `json:"actor_id"`
	Admin   bool   `json:"admin"`
	Source  string `json:"source"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedSubmissions wraps list responses with cursors.
type PaginatedSubmissions struct {
	Items      []Submission `json:"items"`
	NextCursor string       `json:"next_cursor"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// ListOptions filters submission listings. Zero values are omitted.
type ListOptions struct {
	Status      string
	Category    string
	SubmittedBy string
	Limit       int
	Cursor      string
}

// CreateSubmission creates a project or event submission.
func (c *Client) CreateSubmission(ctx context.Context, kind string, draft SubmissionDraft) (Submission, error) {
	var resp Submission
	err := c.do(ctx, http.MethodPost, c.apiPath("submissions/"+url.PathEscape(kind)), draft, &resp)
	return resp, err
}

// GetSubmission fetches a submission by id.
func (c *Client) GetSubmission(ctx context.Context, kind, id string) (Submission, error) {
	var resp Submission
	endpoint := c.apiPath(fmt.Sprintf("submissions/%s/%s", url.PathEscape(kind), url.PathEscape(id)))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ListSubmissions returns a page of submissions visible to the caller.
func (c *Client) ListSubmissions(ctx context.Context, kind string, opts ListOptions) (PaginatedSubmissions, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Category != "" {
		q.Set("category", opts.Category)
	}
	if opts.SubmittedBy != "" {
		q.Set("submitted_by", opts.SubmittedBy)
	}
	if opts.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}
	if opts.Cursor != "" {
		q.Set("cursor", opts.Cursor)
	}
	endpoint := c.apiPath("submissions/" + url.PathEscape(kind))
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	var resp PaginatedSubmissions
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// UpdateSubmission applies a partial update. Only keys present in patch
// are touched; an explicit JSON null clears an optional field.
func (c *Client) UpdateSubmission(ctx context.Context, kind, id string, patch map[string]any) (Submission, error) {
	var resp Submission
	endpoint := c.apiPath(fmt.Sprintf("submissions/%s/%s", url.PathEscape(kind), url.PathEscape(id)))
	err := c.do(ctx, http.MethodPatch, endpoint, patch, &resp)
	return resp, err
}

// Submit moves a draft into the review queue.
func (c *Client) Submit(ctx context.Context, kind, id string) (Submission, error) {
	return c.UpdateSubmission(ctx, kind, id, map[string]any{"status": "pending"})
}

// Approve approves a pending submission. Requires admin credentials.
func (c *Client) Approve(ctx context.Context, kind, id, comments string) (Submission, error) {
	body := map[string]any{}
	if comments != "" {
		body["comments"] = comments
	}
	var resp Submission
	endpoint := c.apiPath(fmt.Sprintf("submissions/%s/%s/approve", url.PathEscape(kind), url.PathEscape(id)))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Reject rejects a pending submission with a reason. Requires admin
// credentials.
func (c *Client) Reject(ctx context.Context, kind, id, reason, comments string) (Submission, error) {
	body := map[string]any{"reason": reason}
	if comments != "" {
		body["comments"] = comments
	}
	var resp Submission
	endpoint := c.apiPath(fmt.Sprintf("submissions/%s/%s/reject", url.PathEscape(kind), url.PathEscape(id)))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Reviews returns the review history for a submission.
func (c *Client) Reviews(ctx context.Context, kind, id string) ([]Review, error) {
	var resp []Review
	endpoint := c.apiPath(fmt.Sprintf("submissions/%s/%s/reviews", url.PathEscape(kind), url.PathEscape(id)))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// StatusCounts returns queue counts by status. Requires admin credentials.
func (c *Client) StatusCounts(ctx context.Context, kind string) (StatusCounts, error) {
	var resp StatusCounts
	endpoint := c.apiPath(fmt.Sprintf("submissions/%s/status-counts", url.PathEscape(kind)))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Events returns recent events. Requires admin credentials.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	endpoint := c.apiPath("events")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%s", endpoint, sep, url.QueryEscape(cursor))
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Me returns the identity behind the configured credentials.
func (c *Client) Me(ctx context.Context) (Identity, error) {
	var resp Identity
	err := c.do(ctx, http.MethodGet, c.apiPath("me"), nil, &resp)
	return resp, err
}

// DevLogin exchanges an actor id for a signed token on servers with dev
// login enabled. The caller assigns the token to BearerToken.
func (c *Client) DevLogin(ctx context.Context, actorID string, admin bool) (string, error) {
	body := map[string]any{"actor_id": actorID, "admin": admin}
	var resp struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, c.apiPath("auth/dev/login"), body, &resp)
	return resp.Token, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) apiPath(p string) string {
	return "v0/" + strings.TrimLeft(p, "/")
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
