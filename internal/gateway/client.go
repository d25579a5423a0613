package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"

	"github.com/surveysync/agent/internal/models"
	"github.com/surveysync/agent/internal/observability"
)

// ErrUnauthorized is returned when the remote rejects our credential.
// The sync cycle aborts on it; re-authentication is handled outside the
// engine via the OnUnauthorized callback.
var ErrUnauthorized = errors.New("gateway: credential rejected")

// APIError is a non-2xx response from the remote backend
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway: remote returned %d: %s", e.StatusCode, e.Body)
}

// Gateway is the contract the sync orchestrator uploads through. Create
// calls return the server-assigned id; update calls address records by
// that id.
type Gateway interface {
	CreateSurvey(ctx context.Context, survey *models.Survey) (string, error)
	UpdateSurvey(ctx context.Context, serverID string, survey *models.Survey) error
	CreateInspection(ctx context.Context, surveyServerID string, insp *models.AssetInspection) (string, error)
	UpdateInspection(ctx context.Context, serverID string, insp *models.AssetInspection) error
	UploadPhoto(ctx context.Context, inspectionServerID, surveyServerID string, photo *models.Photo) (string, error)
	Ping(ctx context.Context) error
}

// Client talks to the remote survey backend over HTTP with bearer auth
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     oauth2.TokenSource

	// OnUnauthorized fires once per 401 so the auth collaborator can
	// invalidate the stored credential
	OnUnauthorized func()
}

// NewClient creates a gateway client. token is the bearer credential
// issued by the auth collaborator.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
	}
}

// NewClientWithTokenSource creates a gateway client over a refreshable
// credential source
func NewClientWithTokenSource(baseURL string, tokens oauth2.TokenSource) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
	}
}

type serverIDResponse struct {
	ID string `json:"id"`
}

type surveyPayload struct {
	ClientID   string    `json:"client_id"`
	SiteID     string    `json:"site_id"`
	Trade      string    `json:"trade"`
	Status     string    `json:"status"`
	SurveyorID string    `json:"surveyor_id"`
	GPS        []float64 `json:"gps,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type inspectionPayload struct {
	ClientID         string    `json:"client_id"`
	SurveyID         string    `json:"survey_id"`
	AssetID          string    `json:"asset_id"`
	ConditionRating  int       `json:"condition_rating"`
	OverallCondition string    `json:"overall_condition"`
	Quantity         float64   `json:"quantity"`
	Remarks          string    `json:"remarks"`
	GPS              []float64 `json:"gps,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func surveyBody(survey *models.Survey, siteID string) surveyPayload {
	p := surveyPayload{
		ClientID:   survey.ID,
		SiteID:     siteID,
		Trade:      survey.Trade,
		Status:     survey.Status,
		SurveyorID: survey.SurveyorID,
		CreatedAt:  survey.CreatedAt,
	}
	if survey.GPS != nil {
		p.GPS = []float64{survey.GPS.Lon(), survey.GPS.Lat()}
	}
	return p
}

func inspectionBody(insp *models.AssetInspection, surveyID string) inspectionPayload {
	p := inspectionPayload{
		ClientID:         insp.ID,
		SurveyID:         surveyID,
		AssetID:          insp.AssetID,
		ConditionRating:  insp.ConditionRating,
		OverallCondition: insp.OverallCondition,
		Quantity:         insp.Quantity,
		Remarks:          insp.Remarks,
		CreatedAt:        insp.CreatedAt,
	}
	if insp.GPS != nil {
		p.GPS = []float64{insp.GPS.Lon(), insp.GPS.Lat()}
	}
	return p
}

// CreateSurvey registers a survey remotely and returns its server id
func (c *Client) CreateSurvey(ctx context.Context, survey *models.Survey) (string, error) {
	var resp serverIDResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/surveys", surveyBody(survey, survey.SiteID), &resp)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// UpdateSurvey pushes edited fields for an already-created survey
func (c *Client) UpdateSurvey(ctx context.Context, serverID string, survey *models.Survey) error {
	return c.doJSON(ctx, http.MethodPut, "/api/surveys/"+serverID, surveyBody(survey, survey.SiteID), nil)
}

// CreateInspection registers an inspection under its survey's server id
func (c *Client) CreateInspection(ctx context.Context, surveyServerID string, insp *models.AssetInspection) (string, error) {
	var resp serverIDResponse
	path := "/api/surveys/" + surveyServerID + "/inspections"
	err := c.doJSON(ctx, http.MethodPost, path, inspectionBody(insp, surveyServerID), &resp)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// UpdateInspection pushes edited fields for an already-created inspection
func (c *Client) UpdateInspection(ctx context.Context, serverID string, insp *models.AssetInspection) error {
	return c.doJSON(ctx, http.MethodPut, "/api/inspections/"+serverID, inspectionBody(insp, serverID), nil)
}

// UploadPhoto streams the photo file to the remote as a multipart form
// and returns its server id
func (c *Client) UploadPhoto(ctx context.Context, inspectionServerID, surveyServerID string, photo *models.Photo) (string, error) {
	file, err := os.Open(photo.FilePath)
	if err != nil {
		return "", fmt.Errorf("open photo file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fields := map[string]string{
		"client_id":     photo.ID,
		"inspection_id": inspectionServerID,
		"survey_id":     surveyServerID,
		"caption":       photo.Caption,
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return "", err
		}
	}

	part, err := writer.CreateFormFile("file", filepath.Base(photo.FilePath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("read photo file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/photos", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp serverIDResponse
	if err := c.send(req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Ping checks remote reachability. Used as the connectivity probe, so it
// must be cheap on the server side.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return err
	}
	return c.send(req, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out interface{}) error {
	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("resolve credential: %w", err)
	}
	token.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		observability.Warnf("Remote rejected credential (status=%d)", resp.StatusCode)
		if c.OnUnauthorized != nil {
			c.OnUnauthorized()
		}
		return ErrUnauthorized
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
