// Package client talks to the design service on behalf of the editor.
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

	"tshirt-studio/codec"
	"tshirt-studio/core"

	"github.com/sirupsen/logrus"
)

const designsPath = "/api/v2/designs/"

type Client struct {
	BaseURL string
	// Token is sent as a bearer token when set.
	Token string
	HTTP  *http.Client
	Log   logrus.FieldLogger
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Log:     logrus.StandardLogger(),
	}
}

type saveRequest struct {
	Name           string              `json:"name"`
	CanvasDocument core.CanvasDocument `json:"canvasDocument"`
}

type saveResponse struct {
	DesignID  string    `json:"designId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type loadResponse struct {
	DesignID       string            `json:"designId"`
	Name           string            `json:"name"`
	GarmentColor   core.GarmentColor `json:"garmentColor"`
	CanvasDocument json.RawMessage   `json:"canvasDocument"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// LoadDesign fetches a design. It returns nil, nil when the design was
// never saved. When the stored canvas document is invalid it returns the
// design with an empty document together with a *core.DocumentError.
func (c *Client) LoadDesign(ctx context.Context, designID string) (*core.Design, error) {
	resp, err := c.do(ctx, http.MethodGet, designID, nil)
	if err != nil {
		return nil, &core.PersistenceError{Op: "load", DesignID: designID, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		c.logger().WithField("design_id", designID).Info("Design not saved yet")
		return nil, nil
	default:
		return nil, &core.PersistenceError{Op: "load", DesignID: designID, Err: statusError(resp)}
	}

	var body loadResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &core.PersistenceError{Op: "load", DesignID: designID, Err: fmt.Errorf("decode response: %w", err)}
	}
	d := &core.Design{
		DesignID:     body.DesignID,
		Name:         body.Name,
		GarmentColor: body.GarmentColor,
		CreatedAt:    body.CreatedAt,
		UpdatedAt:    body.UpdatedAt,
	}
	doc, err := codec.Unmarshal(body.CanvasDocument)
	if err != nil {
		c.logger().WithError(err).WithField("design_id", designID).Warn("Stored canvas document is invalid")
		d.CanvasDocument = core.CanvasDocument{Objects: []core.DrawableObject{}}
		return d, err
	}
	d.CanvasDocument = doc
	return d, nil
}

// PersistDesign saves doc under designID and returns the server's update
// time.
func (c *Client) PersistDesign(ctx context.Context, designID string, doc core.CanvasDocument, name string) (time.Time, error) {
	if doc.Objects == nil {
		doc.Objects = []core.DrawableObject{}
	}
	body, err := json.Marshal(saveRequest{Name: name, CanvasDocument: doc})
	if err != nil {
		return time.Time{}, &core.PersistenceError{Op: "save", DesignID: designID, Err: err}
	}

	resp, err := c.do(ctx, http.MethodPut, designID, body)
	if err != nil {
		return time.Time{}, &core.PersistenceError{Op: "save", DesignID: designID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return time.Time{}, &core.PersistenceError{Op: "save", DesignID: designID, Err: statusError(resp)}
	}

	var out saveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return time.Time{}, &core.PersistenceError{Op: "save", DesignID: designID, Err: fmt.Errorf("decode response: %w", err)}
	}
	c.logger().WithFields(logrus.Fields{"design_id": designID, "status": resp.StatusCode}).Debug("Design persisted")
	return out.UpdatedAt, nil
}

func (c *Client) do(ctx context.Context, method, designID string, body []byte) (*http.Response, error) {
	if designID == "" {
		return nil, errors.New("design id is required")
	}
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+designsPath+url.PathEscape(designID), r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	return client.Do(req)
}

func (c *Client) logger() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}

func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("server responded %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}
