package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/teamblitzer/go-authsync"
)

// SelectProfile implements authsync.ProfileStore over the backend's REST
// data API. Requests run under the current session's token when one is
// held, so row-level policies see the signed-in user.
func (c *Client) SelectProfile(ctx context.Context, id uuid.UUID) (*authsync.Profile, error) {
	query := url.Values{}
	query.Set("id", "eq."+id.String())
	query.Set("limit", "1")

	req, err := c.newRestRequest(ctx, http.MethodGet, query, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.pgrst.object+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "profile select failed")
	}
	defer resp.Body.Close()

	// the single-object representation answers 406 when no row matches
	if resp.StatusCode == http.StatusNotAcceptable || resp.StatusCode == http.StatusNotFound {
		return nil, authsync.ErrProfileNotFound
	}
	if resp.StatusCode >= 300 {
		return nil, c.restError(resp)
	}

	var profile authsync.Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode profile row")
	}
	return &profile, nil
}

// UpsertProfile implements authsync.ProfileStore. The merge-duplicates
// resolution updates the existing row on id conflict, and the
// representation preference returns the row the database actually stored.
func (c *Client) UpsertProfile(ctx context.Context, profile *authsync.Profile) (*authsync.Profile, error) {
	query := url.Values{}
	query.Set("on_conflict", "id")

	req, err := c.newRestRequest(ctx, http.MethodPost, query, profile)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=representation")
	req.Header.Set("Accept", "application/vnd.pgrst.object+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "profile upsert failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, c.restError(resp)
	}

	var persisted authsync.Profile
	if err := json.NewDecoder(resp.Body).Decode(&persisted); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode upserted profile row")
	}
	return &persisted, nil
}

func (c *Client) newRestRequest(ctx context.Context, method string, query url.Values, payload any) (*http.Request, error) {
	path := "/rest/v1/" + url.PathEscape(c.cfg.ProfileTable)
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session != nil {
		req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AnonKey)
	}
	return req, nil
}

func (c *Client) restError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &payload)

	if payload.Code == "PGRST116" {
		return authsync.ErrProfileNotFound
	}

	msg := payload.Message
	if msg == "" {
		msg = fmt.Sprintf("data API returned status %d", resp.StatusCode)
	}

	return goerrors.New(msg, goerrors.CategoryOperation).
		WithMetadata(map[string]any{
			"status":     resp.StatusCode,
			"pgrst_code": payload.Code,
		})
}
