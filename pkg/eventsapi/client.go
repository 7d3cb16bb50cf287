package eventsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lintang-b-s/eventradar/pkg/util"
	"go.uber.org/zap"
)

const defaultTimeout = 5 * time.Second

// Client lists events from the backend API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	validate   *validator.Validate
	log        *zap.Logger
}

func NewClient(baseURL, token string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		validate: validator.New(),
		log:      log,
	}
}

// ListEvents GET {base}/events with repeated filter_expression params.
func (c *Client) ListEvents(ctx context.Context, params ListParams) (*EventList, error) {
	u, err := url.Parse(c.baseURL + "/events")
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrInternalServerError, "invalid backend url %q", c.baseURL)
	}

	q := u.Query()
	for _, f := range params.Filters {
		q.Add("filter_expression", f)
	}
	if params.Offset != nil {
		q.Set("offset", strconv.Itoa(*params.Offset))
	}
	if params.Limit != nil {
		q.Set("limit", strconv.Itoa(*params.Limit))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.log.Debug("listing events", zap.String("url", u.String()), zap.Strings("filters", params.Filters))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, util.WrapErrorf(err, util.ErrUpstream, "list events")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, util.WrapErrorf(nil, upstreamCode(resp.StatusCode), "%s", failureMessage(resp))
	}

	var list EventList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, util.WrapErrorf(err, util.ErrUpstream, "decode event list")
	}
	if err := c.validate.Struct(list); err != nil {
		return nil, util.WrapErrorf(err, util.ErrUpstream, "invalid event list")
	}
	return &list, nil
}

// failureMessage prefers detail, message, then error from a JSON error body.
func failureMessage(resp *http.Response) string {
	message := fmt.Sprintf("Request failed with status %d", resp.StatusCode)

	var body struct {
		Detail  *string `json:"detail"`
		Message *string `json:"message"`
		Error   *string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return message
	}
	for _, m := range []*string{body.Detail, body.Message, body.Error} {
		if m != nil {
			return *m
		}
	}
	return message
}

func upstreamCode(status int) error {
	switch {
	case status == http.StatusNotFound:
		return util.ErrNotFound
	case status >= 400 && status < 500:
		return util.ErrBadParamInput
	default:
		return util.ErrUpstream
	}
}
