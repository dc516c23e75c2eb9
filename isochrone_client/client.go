package isochrone_client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
)

const (
	MIN_CONTOUR_MINUTES = 1
	MAX_CONTOUR_MINUTES = 60
)

// Client talks to a Mapbox compatible isochrone API.
type Client struct {
	logger     *logrus.Logger
	apiUrl     string
	profile    string
	httpClient *http.Client
}

func (cli *Client) Profile() string {
	return cli.profile
}

func (cli *Client) isochroneUrl(accessToken string, origin orb.Point, minutes int) string {
	coords := strconv.FormatFloat(origin.Lon(), 'f', 6, 64) + "," + strconv.FormatFloat(origin.Lat(), 'f', 6, 64)

	v := url.Values{
		"contours_minutes": {strconv.Itoa(minutes)},
		"polygons":         {"true"},
		"access_token":     {accessToken},
	}

	return cli.apiUrl + "/isochrone/v1/" + cli.profile + "/" + coords + "?" + v.Encode()
}

// GetIsochrone requests the area reachable from 'origin' within 'minutes'.
func (cli *Client) GetIsochrone(ctx context.Context, accessToken string, origin orb.Point, minutes int) (*geojson.FeatureCollection, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("%w: no access token given", ErrUnauthorized)
	}
	if minutes < MIN_CONTOUR_MINUTES || minutes > MAX_CONTOUR_MINUTES {
		return nil, fmt.Errorf("duration %d minutes is not within %d-%d", minutes, MIN_CONTOUR_MINUTES, MAX_CONTOUR_MINUTES)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cli.isochroneUrl(accessToken, origin, minutes), nil)
	if err != nil {
		return nil, fmt.Errorf("error forming http request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := cli.httpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			// url.Error includes the full url, which includes the token.
			err = urlErr.Err
		}
		return nil, fmt.Errorf("error doing http request: %w", err)
	}

	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, matchResponseError(resp.StatusCode, respBytes)
	}

	fc, err := geojson.UnmarshalFeatureCollection(respBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	cli.logger.Debugf("isochrone_client: %d feature(s) for %0.5f,%0.5f", len(fc.Features), origin.Lat(), origin.Lon())

	return fc, nil
}

func NewClient(logger *logrus.Logger, config Config) (*Client, error) {
	if logger == nil {
		return nil, errors.New("No logger given")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		logger:  logger,
		apiUrl:  strings.TrimRight(config.Url, "/"),
		profile: config.Profile,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}
