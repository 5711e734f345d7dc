package dns01

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const cloudflareAPI = "https://api.cloudflare.com/client/v4"

// Cloudflare answers DNS-01 challenges through the Cloudflare v4 API using
// email + global API key credentials.
type Cloudflare struct {
	email   string
	apiKey  string
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

func init() {
	Default.Register("cloudflare", NewCloudflare)
}

// NewCloudflare builds a Cloudflare authenticator from credential
// attributes. Required: cloudflare_email, api_key.
func NewCloudflare(attributes map[string]string) (Authenticator, error) {
	c := &Cloudflare{
		email:   attributes["cloudflare_email"],
		apiKey:  attributes["api_key"],
		baseURL: cloudflareAPI,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     zerolog.Nop(),
	}
	if c.email == "" {
		return nil, errors.New("cloudflare_email: please provide a valid value")
	}
	if c.apiKey == "" {
		return nil, errors.New("api_key: please provide a valid value")
	}
	return c, nil
}

// WithLogger sets the logger used for API diagnostics.
func (c *Cloudflare) WithLogger(logger zerolog.Logger) *Cloudflare {
	c.log = logger
	return c
}

// APIError is a Cloudflare API level failure.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cloudflare API error %d: %s", e.Code, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Errors  []APIError      `json:"errors"`
	Result  json.RawMessage `json:"result"`
}

type dnsRecord struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl,omitempty"`
}

type zone struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Perform publishes the validation TXT record and verifies it can be read
// back through the API.
func (c *Cloudflare) Perform(ctx context.Context, domain, recordName, content string) error {
	zoneID, err := c.zoneID(ctx, domain)
	if err != nil {
		return err
	}

	// The validation content is published quoted, matching how resolvers
	// return TXT payloads.
	quoted := fmt.Sprintf("%q", content)

	record := dnsRecord{Type: "TXT", Name: recordName, Content: quoted, TTL: 3600}
	var created dnsRecord
	if err := c.do(ctx, http.MethodPost, "/zones/"+zoneID+"/dns_records", nil, record, &created); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			hint := ""
			if apiErr.Code == 1009 {
				hint = ` (does your API token have "Zone:DNS:Edit" permissions?)`
			}
			c.log.Error().Int("code", apiErr.Code).Str("record", recordName).
				Msg("cloudflare rejected TXT record creation")
			return fmt.Errorf("error communicating with the Cloudflare API: %s%s", apiErr.Message, hint)
		}
		return err
	}

	recordID, err := c.findTXTRecord(ctx, zoneID, recordName, quoted)
	if err != nil || recordID == "" {
		return errors.New("unable to find inserted TXT record via the Cloudflare API")
	}
	c.log.Debug().Str("record_id", recordID).Msg("added TXT record")
	return nil
}

// Cleanup deletes the TXT record Perform created. If multiple matching
// records exist only one is deleted, because only one was added.
func (c *Cloudflare) Cleanup(ctx context.Context, domain, recordName, content string) error {
	zoneID, err := c.zoneID(ctx, domain)
	if err != nil {
		return err
	}

	quoted := fmt.Sprintf("%q", content)
	recordID, err := c.findTXTRecord(ctx, zoneID, recordName, quoted)
	if err != nil {
		return err
	}
	if recordID == "" {
		c.log.Debug().Str("record", recordName).Msg("no TXT record to clean up")
		return nil
	}

	return c.do(ctx, http.MethodDelete, "/zones/"+zoneID+"/dns_records/"+recordID, nil, nil, nil)
}

// zoneID resolves the zone owning a domain by walking base-domain guesses
// from most to least specific.
func (c *Cloudflare) zoneID(ctx context.Context, domain string) (string, error) {
	guesses := BaseDomainGuesses(domain)
	var lastErr *APIError

	for _, guess := range guesses {
		params := url.Values{"name": {guess}, "per_page": {"1"}}

		var zones []zone
		err := c.do(ctx, http.MethodGet, "/zones", params, nil, &zones)
		if err != nil {
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				return "", err
			}

			hint := ""
			switch apiErr.Code {
			case 6003:
				hint = "did you copy your entire API token/key?"
			case 9103:
				hint = "did you enter the correct email address and Global key?"
			case 9109:
				hint = "did you enter a valid Cloudflare token?"
			}
			if hint != "" {
				return "", fmt.Errorf(
					"error determining zone id: %d %s; please confirm that you have supplied "+
						"valid Cloudflare API credentials (%s)", apiErr.Code, apiErr.Message, hint)
			}

			c.log.Debug().Int("code", apiErr.Code).Str("zone", guess).
				Msg("unrecognised cloudflare error while finding zone id, trying next guess")
			lastErr = apiErr
			continue
		}

		if len(zones) > 0 {
			return zones[0].ID, nil
		}
	}

	common := fmt.Sprintf("unable to determine zone id for %s using zone names %v", domain, guesses)
	if lastErr != nil {
		if strings.Contains(lastErr.Message, "com.cloudflare.api.account.zone.list") {
			return "", fmt.Errorf("%s; please confirm that the domain name has been entered correctly "+
				"and your Cloudflare token has access to the domain", common)
		}
		return "", fmt.Errorf("%s; the error from Cloudflare was: %d %s", common, lastErr.Code, lastErr.Message)
	}
	return "", fmt.Errorf("%s; please confirm that the domain name has been entered correctly "+
		"and is already associated with the supplied Cloudflare account", common)
}

// findTXTRecord returns the id of the matching TXT record, or "" if none.
func (c *Cloudflare) findTXTRecord(ctx context.Context, zoneID, recordName, content string) (string, error) {
	params := url.Values{
		"type":     {"TXT"},
		"name":     {recordName},
		"content":  {content},
		"per_page": {"1"},
	}

	var records []dnsRecord
	if err := c.do(ctx, http.MethodGet, "/zones/"+zoneID+"/dns_records", params, nil, &records); err != nil {
		c.log.Debug().Err(err).Msg("failed to look up TXT record id")
		return "", nil
	}
	if len(records) == 0 {
		return "", nil
	}
	return records[0].ID, nil
}

// do performs one API round trip, unwrapping the Cloudflare response
// envelope into out.
func (c *Cloudflare) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reqBody *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Auth-Email", c.email)
	req.Header.Set("X-Auth-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("cloudflare request failed: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode cloudflare response: %w", err)
	}
	if !env.Success {
		if len(env.Errors) > 0 {
			return &env.Errors[0]
		}
		return &APIError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("failed to decode cloudflare result: %w", err)
		}
	}
	return nil
}
