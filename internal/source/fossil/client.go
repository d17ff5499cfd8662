package fossil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nhle/fossilsync/internal/source"
)

// UserAgent identifies this adapter to the Fossil server.
const UserAgent = "fossilsync-pull"

// Client is a thin HTTP client for a Fossil repository's web UI.
// It keeps the login session in a cookie jar. There is no retry: a
// failed request is returned to the caller as is.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient uses hc for all requests. Its cookie jar is replaced by
// the session's own jar.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		clone := *hc
		clone.Jar = c.httpClient.Jar
		c.httpClient = &clone
	}
}

// NewClient creates a new Fossil HTTP client with an empty session. The
// baseURL is the repository root (e.g., https://fossil.example.org/repo/);
// a trailing slash is added when missing.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	c := &Client{
		baseURL: NormalizeBaseURL(baseURL),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NormalizeBaseURL returns u with exactly one trailing slash.
func NormalizeBaseURL(u string) string {
	return strings.TrimRight(u, "/") + "/"
}

// BaseURL returns the repository root, always ending with a slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ReportURL returns the tab-separated report URL for reportID.
func (c *Client) ReportURL(reportID string) string {
	return fmt.Sprintf(
		"%srptview?rn=%s&tablist=1", c.baseURL, url.QueryEscape(reportID),
	)
}

// Login submits the login form. returnTo is the page Fossil redirects to
// after a successful login. A login that ends on the login page again was
// rejected and yields a *source.AuthError.
func (c *Client) Login(
	ctx context.Context,
	username string,
	password string,
	returnTo string,
) error {
	form := url.Values{
		"u": {username},
		"p": {password},
		"g": {returnTo},
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"login",
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused for the report.
	_, _ = io.Copy(io.Discard, resp.Body)

	if err := checkStatus(resp); err != nil {
		return err
	}

	if isLoginPage(resp) {
		return &source.AuthError{
			ServiceType: source.ServiceTypeFossil,
			Message: fmt.Sprintf(
				"login rejected for user %q at %s", username, c.baseURL,
			),
		}
	}

	return nil
}

// FetchReport downloads report reportID and parses it into tickets.
func (c *Client) FetchReport(ctx context.Context, reportID string) ([]Ticket, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.ReportURL(reportID), nil,
	)
	if err != nil {
		return nil, fmt.Errorf("creating report request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading report %s: %w", reportID, err)
	}

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	// Fossil answers an unauthorized report view with its login page.
	if isLoginPage(resp) {
		return nil, &source.AuthError{
			ServiceType: source.ServiceTypeFossil,
			Message: fmt.Sprintf(
				"report %s at %s requires a login", reportID, c.baseURL,
			),
		}
	}

	if !utf8.Valid(body) {
		return nil, fmt.Errorf("decoding report %s: body is not valid UTF-8", reportID)
	}

	tickets, err := ParseReport(string(body), c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", reportID, err)
	}
	return tickets, nil
}

// do sends req with the adapter's User-Agent.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf(
			"executing request %s %s: %w", req.Method, req.URL.Path, err,
		)
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &source.AuthError{
			ServiceType: source.ServiceTypeFossil,
			Message: fmt.Sprintf(
				"%s %s returned %d", resp.Request.Method, resp.Request.URL, resp.StatusCode,
			),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf(
			"unexpected status %d on %s %s",
			resp.StatusCode, resp.Request.Method, resp.Request.URL.Path,
		)
	}
	return nil
}

// isLoginPage reports whether the final request of resp (after
// redirects) was for the login page.
func isLoginPage(resp *http.Response) bool {
	return resp.Request != nil && strings.HasSuffix(resp.Request.URL.Path, "/login")
}
