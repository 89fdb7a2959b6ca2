// Package fetch downloads raw source files from their providers.
//
// HMD and HFD sit behind an ASP.NET login: a session first reads the login
// page for its anti-forgery token, posts the account credentials with it,
// and then downloads a zip archive that is extracted under the download
// root. The World Bank workbook needs no login.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrLoginFailed is returned when a provider rejects the credentials.
	ErrLoginFailed = errors.New("login failed")

	// ErrNoToken is returned when the login page has no anti-forgery token.
	ErrNoToken = errors.New("anti-forgery token not found")

	// ErrEmptyDownload is returned when a provider answers with no content.
	ErrEmptyDownload = errors.New("empty download")
)

// tokenField is the hidden form field holding the anti-forgery token.
const tokenField = "__RequestVerificationToken"

// maxPageSize bounds login pages read into memory.
const maxPageSize = 1 << 20

// Provider is a data source that requires an account login.
type Provider struct {
	Name        string
	LoginURL    string
	DownloadURL string
	Dir         string // Extraction directory under the download root
}

// Direct is a file downloaded without logging in.
type Direct struct {
	Name string
	URL  string
	Path string // Destination under the download root
}

// Default providers and files, matching the layout the source descriptors expect.
var (
	HMD = Provider{
		Name:        "HMD",
		LoginURL:    "https://www.mortality.org/Account/Login",
		DownloadURL: "https://www.mortality.org/File/GetDocument/hmd.v6/zip/by_statistic/lt_female.zip",
		Dir:         "HMD",
	}
	HFD = Provider{
		Name:        "HFD",
		LoginURL:    "https://www.humanfertility.org/Account/Login",
		DownloadURL: "https://www.humanfertility.org/File/Download/Files/zip/asfr.zip",
		Dir:         "HFD",
	}
	WorldBank = Direct{
		Name: "WBLG",
		URL:  "https://ddh-openapi.worldbank.org/resources/DR0095334/download",
		Path: filepath.Join("WBLG", "WorldBank_Country_LendingGroups.xlsx"),
	}
)

// Credentials is the account shared by HMD and HFD.
type Credentials struct {
	Email    string
	Password string
}

// Client downloads into Root.
type Client struct {
	Root        string
	Credentials Credentials
	Timeout     time.Duration
	Logger      *slog.Logger
}

// NewClient creates a client. timeout bounds the wait for each response header.
func NewClient(root string, creds Credentials, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{Root: root, Credentials: creds, Timeout: timeout, Logger: logger}
}

// FetchAll downloads every provider and direct file concurrently. The first
// failure cancels the remaining downloads.
func (c *Client) FetchAll(ctx context.Context, providers []Provider, files []Direct) error {
	eg, egCtx := errgroup.WithContext(ctx)
	for _, p := range providers {
		p := p
		eg.Go(func() error {
			return c.FetchProvider(egCtx, p)
		})
	}
	for _, d := range files {
		d := d
		eg.Go(func() error {
			return c.FetchDirect(egCtx, d)
		})
	}
	return eg.Wait()
}

// FetchProvider logs in to p with a fresh cookie session, downloads its
// archive and extracts it under Root/p.Dir.
func (c *Client) FetchProvider(ctx context.Context, p Provider) error {
	logger := c.Logger.With("provider", p.Name)
	client, err := c.session()
	if err != nil {
		return err
	}

	page, err := c.get(ctx, client, p.LoginURL)
	if err != nil {
		return fmt.Errorf("%s: login page: %w", p.Name, err)
	}
	token, err := extractToken(strings.NewReader(string(page)))
	if err != nil {
		return fmt.Errorf("%s: %w", p.Name, err)
	}
	logger.Info("fetched anti-forgery token")

	form := url.Values{
		"Email":    {c.Credentials.Email},
		"Password": {c.Credentials.Password},
		tokenField: {token},
	}
	body, err := c.post(ctx, client, p.LoginURL, form)
	if err != nil {
		return fmt.Errorf("%s: login: %w", p.Name, err)
	}
	if !loggedIn(body) {
		return fmt.Errorf("%s: %w", p.Name, ErrLoginFailed)
	}
	logger.Info("logged in")

	archive, err := c.get(ctx, client, p.DownloadURL)
	if err != nil {
		return fmt.Errorf("%s: download: %w", p.Name, err)
	}
	if len(archive) == 0 {
		return fmt.Errorf("%s: %w", p.Name, ErrEmptyDownload)
	}

	dest := filepath.Join(c.Root, p.Dir)
	n, err := extractZip(archive, dest)
	if err != nil {
		return fmt.Errorf("%s: extract: %w", p.Name, err)
	}
	logger.Info("archive extracted", "dir", dest, "files", n, "bytes", len(archive))
	return nil
}

// FetchDirect downloads d to Root/d.Path.
func (c *Client) FetchDirect(ctx context.Context, d Direct) error {
	client, err := c.session()
	if err != nil {
		return err
	}
	data, err := c.get(ctx, client, d.URL)
	if err != nil {
		return fmt.Errorf("%s: download: %w", d.Name, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("%s: %w", d.Name, ErrEmptyDownload)
	}

	path := filepath.Join(c.Root, d.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%s: %w", d.Name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%s: %w", d.Name, err)
	}
	c.Logger.Info("file downloaded", "provider", d.Name, "path", path, "bytes", len(data))
	return nil
}

func (c *Client) session() (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = c.Timeout
	return &http.Client{Jar: jar, Transport: transport}, nil
}

func (c *Client) get(ctx context.Context, client *http.Client, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	return do(client, req)
}

func (c *Client) post(ctx context.Context, client *http.Client, target string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(client, req)
}

func do(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, req.URL.Redacted())
	}
	return io.ReadAll(resp.Body)
}

// loggedIn reports whether a post-login page offers a logout link.
func loggedIn(page []byte) bool {
	s := string(page)
	return strings.Contains(s, "Logout") || strings.Contains(s, "Log out")
}
