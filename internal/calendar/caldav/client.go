package caldav

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a thin CalDAV client speaking basic-auth PROPFIND/REPORT
// against Google's and Apple's endpoints. Passwords are expected to be
// app-scoped, not the account password.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// NewClient creates a CalDAV client for the given server root.
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   password,
		httpClient: &http.Client{},
	}
}

// CalendarRef is one calendar collection discovered under the principal.
type CalendarRef struct {
	Path string
	Name string
}

// FindCalendars walks the discovery chain: current-user-principal, then
// the principal's calendar-home-set, then every calendar collection under
// it.
func (c *Client) FindCalendars(ctx context.Context) ([]CalendarRef, error) {
	principal, err := c.currentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving principal: %w", err)
	}

	home, err := c.calendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("resolving calendar home: %w", err)
	}

	ms, err := c.propfind(ctx, home, "1", `<?xml version="1.0" encoding="utf-8" ?>
<d:propfind xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:prop>
    <d:displayname/>
    <d:resourcetype/>
  </d:prop>
</d:propfind>`)
	if err != nil {
		return nil, fmt.Errorf("listing calendars: %w", err)
	}

	var calendars []CalendarRef
	for _, resp := range ms.Responses {
		prop, ok := resp.okProp()
		if !ok || prop.ResourceType.Calendar == nil {
			continue
		}
		name := prop.DisplayName
		if name == "" {
			name = "Calendar"
		}
		calendars = append(calendars, CalendarRef{Path: resp.Href, Name: name})
	}
	return calendars, nil
}

// QueryEvents issues a time-range calendar-query REPORT against one
// calendar, asking the server to expand recurring events, and returns the
// raw calendar-data payloads.
func (c *Client) QueryEvents(
	ctx context.Context,
	calendarPath string,
	start, end time.Time,
) ([]string, error) {
	const timeRangeLayout = "20060102T150405Z"
	body := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8" ?>
<c:calendar-query xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:prop>
    <d:getetag/>
    <c:calendar-data>
      <c:expand start="%[1]s" end="%[2]s"/>
    </c:calendar-data>
  </d:prop>
  <c:filter>
    <c:comp-filter name="VCALENDAR">
      <c:comp-filter name="VEVENT">
        <c:time-range start="%[1]s" end="%[2]s"/>
      </c:comp-filter>
    </c:comp-filter>
  </c:filter>
</c:calendar-query>`,
		start.UTC().Format(timeRangeLayout), end.UTC().Format(timeRangeLayout))

	ms, err := c.request(ctx, "REPORT", calendarPath, "1", body)
	if err != nil {
		return nil, err
	}

	var payloads []string
	for _, resp := range ms.Responses {
		prop, ok := resp.okProp()
		if !ok {
			continue
		}
		if data := strings.TrimSpace(prop.CalendarData); data != "" {
			payloads = append(payloads, data)
		}
	}
	return payloads, nil
}

func (c *Client) currentUserPrincipal(ctx context.Context) (string, error) {
	ms, err := c.propfind(ctx, "/", "0", `<?xml version="1.0" encoding="utf-8" ?>
<d:propfind xmlns:d="DAV:">
  <d:prop>
    <d:current-user-principal/>
  </d:prop>
</d:propfind>`)
	if err != nil {
		return "", err
	}

	for _, resp := range ms.Responses {
		if prop, ok := resp.okProp(); ok && prop.CurrentUserPrincipal.Href != "" {
			return prop.CurrentUserPrincipal.Href, nil
		}
	}
	return "", fmt.Errorf("server returned no current-user-principal")
}

func (c *Client) calendarHomeSet(ctx context.Context, principal string) (string, error) {
	ms, err := c.propfind(ctx, principal, "0", `<?xml version="1.0" encoding="utf-8" ?>
<d:propfind xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:prop>
    <c:calendar-home-set/>
  </d:prop>
</d:propfind>`)
	if err != nil {
		return "", err
	}

	for _, resp := range ms.Responses {
		if prop, ok := resp.okProp(); ok && prop.CalendarHomeSet.Href != "" {
			return prop.CalendarHomeSet.Href, nil
		}
	}
	return "", fmt.Errorf("principal %s has no calendar-home-set", principal)
}

func (c *Client) propfind(ctx context.Context, path, depth, body string) (*multistatus, error) {
	return c.request(ctx, "PROPFIND", path, depth, body)
}

// request performs one authenticated DAV request and decodes the 207
// multistatus response body.
func (c *Client) request(
	ctx context.Context,
	method, path, depth, body string,
) (*multistatus, error) {
	req, err := http.NewRequestWithContext(
		ctx, method, c.resolve(path), strings.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")
	req.Header.Set("Depth", depth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf(
			"authentication failed (401): check the app-scoped password for %s", c.username)
	}
	if resp.StatusCode != http.StatusMultiStatus && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d on %s %s", resp.StatusCode, method, path)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var ms multistatus
	if err := xml.Unmarshal(data, &ms); err != nil {
		return nil, fmt.Errorf("parsing multistatus response: %w", err)
	}
	return &ms, nil
}

// resolve joins a DAV href (absolute URL or server-relative path) with the
// client's server root.
func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + path
	}
	return base.Scheme + "://" + base.Host + path
}

// multistatus mirrors the subset of RFC 4918/4791 XML this client reads.
type multistatus struct {
	XMLName   xml.Name      `xml:"multistatus"`
	Responses []davResponse `xml:"response"`
}

type davResponse struct {
	Href      string     `xml:"href"`
	Propstats []propstat `xml:"propstat"`
}

// okProp returns the prop block of the 200-status propstat, if any.
func (r davResponse) okProp() (prop, bool) {
	for _, ps := range r.Propstats {
		if strings.Contains(ps.Status, "200") {
			return ps.Prop, true
		}
	}
	return prop{}, false
}

type propstat struct {
	Status string `xml:"status"`
	Prop   prop   `xml:"prop"`
}

type prop struct {
	DisplayName          string       `xml:"displayname"`
	ResourceType         resourcetype `xml:"resourcetype"`
	CalendarData         string       `xml:"calendar-data"`
	CurrentUserPrincipal nestedHref   `xml:"current-user-principal"`
	CalendarHomeSet      nestedHref   `xml:"calendar-home-set"`
}

type resourcetype struct {
	Calendar *struct{} `xml:"calendar"`
}

type nestedHref struct {
	Href string `xml:"href"`
}
