// Package web crawls the landing page of a domain and collects the subdomains
// and e-mail addresses it links to.
package web

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/tldr-it-stepankutaj/reconkit/internal/event"
	"github.com/tldr-it-stepankutaj/reconkit/internal/modules"
	"github.com/tldr-it-stepankutaj/reconkit/internal/param"
	"github.com/tldr-it-stepankutaj/reconkit/internal/target"
)

const (
	Name = "http.crawl"

	DefaultUserAgent = "Mozilla/5.0 (compatible; reconkit)"

	// FieldSource records the page a target was found on.
	FieldSource = "source"

	maxBodyBytes = 1 << 20
)

type Module struct {
	timeout time.Duration
}

func New(timeout time.Duration) *Module {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Module{timeout: timeout}
}

func (*Module) Name() string            { return Name }
func (*Module) Author() string          { return "reconkit" }
func (*Module) Description() string     { return "Collect subdomains and e-mail addresses linked from a domain's web page" }
func (*Module) TargetType() target.Type { return target.Domain }

func (*Module) Args() []param.Arg {
	return []param.Arg{
		param.New("target_id", true, false, nil),
		param.New("url", false, true, nil),
		param.New("user_agent", false, true, param.Default(DefaultUserAgent)),
		param.New("insecure", false, true, param.Default("true")),
	}
}

func (m *Module) Run(ctx context.Context, _ int64, tgt target.Target, args param.Args, progress event.Emitter) ([]target.Target, error) {
	insecure, err := strconv.ParseBool(args.String("insecure"))
	if err != nil {
		return nil, modules.Failf(Name, "insecure must be a boolean, got %q", args.String("insecure"))
	}
	pageURL := args.String("url")
	if pageURL == "" {
		pageURL = tgt.Name
	}
	pageURL, err = normalizeURL(pageURL)
	if err != nil {
		return nil, modules.Failf(Name, "invalid url: %v", err)
	}

	client := m.client(insecure)
	defer client.CloseIdleConnections()

	resp, err := fetch(ctx, client, pageURL, args.String("user_agent"))
	if err != nil {
		return nil, modules.Fail(Name, err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, modules.Failf(Name, "failed to parse HTML: %v", err)
	}

	if progress != nil {
		_ = progress.Emit(event.ModuleProgress{Module: Name, Message: describe(pageURL, resp, doc)})
	}

	found, err := collect(doc, resp.Request.URL, tgt)
	if err != nil {
		return nil, modules.Fail(Name, err)
	}
	return found, nil
}

// client issues a single request per run, so connections are not kept alive.
func (m *Module) client(insecure bool) *http.Client {
	return &http.Client{
		Timeout: m.timeout,
		Transport: &http.Transport{
			TLSClientConfig:   &tls.Config{InsecureSkipVerify: insecure},
			DisableKeepAlives: true,
		},
	}
}

func fetch(ctx context.Context, client *http.Client, pageURL, userAgent string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return resp, nil
}

// collect walks every link of the page. Hosts under the target domain become
// domains and mailto links become e-mails.
func collect(doc *goquery.Document, base *url.URL, tgt target.Target) ([]target.Target, error) {
	domain := strings.ToLower(strings.TrimSuffix(tgt.Name, "."))
	source := base.String()

	hosts := make(map[string]bool)
	emails := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if rest, ok := cutPrefixFold(href, "mailto:"); ok {
			if addr := parseEmail(rest); addr != "" {
				emails[addr] = true
			}
			return
		}
		u, err := base.Parse(href)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		host := strings.ToLower(u.Hostname())
		if host != domain && strings.HasSuffix(host, "."+domain) {
			hosts[host] = true
		}
	})

	out := make([]target.Target, 0, len(hosts)+len(emails))
	add := func(typ target.Type, names map[string]bool) error {
		sorted := make([]string, 0, len(names))
		for n := range names {
			sorted = append(sorted, n)
		}
		sort.Strings(sorted)
		for _, n := range sorted {
			fields := map[string]string{
				target.FieldName: n,
				target.FieldType: typ.String(),
				FieldSource:      source,
			}
			if tgt.ID != 0 {
				fields[target.FieldParent] = strconv.FormatInt(tgt.ID, 10)
			}
			t, err := target.FromFields(fields)
			if err != nil {
				return err
			}
			out = append(out, t)
		}
		return nil
	}
	if err := add(target.Domain, hosts); err != nil {
		return nil, err
	}
	if err := add(target.Email, emails); err != nil {
		return nil, err
	}
	return out, nil
}

// parseEmail strips the query part of a mailto link and lowercases the address.
func parseEmail(raw string) string {
	raw, _, _ = strings.Cut(raw, "?")
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(addr.Address)
}

func describe(pageURL string, resp *http.Response, doc *goquery.Document) string {
	parts := []string{fmt.Sprintf("%s: HTTP %d", pageURL, resp.StatusCode)}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		parts = append(parts, fmt.Sprintf("title %q", title))
	}
	for _, h := range []string{"Server", "X-Powered-By"} {
		if v := resp.Header.Get(h); v != "" {
			parts = append(parts, h+": "+v)
		}
	}
	return strings.Join(parts, ", ")
}

func normalizeURL(raw string) (string, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("%q has no host", raw)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}
