// Package linkedin finds employees of a company through search engine results that
// point at public LinkedIn profiles.
package linkedin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/tldr-it-stepankutaj/reconkit/internal/event"
	"github.com/tldr-it-stepankutaj/reconkit/internal/modules"
	"github.com/tldr-it-stepankutaj/reconkit/internal/param"
	"github.com/tldr-it-stepankutaj/reconkit/internal/target"
)

const (
	Name = "linkedin.search"

	DefaultBaseURL   = "https://www.google.com/search"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/61.0.3163.100 Safari/537.36"

	resultSelector = ".g h3"
	titleSeparator = " - "
	maxBodyBytes   = 4 << 20
)

// Options configures outbound requests. Zero values fall back to defaults.
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Search implements modules.Module.
type Search struct {
	opts Options
}

func New(opts Options) *Search {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Search{opts: opts}
}

func (*Search) Name() string   { return Name }
func (*Search) Author() string { return "Tristan Granier" }
func (*Search) Description() string {
	return "Search employees of the selected enterprise with LinkedIn"
}

func (*Search) Args() []param.Arg {
	return []param.Arg{
		param.New("target_id", true, false, nil),
		param.New("target", false, false, nil),
		param.New("limit", false, true, param.Default("10")),
	}
}

func (*Search) TargetType() target.Type { return target.Company }

// Run queries the search engine once and maps every result heading to a person.
// Any failure aborts the whole run; no partial result is returned.
func (s *Search) Run(ctx context.Context, _ int64, tgt target.Target, args param.Args, progress event.Emitter) ([]target.Target, error) {
	limit := args.String("limit")
	if n, err := strconv.Atoi(limit); err != nil || n <= 0 {
		return nil, modules.Failf(Name, "limit must be a positive integer, got %q", limit)
	}

	body, err := s.fetch(ctx, s.searchURL(limit, tgt.Name))
	if err != nil {
		return nil, modules.Fail(Name, err)
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, modules.Failf(Name, "failed to parse HTML: %v", err)
	}
	people, err := parseResults(goquery.NewDocumentFromNode(doc), tgt)
	if err != nil {
		return nil, modules.Fail(Name, err)
	}

	if progress != nil {
		_ = progress.Emit(event.ModuleProgress{Module: Name, Message: fmt.Sprintf("%d profiles matched for %s", len(people), tgt.Name)})
	}
	return people, nil
}

func (s *Search) searchURL(limit, company string) string {
	return s.opts.BaseURL + "?num=" + limit + "&start=0&hl=en&q=site:linkedin.com/in+" + url.QueryEscape(company)
}

func (s *Search) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	client := &http.Client{Timeout: s.opts.Timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// parseResults turns "<full name> - <job title> - LinkedIn" headings into persons.
func parseResults(doc *goquery.Document, company target.Target) ([]target.Target, error) {
	people := make([]target.Target, 0)
	var failure error
	doc.Find(resultSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.ReplaceAll(sel.Text(), company.Name, "")
		parts := strings.Split(text, titleSeparator)
		if len(parts) < 2 {
			failure = fmt.Errorf("unexpected result heading %q", strings.TrimSpace(sel.Text()))
			return false
		}

		fullName := strings.TrimSpace(parts[0])
		// First and second words only: "John Paul Smith" is John / Paul.
		var first, last string
		if names := strings.Split(fullName, " "); len(names) > 1 {
			first, last = names[0], names[1]
		}

		fields := map[string]string{
			target.FieldName:       fullName,
			target.FieldFirstName:  first,
			target.FieldLastName:   last,
			target.FieldType:       target.Person.String(),
			target.FieldJobTitle:   strings.TrimSpace(parts[1]),
			target.FieldEnterprise: company.Name,
		}
		if company.ID != 0 {
			fields[target.FieldParent] = strconv.FormatInt(company.ID, 10)
		}
		p, err := target.FromFields(fields)
		if err != nil {
			failure = err
			return false
		}
		people = append(people, p)
		return true
	})
	if failure != nil {
		return nil, failure
	}
	return people, nil
}
