package research

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/quillworks/scout/internal/bundle"
)

// Dispatcher fans a research query out across a bundle's domains, one
// goroutine per domain, and folds the results back into shared state behind
// a join barrier. Workers never touch shared state; each returns a private
// outcome and the dispatcher applies them in domain declaration order, so a
// run with deterministic collaborators produces a deterministic fact set.
type Dispatcher struct {
	searcher Searcher
	fetcher  Fetcher
	oracle   Oracle
	merger   *Merger

	urlsPerQuery     int
	resultsPerSearch int
	domainTimeout    time.Duration

	logger *log.Logger
}

func newDispatcher(searcher Searcher, fetcher Fetcher, oracle Oracle, merger *Merger, urlsPerQuery, resultsPerSearch int, domainTimeout time.Duration, logger *log.Logger) *Dispatcher {
	if urlsPerQuery <= 0 {
		urlsPerQuery = 2
	}
	if resultsPerSearch <= 0 {
		resultsPerSearch = 6
	}
	if domainTimeout <= 0 {
		domainTimeout = 90 * time.Second
	}
	return &Dispatcher{
		searcher:         searcher,
		fetcher:          fetcher,
		oracle:           oracle,
		merger:           merger,
		urlsPerQuery:     urlsPerQuery,
		resultsPerSearch: resultsPerSearch,
		domainTimeout:    domainTimeout,
		logger:           logger,
	}
}

// domainOutcome is a worker's private result, merged only after the join.
type domainOutcome struct {
	query DomainQuery
	urls  []string
	delta []FactRecord
	gaps  []string
}

// Dispatch runs one research batch. Failed domains degrade to recorded gaps;
// only the case where every domain fails surfaces as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, st *State, b bundle.Bundle, query string) error {
	domains := b.Domains()
	if len(domains) == 0 {
		// Single implicit domain for narrow research types.
		domains = []bundle.Domain{{Label: "general", Hint: ""}}
	}

	// Snapshot exclusions before the fan-out so every worker sees the same
	// view regardless of scheduling. Sorted, so identical state yields the
	// same search query string on replay.
	excluded := make([]string, 0, len(st.UsedHosts))
	for h := range st.UsedHosts {
		excluded = append(excluded, h)
	}
	sort.Strings(excluded)

	outcomes := make([]domainOutcome, len(domains))
	var wg sync.WaitGroup
	for i, dom := range domains {
		wg.Add(1)
		go func(i int, dom bundle.Domain) {
			defer wg.Done()
			outcomes[i] = d.runDomain(ctx, st.Subject, b, dom, query, excluded)
		}(i, dom)
	}
	wg.Wait()

	failed := 0
	var failedDomains []string
	for _, out := range outcomes {
		st.Domains[out.query.Domain] = DomainResult{
			Query: out.query,
			URLs:  out.urls,
		}
		for _, g := range out.gaps {
			st.addGap(g)
		}
		if out.query.Status == DomainSucceeded {
			added := d.merger.Apply(st, out.delta)
			res := st.Domains[out.query.Domain]
			res.FactsAdded = added
			st.Domains[out.query.Domain] = res
			for _, u := range out.urls {
				if h := hostOf(u); h != "" {
					st.UsedHosts[h] = struct{}{}
				}
			}
		} else {
			failed++
			failedDomains = append(failedDomains, out.query.Domain)
		}
	}

	if failed == len(outcomes) {
		return DispatcherAllFailedError{Domains: failedDomains}
	}
	return nil
}

func (d *Dispatcher) runDomain(ctx context.Context, subject string, b bundle.Bundle, dom bundle.Domain, query string, excluded []string) domainOutcome {
	dctx, cancel := context.WithTimeout(ctx, d.domainTimeout)
	defer cancel()

	out := domainOutcome{
		query: DomainQuery{
			Domain: dom.Label,
			Query:  domainQuery(query, dom),
			Status: DomainRunning,
		},
	}

	results, err := d.searcher.Search(dctx, out.query.Query, d.resultsPerSearch, excluded)
	if err != nil {
		return out.fail(dctx, "search", err)
	}
	if len(results) == 0 {
		out.query.Status = DomainFailed
		out.query.Error = "no search results"
		out.gaps = append(out.gaps, fmt.Sprintf("domain %s: no search results for %q", dom.Label, out.query.Query))
		return out
	}

	urls, err := d.oracle.SelectURLs(dctx, out.query.Query, results, d.urlsPerQuery)
	if err != nil {
		return out.fail(dctx, "url selection", err)
	}

	fetched := 0
	for _, u := range urls {
		page, err := d.fetcher.Fetch(dctx, u)
		if err != nil {
			out.gaps = append(out.gaps, fmt.Sprintf("domain %s: fetch %s: %v", dom.Label, u, err))
			continue
		}
		fetched++
		out.urls = append(out.urls, u)
		delta, gaps := d.merger.BuildDelta(dctx, subject, b.Categories(), page)
		out.delta = append(out.delta, delta...)
		out.gaps = append(out.gaps, gaps...)
	}
	if fetched == 0 {
		out.query.Status = DomainFailed
		out.query.Error = "all fetches failed"
		return out
	}

	out.query.Status = DomainSucceeded
	return out
}

func (out domainOutcome) fail(ctx context.Context, op string, err error) domainOutcome {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		out.query.Status = DomainTimedOut
		err = CollaboratorTimeoutError{Op: op, Err: err}
	} else {
		out.query.Status = DomainFailed
		err = CollaboratorError{Op: op, Err: err}
	}
	out.query.Error = err.Error()
	out.gaps = append(out.gaps, fmt.Sprintf("domain %s: %v", out.query.Domain, err))
	return out
}

func domainQuery(query string, dom bundle.Domain) string {
	if dom.Hint == "" {
		return query
	}
	return strings.TrimSpace(query + " " + dom.Hint)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
