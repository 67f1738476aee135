package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/go-github/v74/github"
	"github.com/google/go-querystring/query"
	"github.com/m-mizutani/cistat/pkg/domain"
	"github.com/m-mizutani/cistat/pkg/domain/interfaces"
	"github.com/m-mizutani/cistat/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
)

const workflowsPerPage = 100

var validate = validator.New(validator.WithRequiredStructEnabled())

type GitHubService struct {
	client   *github.Client
	maxPages int
}

type GitHubOption func(*GitHubService) error

// WithAPIURL points the client to another API root, such as a GitHub
// Enterprise server or a test server.
func WithAPIURL(apiURL string) GitHubOption {
	return func(s *GitHubService) error {
		if apiURL == "" {
			return nil
		}
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		u, err := url.Parse(apiURL)
		if err != nil {
			return domain.ErrConfiguration.Wrap(goerr.Wrap(err, "invalid API URL", goerr.V("url", apiURL)))
		}
		s.client.BaseURL = u
		return nil
	}
}

func WithMaxPages(n int) GitHubOption {
	return func(s *GitHubService) error {
		if n > 0 {
			s.maxPages = n
		}
		return nil
	}
}

func NewGitHubService(httpClient *http.Client, opts ...GitHubOption) (interfaces.GitHubService, error) {
	s := &GitHubService{
		client:   github.NewClient(httpClient),
		maxPages: model.DefaultMaxPages,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *GitHubService) ListWorkflows(ctx context.Context, repo model.Repository) ([]*model.Workflow, error) {
	opts := &github.ListOptions{PerPage: workflowsPerPage}

	var workflows []*model.Workflow
	for range s.maxPages {
		resp, err := s.listWorkflowsPage(ctx, repo, opts, &workflows)
		if err != nil {
			return nil, err
		}
		if resp.NextPage == 0 {
			return workflows, nil
		}
		opts.Page = resp.NextPage
	}

	return nil, malformed(s.workflowsURL(repo), "workflow listing exceeds the page limit")
}

func (s *GitHubService) listWorkflowsPage(ctx context.Context, repo model.Repository, opts *github.ListOptions, dst *[]*model.Workflow) (*github.Response, error) {
	wfs, resp, err := s.client.Actions.ListWorkflows(ctx, repo.Owner, repo.Name, opts)
	if err != nil {
		return nil, convertAPIError(err, resp, s.workflowsURL(repo))
	}
	reqURL := responseURL(resp, s.workflowsURL(repo))
	if wfs == nil || wfs.Workflows == nil {
		return nil, malformed(reqURL, "missing workflows array")
	}

	for _, wf := range wfs.Workflows {
		workflow := &model.Workflow{
			ID:       wf.GetID(),
			Name:     wf.GetName(),
			Path:     wf.GetPath(),
			State:    wf.GetState(),
			HTMLURL:  wf.GetHTMLURL(),
			Category: model.Categorize(wf.GetName()),
		}
		if err := validate.Struct(workflow); err != nil {
			return nil, malformed(reqURL, "invalid workflow entry: "+err.Error())
		}
		*dst = append(*dst, workflow)
	}
	return resp, nil
}

func (s *GitHubService) ListRuns(ctx context.Context, repo model.Repository, workflowID int64, perPage int) ([]*model.Run, error) {
	opts := &github.ListWorkflowRunsOptions{
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	fallbackURL := s.workflowsURL(repo) + "/" + strconv.FormatInt(workflowID, 10) + "/runs"
	result, resp, err := s.client.Actions.ListWorkflowRunsByID(ctx, repo.Owner, repo.Name, workflowID, opts)
	if err != nil {
		return nil, convertAPIError(err, resp, fallbackURL)
	}
	reqURL := responseURL(resp, fallbackURL)
	if result == nil || result.WorkflowRuns == nil {
		return nil, malformed(reqURL, "missing workflow_runs array")
	}

	runs := make([]*model.Run, 0, len(result.WorkflowRuns))
	for _, r := range result.WorkflowRuns {
		run := &model.Run{
			ID:         r.GetID(),
			RunNumber:  r.GetRunNumber(),
			CreatedAt:  r.GetCreatedAt().Time,
			Status:     model.RunStatus(r.GetStatus()),
			Conclusion: model.Conclusion(r.GetConclusion()),
			JobsURL:    r.GetJobsURL(),
			HTMLURL:    r.GetHTMLURL(),
		}
		if err := validate.Struct(run); err != nil {
			return nil, malformed(reqURL, "invalid run entry: "+err.Error())
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// ListJobsPage fetches one page of the jobs of a run. jobsURL is the absolute
// jobs_url reported on the run.
func (s *GitHubService) ListJobsPage(ctx context.Context, jobsURL string, page, perPage int) (*model.JobPage, error) {
	u, err := url.Parse(jobsURL)
	if err != nil {
		return nil, malformed(jobsURL, "invalid jobs_url")
	}
	params, err := query.Values(&github.ListWorkflowJobsOptions{
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode job list options")
	}
	q := u.Query()
	for k, v := range params {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	pageURL := u.String()

	req, err := s.client.NewRequest(http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, domain.ErrAPIRequest.Wrap(err)
	}

	var jobs github.Jobs
	resp, err := s.client.Do(ctx, req, &jobs)
	if err != nil {
		return nil, convertAPIError(err, resp, pageURL)
	}
	if jobs.TotalCount == nil {
		return nil, malformed(pageURL, "missing total_count")
	}
	if jobs.Jobs == nil && jobs.GetTotalCount() > 0 {
		return nil, malformed(pageURL, "missing jobs array")
	}

	result := &model.JobPage{
		TotalCount: jobs.GetTotalCount(),
		Jobs:       make([]*model.Job, 0, len(jobs.Jobs)),
	}
	for _, j := range jobs.Jobs {
		job := &model.Job{
			Name:       j.GetName(),
			RunID:      j.GetRunID(),
			HTMLURL:    j.GetHTMLURL(),
			Conclusion: model.Conclusion(j.GetConclusion()),
			Status:     j.GetStatus(),
		}
		if err := validate.Struct(job); err != nil {
			return nil, malformed(pageURL, "invalid job entry: "+err.Error())
		}
		result.Jobs = append(result.Jobs, job)
	}
	return result, nil
}

func (s *GitHubService) workflowsURL(repo model.Repository) string {
	return s.client.BaseURL.String() + "repos/" + repo.FullName() + "/actions/workflows"
}

func malformed(u, reason string) error {
	return domain.ErrMalformedResponse.Wrap(&domain.MalformedResponseError{URL: u, Reason: reason})
}

func responseURL(resp *github.Response, fallback string) string {
	if resp != nil && resp.Response != nil && resp.Request != nil {
		return resp.Request.URL.String()
	}
	return fallback
}

func newHTTPError(resp *http.Response, fallbackURL string) domain.HTTPError {
	he := domain.HTTPError{URL: fallbackURL}
	if resp == nil {
		return he
	}
	he.Status = resp.StatusCode
	he.StatusText = strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if he.StatusText == "" {
		he.StatusText = http.StatusText(resp.StatusCode)
	}
	if resp.Request != nil {
		he.URL = resp.Request.URL.String()
	}
	return he
}

// convertAPIError maps go-github failures onto the domain error taxonomy.
func convertAPIError(err error, resp *github.Response, fallbackURL string) error {
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return domain.ErrAPIRequest.Wrap(&domain.RateLimitError{
			HTTPError: newHTTPError(rle.Response, fallbackURL),
			ResetAt:   rle.Rate.Reset.Time,
		})
	}

	var arle *github.AbuseRateLimitError
	if errors.As(err, &arle) {
		return domain.ErrAPIRequest.Wrap(&domain.RateLimitError{
			HTTPError: newHTTPError(arle.Response, fallbackURL),
		})
	}

	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		he := newHTTPError(er.Response, fallbackURL)
		if he.Status == http.StatusForbidden {
			return domain.ErrAPIRequest.Wrap(&domain.RateLimitError{HTTPError: he})
		}
		return domain.ErrAPIRequest.Wrap(&he)
	}

	var synErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &synErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return malformed(responseURL(resp, fallbackURL), err.Error())
	}

	return domain.ErrAPIRequest.Wrap(err, goerr.V("url", fallbackURL))
}
