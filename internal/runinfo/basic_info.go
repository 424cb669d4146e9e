// Package runinfo records which CI job produced a judge run.
package runinfo

import (
	"os"
	"regexp"
	"strings"
)

var pullRefPattern = regexp.MustCompile(`^refs/pull/([0-9]+)/`)

// BasicInfo is attached to run summaries so a judged submission can be traced
// back to the pipeline that submitted it.
type BasicInfo struct {
	CI          bool   `json:"ci,omitempty"`
	Provider    string `json:"provider,omitempty"`
	Repository  string `json:"repository,omitempty"`
	Branch      string `json:"branch,omitempty"`
	Commit      string `json:"commit,omitempty"`
	Job         string `json:"job,omitempty"`
	RunID       string `json:"run_id,omitempty"`
	PullRequest string `json:"pull_request,omitempty"`
	Actor       string `json:"actor,omitempty"`
	BuildURL    string `json:"build_url,omitempty"`
}

// provider maps one CI system's environment onto BasicInfo fields.
type provider struct {
	name   string
	marker string
	fields map[*string][]string
}

func providers(info *BasicInfo) []provider {
	return []provider{
		{
			name:   "github_actions",
			marker: "GITHUB_ACTIONS",
			fields: map[*string][]string{
				&info.Repository: {"GITHUB_REPOSITORY"},
				&info.Branch:     {"GITHUB_HEAD_REF", "GITHUB_REF_NAME"},
				&info.Commit:     {"GITHUB_SHA"},
				&info.Job:        {"GITHUB_JOB"},
				&info.RunID:      {"GITHUB_RUN_ID"},
				&info.Actor:      {"GITHUB_ACTOR"},
			},
		},
		{
			name:   "gitlab_ci",
			marker: "GITLAB_CI",
			fields: map[*string][]string{
				&info.Repository:  {"CI_PROJECT_PATH"},
				&info.Branch:      {"CI_COMMIT_REF_NAME"},
				&info.Commit:      {"CI_COMMIT_SHA"},
				&info.Job:         {"CI_JOB_NAME"},
				&info.RunID:       {"CI_PIPELINE_ID"},
				&info.PullRequest: {"CI_MERGE_REQUEST_IID"},
				&info.Actor:       {"GITLAB_USER_LOGIN"},
				&info.BuildURL:    {"CI_JOB_URL"},
			},
		},
		{
			name:   "buildkite",
			marker: "BUILDKITE",
			fields: map[*string][]string{
				&info.Repository:  {"BUILDKITE_REPO"},
				&info.Branch:      {"BUILDKITE_BRANCH"},
				&info.Commit:      {"BUILDKITE_COMMIT"},
				&info.Job:         {"BUILDKITE_LABEL"},
				&info.RunID:       {"BUILDKITE_BUILD_ID"},
				&info.PullRequest: {"BUILDKITE_PULL_REQUEST"},
				&info.BuildURL:    {"BUILDKITE_BUILD_URL"},
			},
		},
	}
}

// overrides win over anything a provider reports.
var overrides = []struct {
	key string
	get func(*BasicInfo) *string
}{
	{"SQLJUDGE_CI_PROVIDER", func(b *BasicInfo) *string { return &b.Provider }},
	{"SQLJUDGE_CI_REPOSITORY", func(b *BasicInfo) *string { return &b.Repository }},
	{"SQLJUDGE_CI_BRANCH", func(b *BasicInfo) *string { return &b.Branch }},
	{"SQLJUDGE_CI_COMMIT", func(b *BasicInfo) *string { return &b.Commit }},
	{"SQLJUDGE_CI_JOB", func(b *BasicInfo) *string { return &b.Job }},
	{"SQLJUDGE_CI_RUN_ID", func(b *BasicInfo) *string { return &b.RunID }},
	{"SQLJUDGE_CI_PULL_REQUEST", func(b *BasicInfo) *string { return &b.PullRequest }},
	{"SQLJUDGE_CI_ACTOR", func(b *BasicInfo) *string { return &b.Actor }},
	{"SQLJUDGE_CI_BUILD_URL", func(b *BasicInfo) *string { return &b.BuildURL }},
}

// FromEnv builds run metadata from the environment. It returns nil outside CI
// when no SQLJUDGE_CI_* variable is set. SQLJUDGE_CI=false forces CI off.
func FromEnv() *BasicInfo {
	info := &BasicInfo{}
	for _, p := range providers(info) {
		if !isTruthy(env(p.marker)) {
			continue
		}
		info.CI = true
		info.Provider = p.name
		for dst, keys := range p.fields {
			*dst = envFirst(keys...)
		}
		break
	}
	if info.Provider == "github_actions" {
		info.PullRequest = pullRequestFromRef(env("GITHUB_REF"))
		if info.Repository != "" && info.RunID != "" {
			server := strings.TrimRight(envFirst("GITHUB_SERVER_URL"), "/")
			if server == "" {
				server = "https://github.com"
			}
			info.BuildURL = server + "/" + info.Repository + "/actions/runs/" + info.RunID
		}
	}
	if isTruthy(env("CI")) {
		info.CI = true
	}

	explicit := false
	for _, o := range overrides {
		if v := env(o.key); v != "" {
			*o.get(info) = v
			explicit = true
		}
	}
	if explicit {
		info.CI = true
	}
	if v := env("SQLJUDGE_CI"); v != "" {
		info.CI = isTruthy(v)
	}

	info.Provider = strings.ToLower(info.Provider)
	info.Branch = strings.TrimPrefix(strings.TrimPrefix(info.Branch, "refs/heads/"), "origin/")
	if info.CI && info.Provider == "" {
		info.Provider = "generic"
	}
	if *info == (BasicInfo{}) {
		return nil
	}
	return info
}

func pullRequestFromRef(ref string) string {
	if m := pullRefPattern.FindStringSubmatch(ref); len(m) > 1 {
		return m[1]
	}
	return ""
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envFirst(keys ...string) string {
	for _, key := range keys {
		if v := env(key); v != "" {
			return v
		}
	}
	return ""
}

func isTruthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
