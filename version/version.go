// Package version reports how the binary was built.
// Values are injected with -ldflags, for example:
//
//	go build -ldflags "-X github.com/lgc202/apikit/version.gitVersion=v0.3.0 -X github.com/lgc202/apikit/version.gitCommit=$(git rev-parse HEAD)"
package version

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/gosuri/uitable"
)

var (
	// gitVersion is a semantic version, vMAJOR.MINOR.PATCH[-PRERELEASE][+BUILD].
	gitVersion = "v0.0.0-dev"
	// gitCommit is the output of git rev-parse HEAD.
	gitCommit = ""
	// gitTreeState is "clean" or "dirty".
	gitTreeState = ""
	// buildDate is ISO8601, the output of date -u +'%Y-%m-%dT%H:%M:%SZ'.
	buildDate = "1970-01-01T00:00:00Z"
)

type Info struct {
	GitVersion   string `json:"gitVersion"`
	GitCommit    string `json:"gitCommit,omitempty"`
	GitTreeState string `json:"gitTreeState,omitempty"`
	BuildDate    string `json:"buildDate"`
	GoVersion    string `json:"goVersion"`
	Platform     string `json:"platform"`
}

// String returns the version, suffixed with -dirty for a dirty tree.
func (info Info) String() string {
	if info.GitTreeState == "dirty" {
		return info.GitVersion + "-dirty"
	}
	return info.GitVersion
}

// UserAgent formats a User-Agent product token such as "apictl/v0.3.0 (linux/amd64)".
func (info Info) UserAgent(product string) string {
	return fmt.Sprintf("%s/%s (%s)", product, info.String(), info.Platform)
}

func (info Info) JSON(indent bool) (string, error) {
	var (
		b   []byte
		err error
	)
	if indent {
		b, err = json.MarshalIndent(info, "", "  ")
	} else {
		b, err = json.Marshal(info)
	}
	if err != nil {
		return "", fmt.Errorf("marshal version info: %w", err)
	}
	return string(b), nil
}

// Text renders a right-aligned two-column table. Empty optional fields are omitted.
func (info Info) Text() string {
	table := uitable.New()
	table.RightAlign(0)
	table.MaxColWidth = 80
	table.Separator = " "
	table.AddRow("gitVersion:", info.GitVersion)
	if info.GitCommit != "" {
		table.AddRow("gitCommit:", info.GitCommit)
	}
	if info.GitTreeState != "" {
		table.AddRow("gitTreeState:", info.GitTreeState)
	}
	table.AddRow("buildDate:", info.BuildDate)
	table.AddRow("goVersion:", info.GoVersion)
	table.AddRow("platform:", info.Platform)
	return table.String()
}

func Get() Info {
	return Info{
		GitVersion:   gitVersion,
		GitCommit:    gitCommit,
		GitTreeState: gitTreeState,
		BuildDate:    buildDate,
		GoVersion:    runtime.Version(),
		Platform:     runtime.GOOS + "/" + runtime.GOARCH,
	}
}
