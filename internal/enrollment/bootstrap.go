package enrollment

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"text/template"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/common"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
)

const (
	windowsTemplate = `$url="{{.DownloadURL}}"; $output="sandcat.exe"; Invoke-WebRequest -Uri $url -OutFile $output; .\sandcat.exe -server {{.ServerURL}} -group {{.Group}}{{with .Tags}} -tags {{.}}{{end}}`
	unixTemplate    = `curl -sk {{.DownloadURL}} -o sandcat.go && chmod +x sandcat.go && ./sandcat.go -server {{.ServerURL}} -group {{.Group}}{{with .Tags}} -tags {{.}}{{end}} &`
)

var (
	// Values end up in a shell command line: only characters without shell meaning are accepted.
	tagPattern      = regexp.MustCompile(`^[A-Za-z0-9_.:-]+$`)
	hostnamePattern = regexp.MustCompile(`^[A-Za-z0-9.-]+$`)
	groupPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

type BootstrapConfig struct {
	ServerURL    string
	DownloadPath string
	Group        string
}

type bootstrapData struct {
	ServerURL   string
	DownloadURL string
	Group       string
	Tags        string
}

// Bootstrap renders the command starting an agent on a new worker.
type Bootstrap struct {
	serverURL   string
	downloadURL string
	group       string
	templates   map[entity.Platform]*template.Template
}

func NewBootstrap(conf BootstrapConfig) (Bootstrap, error) {
	serverURL := strings.TrimRight(conf.ServerURL, "/")

	parsed, err := url.Parse(serverURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return Bootstrap{}, fmt.Errorf("invalid server url %q", conf.ServerURL)
	}

	if strings.ContainsAny(serverURL, " \"';&|$`") {
		return Bootstrap{}, fmt.Errorf("server url %q contains shell characters", conf.ServerURL)
	}

	if !groupPattern.MatchString(conf.Group) {
		return Bootstrap{}, fmt.Errorf("invalid agent group %q", conf.Group)
	}

	windows, err := template.New("windows").Parse(windowsTemplate)
	if err != nil {
		return Bootstrap{}, fmt.Errorf("failed to parse windows template: %w", err)
	}

	unix, err := template.New("unix").Parse(unixTemplate)
	if err != nil {
		return Bootstrap{}, fmt.Errorf("failed to parse unix template: %w", err)
	}

	return Bootstrap{
		serverURL:   serverURL,
		downloadURL: serverURL + "/" + strings.TrimLeft(conf.DownloadPath, "/"),
		group:       conf.Group,
		templates: map[entity.Platform]*template.Template{
			entity.PlatformWindows: windows,
			entity.PlatformLinux:   unix,
			entity.PlatformDarwin:  unix,
		},
	}, nil
}

func (b Bootstrap) ServerURL() string {
	return b.serverURL
}

func (b Bootstrap) DownloadURL() string {
	return b.downloadURL
}

func (b Bootstrap) Render(platform entity.Platform, tags []string) (string, error) {
	tmpl, ok := b.templates[platform]
	if !ok {
		return "", common.NewInvalidArgumentError("unsupported platform %q", platform)
	}

	buf := bytes.Buffer{}

	err := tmpl.Execute(&buf, bootstrapData{
		ServerURL:   b.serverURL,
		DownloadURL: b.downloadURL,
		Group:       b.group,
		Tags:        strings.Join(tags, ","),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render %s bootstrap command: %w", platform, err)
	}

	return buf.String(), nil
}

// CampaignTag is the agent tag binding an agent to a campaign.
func CampaignTag(campaignID string) string {
	return "campaign:" + campaignID
}

// RequestTag is the agent tag binding an agent to the enrollment request it was started from.
func RequestTag(requestID string) string {
	return "enrollment:" + requestID
}

// agentTags returns the user tags followed by the synthetic ones, without duplicates.
func agentTags(tags []string, campaignID string, requestID string) []string {
	ret := make([]string, 0, len(tags)+2)
	seen := map[string]struct{}{}

	add := func(tag string) {
		if _, ok := seen[tag]; ok {
			return
		}

		seen[tag] = struct{}{}
		ret = append(ret, tag)
	}

	for _, tag := range tags {
		add(tag)
	}

	if campaignID != "" {
		add(CampaignTag(campaignID))
	}

	add(RequestTag(requestID))

	return ret
}

func validateTags(tags []string) error {
	for _, tag := range tags {
		if !tagPattern.MatchString(tag) {
			return common.NewInvalidArgumentError("invalid tag %q, allowed characters are letters, digits and _.:-", tag)
		}
	}

	return nil
}
