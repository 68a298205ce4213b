package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shirayuki/bilisync/internal/models"
	"github.com/shirayuki/bilisync/internal/pathtmpl"
)

func newTestOrchestrator(t *testing.T, templates map[string]string) *Orchestrator {
	t.Helper()
	templater, err := pathtmpl.NewTemplater("/", templates)
	require.NoError(t, err)
	return New(Deps{Templater: templater})
}

func TestRenderVideoName(t *testing.T) {
	o := newTestOrchestrator(t, map[string]string{
		"video_name": "{{uploader_name}} - {{title}}",
		"page_name":  "{{title}}",
	})

	v := &models.Video{
		Bvid:         "BV1xx411c7abc",
		Title:        "My Great Video",
		UploaderName: "Someone",
		UploaderID:   42,
		Pubtime:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	name, err := o.renderVideoName(v)
	require.NoError(t, err)
	assert.Equal(t, "Someone - My Great Video", name)
}

func TestRenderPageName(t *testing.T) {
	o := newTestOrchestrator(t, map[string]string{
		"video_name": "{{title}}",
		"page_name":  "{{video_title}} - {{page_title}}",
	})

	v := &models.Video{Bvid: "BV1xx411c7abc", Title: "Show"}
	p := &models.Page{Title: "Episode One", Pid: 1}

	name, err := o.renderPageName(v, p)
	require.NoError(t, err)
	assert.Equal(t, "Show - Episode One", name)
}

func TestEvaluateShouldDownloadNoRule(t *testing.T) {
	o := newTestOrchestrator(t, map[string]string{"video_name": "{{title}}", "page_name": "{{title}}"})
	src := &models.VideoSource{DisplayName: "src"}
	v := &models.Video{Title: "anything"}

	assert.True(t, o.evaluateShouldDownload(src, v, nil, 1))
}

func TestEvaluateShouldDownloadWithRule(t *testing.T) {
	o := newTestOrchestrator(t, map[string]string{"video_name": "{{title}}", "page_name": "{{title}}"})
	src := &models.VideoSource{
		DisplayName: "src",
		DownloadRule: models.RawJSON(`{
			"groups": [
				{"atoms": [{"field": "title", "condition": "contains", "value": "keep"}]}
			]
		}`),
	}

	keep := &models.Video{Title: "please keep me"}
	assert.True(t, o.evaluateShouldDownload(src, keep, nil, 1))

	drop := &models.Video{Title: "nothing relevant"}
	assert.False(t, o.evaluateShouldDownload(src, drop, nil, 1))
}

func TestEvaluateShouldDownloadMalformedRuleDefaultsTrue(t *testing.T) {
	o := newTestOrchestrator(t, map[string]string{"video_name": "{{title}}", "page_name": "{{title}}"})
	src := &models.VideoSource{DisplayName: "src", DownloadRule: models.RawJSON(`not json`)}
	v := &models.Video{Title: "whatever"}

	assert.True(t, o.evaluateShouldDownload(src, v, nil, 1))
}
