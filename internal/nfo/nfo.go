// Package nfo serializes deterministic Kodi/Jellyfin-compatible .nfo XML
// sidecars from Video/Page records (spec §4.3 Stage 3, §6).
package nfo

import (
	"fmt"
	"strings"
	"time"
)

// VideoInfo carries the fields needed to render a movie/tvshow/person NFO.
// NFOTime is the already-resolved timestamp per the configured
// nfo_time_type (spec §6 "year/aired time source is either fav_time or
// pubtime"); PubTime is always the raw publish time (used verbatim for the
// person NFO's dateadded, which is never subject to nfo_time_type).
type VideoInfo struct {
	Bvid      string
	Name      string
	Intro     string
	UpperID   int64
	UpperName string
	Tags      []string
	NFOTime   time.Time
	PubTime   time.Time
}

// PageInfo carries the fields needed to render an episodedetails NFO.
type PageInfo struct {
	Name string
	Pid  int
}

const xmlHeader = `<?xml version="1.0" encoding="utf-8" standalone="yes"?>` + "\n"

// GenerateMovie renders the <movie> NFO used for single-page videos.
func GenerateMovie(v VideoInfo) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString("<movie>\n")
	writeVideoCommon(&b, v)
	b.WriteString("</movie>")
	return b.String()
}

// GenerateTVShow renders the <tvshow> NFO used for multi-page videos.
func GenerateTVShow(v VideoInfo) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString("<tvshow>\n")
	writeVideoCommon(&b, v)
	b.WriteString("</tvshow>")
	return b.String()
}

func writeVideoCommon(b *strings.Builder, v VideoInfo) {
	fmt.Fprintf(b, "    <plot><![CDATA[%s]]></plot>\n", formatPlot(v))
	b.WriteString("    <outline/>\n")
	fmt.Fprintf(b, "    <title>%s</title>\n", escapeText(v.Name))
	b.WriteString("    <actor>\n")
	fmt.Fprintf(b, "        <name>%d</name>\n", v.UpperID)
	fmt.Fprintf(b, "        <role>%s</role>\n", escapeText(v.UpperName))
	b.WriteString("    </actor>\n")
	fmt.Fprintf(b, "    <year>%s</year>\n", v.NFOTime.Format("2006"))
	for _, tag := range v.Tags {
		fmt.Fprintf(b, "    <genre>%s</genre>\n", escapeText(tag))
	}
	fmt.Fprintf(b, "    <uniqueid type=\"bilibili\">%s</uniqueid>\n", escapeText(v.Bvid))
	fmt.Fprintf(b, "    <aired>%s</aired>\n", v.NFOTime.Format("2006-01-02"))
}

// GenerateUpper renders the <person> NFO for an uploader directory.
func GenerateUpper(v VideoInfo) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString("<person>\n")
	b.WriteString("    <plot/>\n")
	b.WriteString("    <outline/>\n")
	b.WriteString("    <lockdata>false</lockdata>\n")
	fmt.Fprintf(&b, "    <dateadded>%s</dateadded>\n", v.PubTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "    <title>%d</title>\n", v.UpperID)
	fmt.Fprintf(&b, "    <sorttitle>%d</sorttitle>\n", v.UpperID)
	b.WriteString("</person>")
	return b.String()
}

// GenerateEpisode renders the <episodedetails> NFO for one Page.
func GenerateEpisode(p PageInfo) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString("<episodedetails>\n")
	b.WriteString("    <plot/>\n")
	b.WriteString("    <outline/>\n")
	fmt.Fprintf(&b, "    <title>%s</title>\n", escapeText(p.Name))
	b.WriteString("    <season>1</season>\n")
	fmt.Fprintf(&b, "    <episode>%d</episode>\n", p.Pid)
	b.WriteString("</episodedetails>")
	return b.String()
}

func formatPlot(v VideoInfo) string {
	return fmt.Sprintf(`原始视频：<a href="https://www.bilibili.com/video/%s/">%s</a><br/><br/>%s`, v.Bvid, v.Bvid, v.Intro)
}

// escapeText escapes the subset of characters quick_xml's text writer
// escapes in element content: &, <, >.
func escapeText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
