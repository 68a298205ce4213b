package nfo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testVideo() VideoInfo {
	return VideoInfo{
		Bvid:      "BV1nWcSeeEkV",
		Name:      "name",
		Intro:     "intro",
		UpperID:   1,
		UpperName: "upper_name",
		Tags:      []string{"tag1", "tag2"},
		NFOTime:   time.Date(2033, 3, 3, 3, 3, 3, 0, time.UTC),
		PubTime:   time.Date(2033, 3, 3, 3, 3, 3, 0, time.UTC),
	}
}

func TestGenerateMovie(t *testing.T) {
	v := testVideo()
	want := `<?xml version="1.0" encoding="utf-8" standalone="yes"?>
<movie>
    <plot><![CDATA[原始视频：<a href="https://www.bilibili.com/video/BV1nWcSeeEkV/">BV1nWcSeeEkV</a><br/><br/>intro]]></plot>
    <outline/>
    <title>name</title>
    <actor>
        <name>1</name>
        <role>upper_name</role>
    </actor>
    <year>2033</year>
    <genre>tag1</genre>
    <genre>tag2</genre>
    <uniqueid type="bilibili">BV1nWcSeeEkV</uniqueid>
    <aired>2033-03-03</aired>
</movie>`
	assert.Equal(t, want, GenerateMovie(v))
}

func TestGenerateTVShow(t *testing.T) {
	v := testVideo()
	v.NFOTime = time.Date(2022, 2, 2, 2, 2, 2, 0, time.UTC)
	want := `<?xml version="1.0" encoding="utf-8" standalone="yes"?>
<tvshow>
    <plot><![CDATA[原始视频：<a href="https://www.bilibili.com/video/BV1nWcSeeEkV/">BV1nWcSeeEkV</a><br/><br/>intro]]></plot>
    <outline/>
    <title>name</title>
    <actor>
        <name>1</name>
        <role>upper_name</role>
    </actor>
    <year>2022</year>
    <genre>tag1</genre>
    <genre>tag2</genre>
    <uniqueid type="bilibili">BV1nWcSeeEkV</uniqueid>
    <aired>2022-02-02</aired>
</tvshow>`
	assert.Equal(t, want, GenerateTVShow(v))
}

func TestGenerateUpper(t *testing.T) {
	v := testVideo()
	want := `<?xml version="1.0" encoding="utf-8" standalone="yes"?>
<person>
    <plot/>
    <outline/>
    <lockdata>false</lockdata>
    <dateadded>2033-03-03 03:03:03</dateadded>
    <title>1</title>
    <sorttitle>1</sorttitle>
</person>`
	assert.Equal(t, want, GenerateUpper(v))
}

func TestGenerateEpisode(t *testing.T) {
	want := `<?xml version="1.0" encoding="utf-8" standalone="yes"?>
<episodedetails>
    <plot/>
    <outline/>
    <title>name</title>
    <season>1</season>
    <episode>3</episode>
</episodedetails>`
	assert.Equal(t, want, GenerateEpisode(PageInfo{Name: "name", Pid: 3}))
}
