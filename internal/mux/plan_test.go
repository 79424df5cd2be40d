package mux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Belphemur/DualMux/internal/language"
)

var (
	english = language.MustLookup("E")
	chinese = language.MustLookup("CHS")
)

func videos() PlanInput {
	return PlanInput{
		PrimaryVideo:   Track{Path: "/spool/e.mp4", Language: english},
		SecondaryVideo: Track{Path: "/spool/chs.mp4", Language: chinese},
	}
}

// flagValues returns every value following flag in args.
func flagValues(args []string, flag string) []string {
	var out []string
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			out = append(out, args[i+1])
		}
	}
	return out
}

func TestBuildPlan_NoSubtitles(t *testing.T) {
	t.Parallel()
	plan, err := BuildPlan(videos())
	require.NoError(t, err)

	assert.Equal(t, 2, plan.AudioStreams)
	assert.Equal(t, 0, plan.SubtitleStreams)
	assert.Equal(t, []string{"0:v:0", "0:a:0", "1:a:0"}, plan.Maps)
	assert.Equal(t, []string{"/spool/e.mp4", "/spool/chs.mp4"}, plan.Inputs)
	assert.NotContains(t, plan.Args, "-c:s")
	assert.Empty(t, flagValues(plan.Args, "-metadata:s:s:0"))
}

func TestBuildPlan_BothSubtitles(t *testing.T) {
	t.Parallel()
	in := videos()
	in.PrimarySubtitle = Track{Path: "/tmp/e.vtt", Language: english}
	in.SecondarySubtitle = Track{Path: "/tmp/chs.vtt", Language: chinese}

	plan, err := BuildPlan(in)
	require.NoError(t, err)

	assert.Equal(t, 2, plan.SubtitleStreams)
	assert.Equal(t, []string{"0:v:0", "0:a:0", "1:a:0", "2:s:0", "3:s:0"}, plan.Maps)
	assert.Equal(t, []string{"title=English", "language=eng"}, flagValues(plan.Args, "-metadata:s:s:0"))
	assert.Equal(t, []string{"title=Chinese", "language=chi"}, flagValues(plan.Args, "-metadata:s:s:1"))
	assert.Equal(t, []string{"srt"}, flagValues(plan.Args, "-c:s"))
}

func TestBuildPlan_SecondarySubtitleOnly(t *testing.T) {
	t.Parallel()
	in := videos()
	in.SecondarySubtitle = Track{Path: "/tmp/chs.vtt", Language: chinese}

	plan, err := BuildPlan(in)
	require.NoError(t, err)

	assert.Equal(t, []string{"0:v:0", "0:a:0", "1:a:0", "2:s:0"}, plan.Maps)
	assert.Equal(t, []string{"title=Chinese", "language=chi"}, flagValues(plan.Args, "-metadata:s:s:0"))
	assert.Empty(t, flagValues(plan.Args, "-metadata:s:s:1"))
}

func TestBuildPlan_FullCommandLine(t *testing.T) {
	t.Parallel()
	in := videos()
	in.PrimarySubtitle = Track{Path: "/tmp/e.vtt", Language: english}

	plan, err := BuildPlan(in)
	require.NoError(t, err)

	want := []string{
		"-hide_banner", "-nostdin", "-loglevel", "error", "-y",
		"-i", "/spool/e.mp4", "-i", "/spool/chs.mp4", "-i", "/tmp/e.vtt",
		"-map_metadata", "0",
		"-map", "0:v:0", "-map", "0:a:0", "-map", "1:a:0", "-map", "2:s:0",
		"-c:v", "copy", "-c:a", "copy", "-c:s", "srt",
		"-metadata:s:a:0", "title=English", "-metadata:s:a:0", "language=eng",
		"-metadata:s:a:1", "title=Chinese", "-metadata:s:a:1", "language=chi",
		"-metadata:s:s:0", "title=English", "-metadata:s:s:0", "language=eng",
		"-f", "matroska", "pipe:1",
	}
	assert.Equal(t, want, plan.Args)
	assert.Contains(t, plan.String(), "ffmpeg -hide_banner")
}

func TestBuildPlan_RequiresBothVideos(t *testing.T) {
	t.Parallel()
	in := videos()
	in.SecondaryVideo = Track{}

	_, err := BuildPlan(in)
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"Caleb and Sophia":  "Caleb and Sophia.mkv",
		"Who Is Jesus? 1/2": "Who Is Jesus_ 1_2.mkv",
		`C:\evil*"name"<>|`: "C__evil__name____.mkv",
		"  padded  ":        "padded.mkv",
		"../../etc/passwd":  "_.._etc_passwd.mkv",
		"":                  "untitled.mkv",
		"tab\there":         "tabhere.mkv",
		"要仁慈":               "要仁慈.mkv",
	}
	for title, want := range tests {
		assert.Equal(t, want, FileName(title), "FileName(%q)", title)
	}
}
