// Package mux merges the two language renditions of a title into one
// Matroska container by stream-copying through ffmpeg.
package mux

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Belphemur/DualMux/internal/language"
)

// Track is one file fed to the multiplexer and the language it carries.
type Track struct {
	Path     string
	Language language.Language
}

// PlanInput describes the files of one title. Subtitle tracks with an empty
// Path are absent.
type PlanInput struct {
	PrimaryVideo      Track
	SecondaryVideo    Track
	PrimarySubtitle   Track
	SecondarySubtitle Track
}

// Plan is a fully resolved ffmpeg invocation.
type Plan struct {
	Args            []string
	Inputs          []string // -i operands, in input index order
	Maps            []string // -map operands, in output stream order
	AudioStreams    int
	SubtitleStreams int
}

// BuildPlan lays out the inputs and stream mapping for one title:
//
//	input 0: primary video   -> v:0, a:0 (and global metadata)
//	input 1: secondary video -> a:1
//	input 2..3: subtitles present, primary first -> s:0..s:1
//
// Subtitle input and output indices are assigned consecutively over the
// subtitles actually present.
func BuildPlan(in PlanInput) (Plan, error) {
	if in.PrimaryVideo.Path == "" || in.SecondaryVideo.Path == "" {
		return Plan{}, errors.New("both videos are required")
	}

	p := Plan{
		Inputs:       []string{in.PrimaryVideo.Path, in.SecondaryVideo.Path},
		Maps:         []string{"0:v:0", "0:a:0", "1:a:0"},
		AudioStreams: 2,
	}

	var subtitles []language.Language
	for _, sub := range []Track{in.PrimarySubtitle, in.SecondarySubtitle} {
		if sub.Path == "" {
			continue
		}
		p.Maps = append(p.Maps, fmt.Sprintf("%d:s:0", len(p.Inputs)))
		p.Inputs = append(p.Inputs, sub.Path)
		subtitles = append(subtitles, sub.Language)
	}
	p.SubtitleStreams = len(subtitles)

	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y"}
	for _, input := range p.Inputs {
		args = append(args, "-i", input)
	}
	args = append(args, "-map_metadata", "0")
	for _, m := range p.Maps {
		args = append(args, "-map", m)
	}
	args = append(args, "-c:v", "copy", "-c:a", "copy")
	if p.SubtitleStreams > 0 {
		args = append(args, "-c:s", "srt")
	}

	args = append(args, streamMetadata("a:0", in.PrimaryVideo.Language)...)
	args = append(args, streamMetadata("a:1", in.SecondaryVideo.Language)...)
	for k, lang := range subtitles {
		args = append(args, streamMetadata(fmt.Sprintf("s:%d", k), lang)...)
	}

	p.Args = append(args, "-f", "matroska", "pipe:1")
	return p, nil
}

func streamMetadata(stream string, lang language.Language) []string {
	flag := "-metadata:s:" + stream
	return []string{
		flag, "title=" + lang.Title,
		flag, "language=" + lang.ISO6392,
	}
}

// String renders the plan as a shell-like command line for logs.
func (p Plan) String() string {
	return "ffmpeg " + strings.Join(p.Args, " ")
}

var unsafeName = strings.NewReplacer(
	"/", "_", `\`, "_", ":", "_", "*", "_", "?", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_",
)

// FileName returns the archive entry name for a title.
func FileName(title string) string {
	name := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, unsafeName.Replace(title))
	name = strings.Trim(strings.TrimSpace(name), ".")
	if name == "" {
		name = "untitled"
	}
	return name + ".mkv"
}
