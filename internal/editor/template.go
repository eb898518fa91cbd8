package editor

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/splat-replay/splat-replay/internal/models"
)

// TemplateData is the named-field view of a group that title and description
// templates render against.
type TemplateData struct {
	Date      string
	GameMode  string
	Match     string
	Rule      string
	Rate      string
	Count     int
	Judgement string
	Stage     string
}

// ChapterData is the per-clip view the chapter template renders against.
type ChapterData struct {
	Index     int
	Judgement string
	Stage     string
	Rate      string
}

func groupTemplateData(g Group) TemplateData {
	data := TemplateData{
		Date:     g.Key.Date,
		GameMode: string(g.Key.GameMode),
		Match:    g.Key.Match,
		Rule:     g.Key.Rule,
		Count:    len(g.Assets),
	}
	if len(g.Assets) > 0 && g.Assets[0].Metadata != nil && g.Assets[0].Metadata.Rate != nil {
		data.Rate = g.Assets[0].Metadata.Rate.String()
	}
	return data
}

func clipChapterData(index int, meta *models.RecordingMetadata) ChapterData {
	data := ChapterData{Index: index + 1, Judgement: "unknown"}
	if meta == nil {
		return data
	}
	if meta.Judgement != models.JudgementUnknown {
		data.Judgement = string(meta.Judgement)
	}
	switch {
	case meta.Battle != nil:
		data.Stage = meta.Battle.Stage
	case meta.Salmon != nil:
		data.Stage = meta.Salmon.Stage
	}
	if meta.Rate != nil {
		data.Rate = meta.Rate.String()
	}
	return data
}

func renderTemplate(name, text string, data any) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", models.NewError(models.KindValidation,
			fmt.Sprintf("parsing %s template: %v", name, err))
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return "", models.NewError(models.KindValidation,
			fmt.Sprintf("rendering %s template: %v", name, err))
	}
	return strings.TrimSpace(out.String()), nil
}

// formatChapterOffset renders an offset the way video chapters expect:
// M:SS below an hour, H:MM:SS above.
func formatChapterOffset(d time.Duration) string {
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// renderChapters produces one chapter line per clip, each prefixed with its
// offset into the concatenated video.
func renderChapters(chapterTemplate string, g Group, offsets []time.Duration) (string, error) {
	var lines []string
	for i, asset := range g.Assets {
		line, err := renderTemplate("chapter", chapterTemplate, clipChapterData(i, asset.Metadata))
		if err != nil {
			return "", err
		}
		var offset time.Duration
		if i < len(offsets) {
			offset = offsets[i]
		}
		lines = append(lines, formatChapterOffset(offset)+" "+line)
	}
	return strings.Join(lines, "\n"), nil
}
