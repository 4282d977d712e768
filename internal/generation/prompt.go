// internal/generation/prompt.go
package generation

import (
	"strings"
	"text/template"

	"content-workers/internal/models"
)

const noRequirements = "No additional requirements."

const noRelatedContent = "No related content is available. Rely on general knowledge of the topic and keep claims verifiable."

var multiTopicTmpl = template.Must(template.New("multi").Parse(`You are planning content for a marketing team.

{{.Context}}

{{if .Prompt}}Additional requirements:
{{.Prompt}}{{else}}` + noRequirements + `{{end}}

Generate {{.Count}} distinct content topics for the product above.
Do not duplicate or closely paraphrase any existing topic listed above.
Each topic must be assigned one of these categories:
{{range .Categories}}- {{.}}
{{end}}
Respond with a JSON object only, in this format:
{"topics": [{"title": "topic title", "relevance_score": 0-100, "seo_keywords": ["keyword"], "target_audience": "who it is for", "category": "one of the categories above"}]}`))

var singleTopicTmpl = template.Must(template.New("single").Parse(`{{.Context}}

Write one content topic title for the product above.
Rules:
- Make it specific to the product and useful to its audience.
- Keep it under 15 words.
- Do not repeat any existing topic listed above.

Return only the title, without quotes or explanation.`))

var refineTmpl = template.Must(template.New("refine").Parse(`Refine this content topic title according to the instructions.

Title: {{.Title}}
Instructions: {{.Prompt}}

Return only the refined title, without quotes or explanation.`))

var articleTmpl = template.Must(template.New("article").Parse(`Write a blog article in markdown about the following topic.

Topic: {{.Topic}}

Related content:
{{.Related}}

Requirements:
- Between 800 and 1200 words.
- Start with a single H1 title, then organise the body with H2 sections.
- Use the related content for facts and tone, but do not copy it.
- End with a short conclusion and a call to action.`))

var imageTmpl = template.Must(template.New("image").Parse(`An editorial header illustration for a blog article titled "{{.Title}}".
{{if .Style}}Style: {{.Style}}.
{{end}}Clean composition, no text or lettering in the image.`))

// MultiTopicPrompt asks for count topics as a JSON document.
func MultiTopicPrompt(contextBlock, prompt string, count int) (string, error) {
	return render(multiTopicTmpl, map[string]interface{}{
		"Context":    contextBlock,
		"Prompt":     strings.TrimSpace(prompt),
		"Count":      count,
		"Categories": models.Categories,
	})
}

// SingleTopicPrompt asks for one plain title.
func SingleTopicPrompt(contextBlock string) (string, error) {
	return render(singleTopicTmpl, map[string]interface{}{"Context": contextBlock})
}

// RefinePrompt asks the model to rewrite title following the user's instructions.
func RefinePrompt(title, prompt string) (string, error) {
	return render(refineTmpl, map[string]interface{}{"Title": title, "Prompt": strings.TrimSpace(prompt)})
}

// ArticlePrompt asks for a markdown article. Related items are listed as bullets separated by blank lines.
func ArticlePrompt(topic string, related []string) (string, error) {
	block := noRelatedContent
	if len(related) > 0 {
		items := make([]string, len(related))
		for i, r := range related {
			items[i] = "- " + r
		}
		block = strings.Join(items, "\n\n")
	}
	return render(articleTmpl, map[string]interface{}{"Topic": topic, "Related": block})
}

// ImagePrompt describes the header image for an article.
func ImagePrompt(title, style string) (string, error) {
	return render(imageTmpl, map[string]interface{}{"Title": title, "Style": strings.TrimSpace(style)})
}

func render(t *template.Template, data interface{}) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// cleanTitle takes the first non-empty line of a plain-text reply and strips quoting and labels.
func cleanTitle(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if i := strings.Index(line, ":"); i > 0 && strings.EqualFold(strings.TrimSpace(line[:i]), "title") {
			line = strings.TrimSpace(line[i+1:])
		}
		line = strings.TrimLeft(line, "#*- ")
		return strings.Trim(strings.TrimSpace(line), "\"'`*")
	}
	return ""
}
